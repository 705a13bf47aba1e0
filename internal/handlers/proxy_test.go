package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/models"
	"github.com/pushgate/pushgate/internal/policy"
	"github.com/pushgate/pushgate/internal/rpc"
	"github.com/pushgate/pushgate/internal/token"
)

// stubPolicy returns whatever the test configures, so envelope shapes can be
// exercised without a real policy.
type stubPolicy struct {
	connGrant *policy.ConnectionGrant
	connDeny  *policy.Denial
	subGrant  *policy.SubscriptionGrant
	subDeny   *policy.Denial
	pubDeny   *policy.Denial
	err       error
}

func (p *stubPolicy) AuthorizeConnection(context.Context, policy.ConnectRequest) (*policy.ConnectionGrant, *policy.Denial, error) {
	return p.connGrant, p.connDeny, p.err
}

func (p *stubPolicy) AuthorizeSubscription(context.Context, policy.SubscribeRequest) (*policy.SubscriptionGrant, *policy.Denial, error) {
	return p.subGrant, p.subDeny, p.err
}

func (p *stubPolicy) AuthorizePublish(context.Context, policy.PublishRequest) (*policy.Denial, error) {
	return p.pubDeny, p.err
}

func newProxyTest(t *testing.T, pol policy.Policy, tokenMode bool) (*ProxyHandler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec := token.NewCodec("proxy-test-secret")
	registry := rpc.NewRegistry(zap.NewNop())
	h := NewProxyHandler(codec, pol, registry, tokenMode, zap.NewNop())
	h.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	router := gin.New()
	router.POST("/gateway/connect", h.Connect)
	router.POST("/gateway/refresh", h.Refresh)
	router.POST("/gateway/sub_refresh", h.SubRefresh)
	router.POST("/gateway/subscribe", h.Subscribe)
	router.POST("/gateway/publish", h.Publish)
	router.POST("/gateway/rpc", h.RPC)
	return h, router
}

func postCallback(t *testing.T, router *gin.Engine, path string, req models.CallbackRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestProxyConnect(t *testing.T) {
	t.Run("authenticated user gets result with expire_at", func(t *testing.T) {
		opts := policy.Options{ConnectionTTL: time.Minute}
		_, router := newProxyTest(t, policy.NewAllowAll(opts), false)

		w := postCallback(t, router, "/gateway/connect", models.CallbackRequest{
			Client:    "client-1",
			Transport: models.TransportWebsocket,
			User:      "42",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `application/json; charset="utf-8"`, w.Header().Get("Content-Type"))

		envelope := decodeEnvelope(t, w)
		require.Contains(t, envelope, "result")
		assert.NotContains(t, envelope, "error")
		assert.NotContains(t, envelope, "disconnect")

		var result models.ConnectResult
		require.NoError(t, json.Unmarshal(envelope["result"], &result))
		assert.Equal(t, "42", result.User)
		assert.Equal(t, int64(1_700_000_060), result.ExpireAt)
	})

	t.Run("unidirectional transport receives default channels", func(t *testing.T) {
		opts := policy.Options{
			ConnectionTTL:  time.Minute,
			UniChannels:    []string{"$chat:index"},
			AllowAnonymous: true,
		}
		_, router := newProxyTest(t, policy.NewAllowAll(opts), false)

		w := postCallback(t, router, "/gateway/connect", models.CallbackRequest{
			Client:    "client-2",
			Transport: models.TransportUniWebsocket,
		})

		envelope := decodeEnvelope(t, w)
		var result models.ConnectResult
		require.NoError(t, json.Unmarshal(envelope["result"], &result))
		assert.Equal(t, []string{"$chat:index"}, result.Channels)
	})

	t.Run("denied connection becomes a disconnect", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := postCallback(t, router, "/gateway/connect", models.CallbackRequest{
			Client:    "client-3",
			Transport: models.TransportWebsocket,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		envelope := decodeEnvelope(t, w)
		require.Contains(t, envelope, "disconnect")
		assert.NotContains(t, envelope, "result")

		var disconnect models.Disconnect
		require.NoError(t, json.Unmarshal(envelope["disconnect"], &disconnect))
		assert.Equal(t, policy.DisconnectUnauthorized, disconnect.Code)
		assert.False(t, disconnect.Reconnect)
	})

	t.Run("zero TTL renders without expire_at", func(t *testing.T) {
		pol := &stubPolicy{connGrant: &policy.ConnectionGrant{Subject: "7"}}
		_, router := newProxyTest(t, pol, false)

		w := postCallback(t, router, "/gateway/connect", models.CallbackRequest{
			Client: "client-4",
			User:   "7",
		})

		var result struct {
			Result map[string]json.RawMessage `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.NotContains(t, result.Result, "expire_at")
	})

	t.Run("policy fault answers with internal error envelope", func(t *testing.T) {
		pol := &stubPolicy{err: errors.New("role store down")}
		_, router := newProxyTest(t, pol, false)

		w := postCallback(t, router, "/gateway/connect", models.CallbackRequest{
			Client: "client-5",
			User:   "7",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(500), resp.Error.Code)
		assert.Equal(t, "internal server error", resp.Error.Message)
	})

	t.Run("malformed body is a client error envelope", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/gateway/connect", bytes.NewReader([]byte("{not json")))
		r.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(400), resp.Error.Code)
	})
}

func TestProxyRefresh(t *testing.T) {
	opts := policy.Options{ConnectionTTL: 5 * time.Minute}
	_, router := newProxyTest(t, policy.NewAllowAll(opts), false)

	w := postCallback(t, router, "/gateway/refresh", models.CallbackRequest{
		Client: "client-1",
		User:   "42",
	})

	envelope := decodeEnvelope(t, w)
	var result models.RefreshResult
	require.NoError(t, json.Unmarshal(envelope["result"], &result))
	assert.Equal(t, int64(1_700_000_300), result.ExpireAt)
}

func TestProxySubscribe(t *testing.T) {
	t.Run("allowed subscription returns bare result", func(t *testing.T) {
		opts := policy.Options{SubscriptionTTL: 30 * time.Second}
		_, router := newProxyTest(t, policy.NewAllowAll(opts), false)

		w := postCallback(t, router, "/gateway/subscribe", models.CallbackRequest{
			Client:  "client-1",
			User:    "42",
			Channel: "chat:index",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"result":{}}`, w.Body.String())
	})

	t.Run("token mode mints a verifiable channel token", func(t *testing.T) {
		opts := policy.Options{SubscriptionTTL: 30 * time.Second}
		h, router := newProxyTest(t, policy.NewAllowAll(opts), true)

		w := postCallback(t, router, "/gateway/subscribe", models.CallbackRequest{
			Client:  "client-1",
			User:    "42",
			Channel: "chat:index",
		})

		envelope := decodeEnvelope(t, w)
		var result models.SubscribeResult
		require.NoError(t, json.Unmarshal(envelope["result"], &result))
		require.NotEmpty(t, result.Token)
		assert.Equal(t, int64(1_700_000_030), result.ExpireAt)

		claims, err := h.codec.VerifySubscriptionToken(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "42", claims.Subject)
		assert.Equal(t, "chat:index", claims.Channel)
	})

	t.Run("denied subscription is an error envelope not a fault", func(t *testing.T) {
		pol := &stubPolicy{subDeny: &policy.Denial{Code: policy.CodePermissionDenied, Reason: "permission denied"}}
		_, router := newProxyTest(t, pol, false)

		w := postCallback(t, router, "/gateway/subscribe", models.CallbackRequest{
			Client:  "client-1",
			User:    "42",
			Channel: "$admin:ops",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, policy.CodePermissionDenied, resp.Error.Code)
	})
}

func TestProxySubRefresh(t *testing.T) {
	opts := policy.Options{SubscriptionTTL: time.Minute}
	_, router := newProxyTest(t, policy.NewAllowAll(opts), false)

	w := postCallback(t, router, "/gateway/sub_refresh", models.CallbackRequest{
		Client:  "client-1",
		User:    "42",
		Channel: "chat:index",
	})

	envelope := decodeEnvelope(t, w)
	var result models.SubRefreshResult
	require.NoError(t, json.Unmarshal(envelope["result"], &result))
	assert.Equal(t, int64(1_700_000_060), result.ExpireAt)
}

func TestProxyPublish(t *testing.T) {
	t.Run("allowed publication", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := postCallback(t, router, "/gateway/publish", models.CallbackRequest{
			Client:  "client-1",
			User:    "42",
			Channel: "chat:index",
			Data:    json.RawMessage(`{"text":"hi"}`),
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"result":{}}`, w.Body.String())
	})

	t.Run("unparseable body is a structured client error", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/gateway/publish", bytes.NewReader([]byte(`{"channel":`)))
		r.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, `application/json; charset="utf-8"`, w.Header().Get("Content-Type"))
		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(400), resp.Error.Code)
	})

	t.Run("denied publication", func(t *testing.T) {
		pol := &stubPolicy{pubDeny: &policy.Denial{Code: policy.CodePermissionDenied, Reason: "permission denied"}}
		_, router := newProxyTest(t, pol, false)

		w := postCallback(t, router, "/gateway/publish", models.CallbackRequest{
			Client:  "client-1",
			User:    "42",
			Channel: "$news:alerts",
		})

		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(103), resp.Error.Code)
	})
}

func TestProxyRPC(t *testing.T) {
	t.Run("unknown method names the method in the error", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := postCallback(t, router, "/gateway/rpc", models.CallbackRequest{
			Client: "client-1",
			User:   "42",
			Method: "echo",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"error":{"code":404,"message":"Unknown RPC method: echo"}}`, w.Body.String())
	})

	t.Run("anonymous caller is refused", func(t *testing.T) {
		_, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)

		w := postCallback(t, router, "/gateway/rpc", models.CallbackRequest{
			Client: "client-1",
			Method: "ping",
		})

		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(401), resp.Error.Code)
	})

	t.Run("registered method returns its data", func(t *testing.T) {
		h, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)
		h.registry.Register("whoami", func(_ context.Context, caller rpc.Caller, _ json.RawMessage) (json.RawMessage, error) {
			payload, err := json.Marshal(map[string]string{"user": caller.UserID})
			return payload, err
		})

		w := postCallback(t, router, "/gateway/rpc", models.CallbackRequest{
			Client: "client-1",
			User:   "42",
			Method: "whoami",
		})

		assert.JSONEq(t, `{"result":{"data":{"user":"42"}}}`, w.Body.String())
	})

	t.Run("handler fault is a generic internal error", func(t *testing.T) {
		h, router := newProxyTest(t, policy.NewAllowAll(policy.Options{}), false)
		h.registry.Register("boom", func(context.Context, rpc.Caller, json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("backend unreachable")
		})

		w := postCallback(t, router, "/gateway/rpc", models.CallbackRequest{
			Client: "client-1",
			User:   "42",
			Method: "boom",
		})

		var resp models.CallbackResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, uint32(500), resp.Error.Code)
		assert.Equal(t, "internal server error", resp.Error.Message)
	})
}

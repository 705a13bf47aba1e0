package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/middleware"
	"github.com/pushgate/pushgate/internal/models"
	"github.com/pushgate/pushgate/internal/policy"
	"github.com/pushgate/pushgate/internal/rpc"
	"github.com/pushgate/pushgate/internal/token"
)

// proxyContentType matches what the broker expects from proxy endpoints.
const proxyContentType = `application/json; charset="utf-8"`

// ProxyHandler answers the broker's proxy callbacks. Every response is a
// CallbackResponse envelope; HTTP-level failures are reserved for requests
// the broker itself got wrong (unparseable bodies).
type ProxyHandler struct {
	codec     *token.Codec
	policy    policy.Policy
	registry  *rpc.Registry
	tokenMode bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewProxyHandler wires the dispatcher. With tokenMode set, allowed
// subscriptions answer with a freshly minted channel token instead of a
// bare allow.
func NewProxyHandler(codec *token.Codec, pol policy.Policy, registry *rpc.Registry, tokenMode bool, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{
		codec:     codec,
		policy:    pol,
		registry:  registry,
		tokenMode: tokenMode,
		logger:    logger,
		now:       time.Now,
	}
}

// Connect authorizes a new client connection.
func (h *ProxyHandler) Connect(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}

	grant, denial, err := h.policy.AuthorizeConnection(c.Request.Context(), policy.ConnectRequest{
		User:      req.User,
		ClientID:  req.Client,
		Transport: req.Transport,
		Channels:  req.Channels,
		Data:      req.Data,
	})
	if err != nil {
		h.internalError(c, "connect", err)
		return
	}
	if denial != nil {
		h.writeCallback(c, http.StatusOK, models.CallbackResponse{
			Disconnect: &models.Disconnect{
				Code:      denial.Code,
				Reconnect: false,
				Reason:    denial.Reason,
			},
		})
		return
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Result: models.ConnectResult{
			User:     grant.Subject,
			ExpireAt: h.expireAt(grant.TTL),
			Channels: grant.Channels,
			Meta:     grant.Meta,
			Caps:     grant.Caps,
		},
	})
}

// Refresh extends an established connection. A grant with zero TTL renders
// as a zero expire_at, which tells the broker to keep the connection alive
// without further refresh callbacks.
func (h *ProxyHandler) Refresh(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}

	grant, denial, err := h.policy.AuthorizeConnection(c.Request.Context(), policy.ConnectRequest{
		User:      req.User,
		ClientID:  req.Client,
		Transport: req.Transport,
	})
	if err != nil {
		h.internalError(c, "refresh", err)
		return
	}
	if denial != nil {
		h.writeCallback(c, http.StatusOK, models.CallbackResponse{
			Disconnect: &models.Disconnect{
				Code:      denial.Code,
				Reconnect: false,
				Reason:    denial.Reason,
			},
		})
		return
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Result: models.RefreshResult{
			ExpireAt: h.expireAt(grant.TTL),
			Caps:     grant.Caps,
		},
	})
}

// SubRefresh extends a single channel subscription.
func (h *ProxyHandler) SubRefresh(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}

	grant, denial, err := h.policy.AuthorizeSubscription(c.Request.Context(), policy.SubscribeRequest{
		User:      req.User,
		ClientID:  req.Client,
		Transport: req.Transport,
		Channel:   req.Channel,
	})
	if err != nil {
		h.internalError(c, "sub_refresh", err)
		return
	}
	if denial != nil {
		h.writeDenial(c, denial)
		return
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Result: models.SubRefreshResult{
			ExpireAt: h.expireAt(grant.TTL),
		},
	})
}

// Subscribe authorizes a client joining a channel.
func (h *ProxyHandler) Subscribe(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}

	grant, denial, err := h.policy.AuthorizeSubscription(c.Request.Context(), policy.SubscribeRequest{
		User:      req.User,
		ClientID:  req.Client,
		Transport: req.Transport,
		Channel:   req.Channel,
		Data:      req.Data,
	})
	if err != nil {
		h.internalError(c, "subscribe", err)
		return
	}
	if denial != nil {
		h.writeDenial(c, denial)
		return
	}

	result := models.SubscribeResult{Info: grant.Info}
	if h.tokenMode {
		now := h.now()
		tokenString, err := h.codec.MintSubscriptionToken(models.SubscriptionClaims{
			Subject:    req.User,
			Channel:    grant.Channel,
			Info:       grant.Info,
			IssuedAt:   now,
			ExpiresAt:  now.Add(grant.TTL),
			AllowedOps: grant.AllowedOps,
		})
		if err != nil {
			h.internalError(c, "subscribe", err)
			return
		}
		result.Token = tokenString
		result.ExpireAt = now.Add(grant.TTL).Unix()
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{Result: result})
}

// Publish authorizes a client publication before the broker fans it out.
func (h *ProxyHandler) Publish(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}

	denial, err := h.policy.AuthorizePublish(c.Request.Context(), policy.PublishRequest{
		User:     req.User,
		ClientID: req.Client,
		Channel:  req.Channel,
		Data:     req.Data,
	})
	if err != nil {
		h.internalError(c, "publish", err)
		return
	}
	if denial != nil {
		h.writeDenial(c, denial)
		return
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{Result: struct{}{}})
}

// RPC runs a named procedure on behalf of a connected client.
func (h *ProxyHandler) RPC(c *gin.Context) {
	req, ok := h.bindCallback(c)
	if !ok {
		return
	}
	if req.User == "" {
		h.writeCallback(c, http.StatusOK, models.CallbackResponse{
			Error: &models.CallbackError{Code: 401, Message: "unauthenticated"},
		})
		return
	}

	data, err := h.registry.Dispatch(c.Request.Context(), req.Method, rpc.Caller{
		UserID:    req.User,
		ClientID:  req.Client,
		Transport: req.Transport,
	}, req.Data)
	if err != nil {
		if unknown, ok := err.(*rpc.UnknownMethodError); ok {
			h.writeCallback(c, http.StatusOK, models.CallbackResponse{
				Error: &models.CallbackError{Code: 404, Message: unknown.Error()},
			})
			return
		}
		h.internalError(c, "rpc", err)
		return
	}

	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Result: models.RPCResult{Data: data},
	})
}

// bindCallback parses the request body, answering malformed bodies with a
// client error envelope.
func (h *ProxyHandler) bindCallback(c *gin.Context) (models.CallbackRequest, bool) {
	var req models.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.ContextLogger(c).Info("Malformed callback body", zap.Error(err))
		h.writeCallback(c, http.StatusBadRequest, models.CallbackResponse{
			Error: &models.CallbackError{Code: 400, Message: "malformed request body"},
		})
		return models.CallbackRequest{}, false
	}
	return req, true
}

func (h *ProxyHandler) writeDenial(c *gin.Context, denial *policy.Denial) {
	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Error: &models.CallbackError{Code: denial.Code, Message: denial.Reason},
	})
}

// internalError logs the fault with request context and answers with a
// short generic message.
func (h *ProxyHandler) internalError(c *gin.Context, event string, err error) {
	middleware.ContextLogger(c).Error("Callback handling failed",
		zap.String("event", event),
		zap.Error(err))
	h.writeCallback(c, http.StatusOK, models.CallbackResponse{
		Error: &models.CallbackError{Code: 500, Message: "internal server error"},
	})
}

func (h *ProxyHandler) writeCallback(c *gin.Context, status int, resp models.CallbackResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to marshal callback response", zap.Error(err))
		c.Data(http.StatusInternalServerError, proxyContentType, []byte(`{"error":{"code":500,"message":"internal server error"}}`))
		return
	}
	c.Data(status, proxyContentType, body)
}

func (h *ProxyHandler) expireAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return h.now().Add(ttl).Unix()
}

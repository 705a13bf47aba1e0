package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pushgate/pushgate/internal/models"
)

const defaultLeeway = 5 * time.Second

// Codec mints and verifies the signed tokens that gate broker access. Tokens
// are compact HS256 JWTs so the broker can verify them with the shared secret
// without calling back into this service. The secret is read-only after
// construction; a Codec is safe for concurrent use.
type Codec struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithLeeway sets the allowed clock skew for iat/nbf/exp checks.
func WithLeeway(d time.Duration) Option {
	return func(c *Codec) {
		c.leeway = d
	}
}

// WithTimeFunc overrides the clock, used by tests to simulate expiry.
func WithTimeFunc(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a Codec signing with the given shared secret.
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		leeway: defaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MintConnectionToken signs a connection token carrying the given claims.
// A missing UniqueID is filled with a fresh UUID so two tokens minted for
// the same subject in the same second never collide.
func (c *Codec) MintConnectionToken(claims models.ConnectionClaims) (string, error) {
	if err := checkLifetime(claims.IssuedAt, claims.ExpiresAt); err != nil {
		return "", err
	}
	uniqueID := claims.UniqueID
	if uniqueID == "" {
		uniqueID = uuid.NewString()
	}
	tokenClaims := models.ConnectionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        uniqueID,
		},
		Info:     claims.Info,
		Channels: claims.Channels,
		Caps:     claims.Caps,
		Meta:     claims.Meta,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign connection token: %w", err)
	}
	return tokenString, nil
}

// MintSubscriptionToken signs a token scoped to a single channel.
func (c *Codec) MintSubscriptionToken(claims models.SubscriptionClaims) (string, error) {
	if err := checkLifetime(claims.IssuedAt, claims.ExpiresAt); err != nil {
		return "", err
	}
	uniqueID := claims.UniqueID
	if uniqueID == "" {
		uniqueID = uuid.NewString()
	}
	tokenClaims := models.SubscriptionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        uniqueID,
		},
		Channel:    claims.Channel,
		Info:       claims.Info,
		AllowedOps: claims.AllowedOps,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign subscription token: %w", err)
	}
	return tokenString, nil
}

// VerifyConnectionToken checks signature and time bounds and returns the
// decoded claims.
func (c *Codec) VerifyConnectionToken(tokenString string) (models.ConnectionClaims, error) {
	var claims models.ConnectionTokenClaims
	if err := c.verify(tokenString, &claims); err != nil {
		return models.ConnectionClaims{}, err
	}
	return models.ConnectionClaims{
		Subject:   claims.Subject,
		Info:      claims.Info,
		IssuedAt:  numericDateTime(claims.IssuedAt),
		ExpiresAt: numericDateTime(claims.ExpiresAt),
		UniqueID:  claims.ID,
		Channels:  claims.Channels,
		Caps:      claims.Caps,
		Meta:      claims.Meta,
	}, nil
}

// VerifySubscriptionToken checks signature and time bounds and returns the
// decoded claims. A token without a channel is malformed.
func (c *Codec) VerifySubscriptionToken(tokenString string) (models.SubscriptionClaims, error) {
	var claims models.SubscriptionTokenClaims
	if err := c.verify(tokenString, &claims); err != nil {
		return models.SubscriptionClaims{}, err
	}
	if claims.Channel == "" {
		return models.SubscriptionClaims{}, models.ErrMalformed
	}
	return models.SubscriptionClaims{
		Subject:    claims.Subject,
		Channel:    claims.Channel,
		Info:       claims.Info,
		IssuedAt:   numericDateTime(claims.IssuedAt),
		ExpiresAt:  numericDateTime(claims.ExpiresAt),
		UniqueID:   claims.ID,
		AllowedOps: claims.AllowedOps,
	}, nil
}

// checkLifetime rejects claims whose expiry does not lie after issuance.
// Minting such a token is a caller bug, caught here instead of at verify.
func checkLifetime(issuedAt, expiresAt time.Time) error {
	if !expiresAt.After(issuedAt) {
		return fmt.Errorf("token expiry %s is not after issuance %s", expiresAt, issuedAt)
	}
	return nil
}

func (c *Codec) verify(tokenString string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(c.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return classifyError(err)
	}
	if !parsed.Valid {
		return models.ErrBadSignature
	}
	return nil
}

// classifyError maps jwt parse failures onto the local error taxonomy so
// callers never branch on library error values.
func classifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return models.ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return models.ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return models.ErrTokenNotYetValid
	default:
		return models.ErrMalformed
	}
}

func numericDateTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

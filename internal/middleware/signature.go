package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pushgate/pushgate/internal/services"
)

// SignatureHeader carries the broker's HMAC over the callback body.
const SignatureHeader = "X-Gateway-Signature"

// RequireSignature verifies the broker's body signature before a callback
// reaches its handler. The body is restored for downstream binding.
func RequireSignature(signing *services.SigningService) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature header is required"})
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if !signing.ValidateSignature(body, signature) {
			ContextLogger(c).Warn("Invalid callback signature",
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			c.Abort()
			return
		}

		c.Next()
	}
}

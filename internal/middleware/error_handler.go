package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushgate/pushgate/internal/models"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler converts errors recorded on the gin context into the
// response the error taxonomy demands. Token verification failures are
// reported as a plain authorization failure so callers learn nothing about
// which check tripped.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		message := "internal error"
		switch {
		case errors.Is(err, models.ErrMalformed):
			statusCode = http.StatusBadRequest
			message = "malformed request"
		case errors.Is(err, models.ErrUnauthenticated):
			statusCode = http.StatusUnauthorized
			message = "authentication required"
		case errors.Is(err, models.ErrBadSignature),
			errors.Is(err, models.ErrTokenExpired),
			errors.Is(err, models.ErrTokenNotYetValid):
			statusCode = http.StatusUnauthorized
			message = "invalid token"
		}

		c.JSON(statusCode, ErrorResponse{Error: message})
	}
}

package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"drive-gateway/internal/api/response"
	gwerrors "drive-gateway/internal/errors"
)

// APIKeyParam is the query parameter carrying the caller's key.
const APIKeyParam = "api_key"

var (
	ErrMissingAPIKey = gwerrors.Unauthorized("Missing API Key")
	ErrInvalidAPIKey = gwerrors.Unauthorized("Invalid API Key")
)

// Authorize compares the presented key with the configured one. An empty
// expected key denies every request.
func Authorize(presented, expected string) error {
	if presented == "" {
		return ErrMissingAPIKey
	}
	if expected == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// RequireAPIKey rejects the request before any handler runs unless the
// api_key query parameter matches expected.
func RequireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := Authorize(c.Query(APIKeyParam), expected); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keyforge/keyforge/internal/pkg/errcode"
	"github.com/keyforge/keyforge/internal/pkg/jwtauth"
	"github.com/keyforge/keyforge/internal/pkg/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUserEmailKey = "user_email"
)

// OptionalIdentity extracts a user identity from a bearer token when one is
// present. Requests without an Authorization header continue anonymously;
// handlers still honor caller-asserted owner ids and use this identity only
// as a fallback. A present but invalid token is rejected.
func OptionalIdentity(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || len(secret) == 0 {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, errcode.ErrLoginRequired, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwtauth.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrLoginRequired, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		if claims.Email != "" {
			c.Set(ContextUserEmailKey, claims.Email)
		}
		c.Next()
	}
}

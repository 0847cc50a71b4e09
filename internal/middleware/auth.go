package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/response"
)

// CtxAccountIDKey names the gin context entry holding the verified account id.
const CtxAccountIDKey = "accountID"

// Auth enforces bearer-token authentication using the supplied JWT service.
// Every verification failure collapses to a single 401 response.
func Auth(jwt *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		accountID, err := jwt.Verify(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxAccountIDKey, accountID)
		c.Next()
	}
}

// OptionalAuth resolves a bearer token when one is supplied and otherwise
// attributes the request to the shared guest account. A token that is present
// but invalid is still rejected; only absence falls through to guest.
func OptionalAuth(jwt *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Set(CtxAccountIDKey, database.GuestAccountID)
			c.Next()
			return
		}

		accountID, err := jwt.Verify(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxAccountIDKey, accountID)
		c.Next()
	}
}

// AccountID returns the verified account id set by Auth or OptionalAuth.
func AccountID(c *gin.Context) (string, bool) {
	value, ok := c.Get(CtxAccountIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(authz[7:]), true
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/response"
)

// DeveloperChecker reports whether an account holds a developer grant.
type DeveloperChecker interface {
	IsDeveloper(ctx context.Context, accountID string) (bool, error)
}

// RequireDeveloper gates privileged routes behind a developer grant. It must
// run after Auth; a missing grant is a 403, distinct from the 401 an
// unauthenticated request receives.
func RequireDeveloper(checker DeveloperChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := AccountID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		granted, err := checker.IsDeveloper(c.Request.Context(), accountID)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if !granted {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/middleware"
	appErrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// accountID extracts the authenticated account id or writes a 401.
func accountID(c *gin.Context) (string, bool) {
	id, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return id, true
}

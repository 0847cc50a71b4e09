package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/response"
)

// AdminHandler exposes the developer-gated operations.
type AdminHandler struct {
	developers *services.DeveloperService
	feedback   *services.FeedbackService
}

func NewAdminHandler(developers *services.DeveloperService, feedback *services.FeedbackService) *AdminHandler {
	return &AdminHandler{developers: developers, feedback: feedback}
}

type grantRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// GET /api/admin/developers
func (h *AdminHandler) ListDevelopers(c *gin.Context) {
	grants, err := h.developers.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// POST /api/admin/developers
func (h *AdminHandler) GrantDeveloper(c *gin.Context) {
	var req grantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.developers.GrantByEmail(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, grant)
}

// DELETE /api/admin/developers
func (h *AdminHandler) RevokeDeveloper(c *gin.Context) {
	var req grantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.developers.RevokeByEmail(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/admin/feedback
func (h *AdminHandler) ListFeedback(c *gin.Context) {
	entries, err := h.feedback.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/response"
)

// ProfileHandler exposes mutations on the authenticated account.
type ProfileHandler struct {
	accounts *services.AccountService
}

func NewProfileHandler(accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

type updateProfileRequest struct {
	Email          *string `json:"email" validate:"omitempty,email"`
	DisplayName    *string `json:"display_name" validate:"omitempty,max=100"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,max=500"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type setPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.accounts.UpdateProfile(requestContext(c), id, services.UpdateProfileInput{
		Email:          req.Email,
		DisplayName:    req.DisplayName,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

// POST /api/profile/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.ChangePassword(requestContext(c), id, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

// POST /api/profile/password/create
func (h *ProfileHandler) SetPassword(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req setPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.SetPassword(requestContext(c), id, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"created": true})
}

// DELETE /api/profile
func (h *ProfileHandler) Delete(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	report, err := h.accounts.Delete(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

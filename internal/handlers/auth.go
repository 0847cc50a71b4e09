package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/response"
)

// AuthHandler exposes the signup, login, federated sign-in and password
// reset flows.
type AuthHandler struct {
	flow     *auth.FlowService
	accounts *services.AccountService
}

func NewAuthHandler(flow *auth.FlowService, accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{flow: flow, accounts: accounts}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	// DisplayName is accepted here so clients can send the full signup
	// form in one shape, but no account exists until verification; only
	// the value sent with the verify step is stored.
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

type verifySignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type federatedRequest struct {
	Assertion string `json:"assertion" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyPasswordResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// POST /api/auth/signup
func (h *AuthHandler) InitiateSignup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	challenge, err := h.flow.InitiateSignup(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, challenge)
}

// POST /api/auth/signup/verify
func (h *AuthHandler) CompleteSignup(c *gin.Context) {
	var req verifySignupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.flow.CompleteSignup(requestContext(c), req.Email, req.OTP, req.Password, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// POST /api/auth/login
func (h *AuthHandler) InitiateLogin(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	challenge, err := h.flow.InitiateLogin(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, challenge)
}

// POST /api/auth/login/verify
func (h *AuthHandler) CompleteLogin(c *gin.Context) {
	var req verifyLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.flow.CompleteLogin(requestContext(c), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/federated
func (h *AuthHandler) FederatedSignIn(c *gin.Context) {
	var req federatedRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.flow.FederatedSignIn(requestContext(c), req.Assertion)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/password-reset
func (h *AuthHandler) InitiatePasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	challenge, err := h.flow.InitiatePasswordReset(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, challenge)
}

// POST /api/auth/password-reset/verify
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req verifyPasswordResetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.flow.CompletePasswordReset(requestContext(c), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	account, err := h.accounts.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, account)
}

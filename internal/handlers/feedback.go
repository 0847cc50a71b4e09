package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/middleware"
	"github.com/agrigpt/backend/internal/services"
	"github.com/agrigpt/backend/pkg/response"
)

// FeedbackHandler accepts feedback from users and guests.
type FeedbackHandler struct {
	feedback *services.FeedbackService
}

func NewFeedbackHandler(feedback *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

type feedbackRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"omitempty,email"`
	Message string `json:"message" validate:"required,max=2000"`
}

// POST /api/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req feedbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// Guest submissions are stored without an account reference.
	submitter, _ := middleware.AccountID(c)
	if submitter == database.GuestAccountID {
		submitter = ""
	}

	entry, err := h.feedback.Submit(requestContext(c), submitter, services.FeedbackInput{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, entry)
}

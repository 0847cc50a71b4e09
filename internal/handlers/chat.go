package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/internal/services"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/response"
)

// ChatHandler exposes the conversational endpoints. Asking is open to guests;
// session management requires an account.
type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type askRequest struct {
	SessionID    string `json:"session_id" validate:"omitempty,uuid4"`
	Question     string `json:"question" validate:"required,max=2000"`
	Language     string `json:"language" validate:"omitempty,max=20"`
	ResponseType string `json:"response_type" validate:"omitempty,max=30"`
}

// POST /api/chat/ask
func (h *ChatHandler) Ask(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req askRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.chat.Ask(requestContext(c), id, services.AskInput{
		SessionID:    req.SessionID,
		Question:     req.Question,
		Language:     req.Language,
		ResponseType: req.ResponseType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, message)
}

// POST /api/voice
//
// Accepts a multipart form with an "audio" file and an optional "session_id"
// field. The transcript is answered and stored like a typed question.
func (h *ChatHandler) Voice(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("Audio file is required"))
		return
	}
	defer file.Close()

	message, err := h.chat.AskVoice(requestContext(c), id, services.VoiceInput{
		SessionID: c.PostForm("session_id"),
		Audio:     file,
		Filename:  header.Filename,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, message)
}

// GET /api/history
func (h *ChatHandler) History(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	messages, err := h.chat.History(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, messages)
}

// GET /api/chat/sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	sessions, err := h.chat.ListSessions(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessions)
}

// GET /api/chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	session, err := h.chat.GetSession(requestContext(c), id, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// DELETE /api/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(requestContext(c), id, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

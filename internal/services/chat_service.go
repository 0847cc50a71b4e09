package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
)

const sessionTitleLimit = 60

// ChatPrompt carries one user question to the response generator.
type ChatPrompt struct {
	Question     string
	Language     string
	ResponseType string
	History      []models.ChatMessage
}

// Responder produces the conversational answer for a prompt. The language
// model integration lives behind this interface.
type Responder interface {
	Respond(ctx context.Context, prompt ChatPrompt) (string, error)
}

// Transcript is the text recovered from an uploaded recording.
type Transcript struct {
	Text     string
	Language string
}

// Transcriber converts recorded speech to text. The speech-to-text
// integration lives behind this interface.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcript, error)
}

// AskInput carries a chat request into the service.
type AskInput struct {
	SessionID    string
	Question     string
	Language     string
	ResponseType string
}

// VoiceInput carries an uploaded recording into the service.
type VoiceInput struct {
	SessionID string
	Audio     io.Reader
	Filename  string
}

// ChatService manages conversations and delegates answer generation to the
// configured Responder.
type ChatService struct {
	db          *gorm.DB
	responder   Responder
	transcriber Transcriber
	log         *zap.Logger
}

// ChatOption customises a ChatService.
type ChatOption func(*ChatService)

// WithTranscriber enables voice input by supplying a speech-to-text backend.
func WithTranscriber(t Transcriber) ChatOption {
	return func(s *ChatService) {
		s.transcriber = t
	}
}

// NewChatService constructs a ChatService instance.
func NewChatService(db *gorm.DB, responder Responder, opts ...ChatOption) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	if responder == nil {
		return nil, errors.New("chat service: responder is required")
	}
	s := &ChatService{
		db:        db,
		responder: responder,
		log:       logger.WithModule("services.chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask answers a question within a session, creating the session on first use.
// Sessions are owned: asking into someone else's session is a 404, never a
// cross-account read.
func (s *ChatService) Ask(ctx context.Context, accountID string, input AskInput) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, apperrors.NewBadRequest("Question is required")
	}

	var session *models.ChatSession
	var err error
	if input.SessionID != "" {
		session, err = s.ownedSession(ctx, accountID, input.SessionID)
	} else {
		session, err = s.createSession(ctx, accountID, question)
	}
	if err != nil {
		return nil, err
	}

	var history []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	answer, err := s.responder.Respond(ctx, ChatPrompt{
		Question:     question,
		Language:     input.Language,
		ResponseType: input.ResponseType,
		History:      history,
	})
	if err != nil {
		s.log.Error("responder failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	message := &models.ChatMessage{
		SessionID:    session.ID,
		AccountID:    accountID,
		Question:     question,
		Answer:       answer,
		ResponseType: input.ResponseType,
		Language:     input.Language,
	}
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return message, nil
}

// AskVoice transcribes an uploaded recording and answers it like a typed
// question. The transcript becomes the stored question, so voice turns are
// indistinguishable from text turns in the history.
func (s *ChatService) AskVoice(ctx context.Context, accountID string, input VoiceInput) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	if s.transcriber == nil {
		return nil, apperrors.NewBadRequest("Voice input is not enabled on this server")
	}
	if input.Audio == nil {
		return nil, apperrors.NewBadRequest("Audio file is required")
	}

	transcript, err := s.transcriber.Transcribe(ctx, input.Audio, input.Filename)
	if err != nil {
		// Backends may reject input with a client-visible typed error;
		// anything else is a processing fault.
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.log.Error("transcription failed",
			zap.String("filename", input.Filename),
			zap.Error(err))
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, apperrors.NewBadRequest("No speech detected in the recording")
	}

	return s.Ask(ctx, accountID, AskInput{
		SessionID: input.SessionID,
		Question:  transcript.Text,
		Language:  transcript.Language,
	})
}

// History returns every message the account has exchanged across sessions,
// newest first.
func (s *ChatService) History(ctx context.Context, accountID string) ([]models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return messages, nil
}

// ListSessions returns the account's sessions, newest first.
func (s *ChatService) ListSessions(ctx context.Context, accountID string) ([]models.ChatSession, error) {
	ctx = ensureContext(ctx)

	var sessions []models.ChatSession
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return sessions, nil
}

// GetSession returns one owned session with its messages in order.
func (s *ChatService) GetSession(ctx context.Context, accountID, sessionID string) (*models.ChatSession, error) {
	ctx = ensureContext(ctx)

	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&session.Messages).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return session, nil
}

// DeleteSession removes an owned session and its messages.
func (s *ChatService) DeleteSession(ctx context.Context, accountID, sessionID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.ownedSession(ctx, accountID, sessionID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error; err != nil {
			return apperrors.ErrInternalServer.WithInternal(err)
		}
		if err := tx.Delete(&models.ChatSession{}, "id = ?", sessionID).Error; err != nil {
			return apperrors.ErrInternalServer.WithInternal(err)
		}
		return nil
	})
}

func (s *ChatService) createSession(ctx context.Context, accountID, firstQuestion string) (*models.ChatSession, error) {
	session := &models.ChatSession{
		AccountID: accountID,
		Title:     sessionTitle(firstQuestion),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return session, nil
}

func (s *ChatService) ownedSession(ctx context.Context, accountID, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).
		Take(&session, "id = ? AND account_id = ?", sessionID, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &session, nil
}

func sessionTitle(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	if utf8.RuneCountInString(title) <= sessionTitleLimit {
		return title
	}
	runes := []rune(title)
	return string(runes[:sessionTitleLimit])
}

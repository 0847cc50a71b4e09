package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
)

// FeedbackInput carries one feedback submission.
type FeedbackInput struct {
	Name    string
	Email   string
	Message string
}

// FeedbackService records user feedback and serves it to developers.
type FeedbackService struct {
	db *gorm.DB
}

// NewFeedbackService constructs a FeedbackService instance.
func NewFeedbackService(db *gorm.DB) (*FeedbackService, error) {
	if db == nil {
		return nil, errors.New("feedback service: db is required")
	}
	return &FeedbackService{db: db}, nil
}

// Submit stores a feedback entry. accountID may be empty for anonymous
// submissions.
func (s *FeedbackService) Submit(ctx context.Context, accountID string, input FeedbackInput) (*models.Feedback, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Message = strings.TrimSpace(input.Message)
	if input.Name == "" || input.Message == "" {
		return nil, apperrors.NewBadRequest("Name and message are required")
	}

	feedback := &models.Feedback{
		Name:    input.Name,
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Message: input.Message,
	}
	if accountID != "" {
		feedback.AccountID = &accountID
	}

	if err := s.db.WithContext(ctx).Create(feedback).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return feedback, nil
}

// List returns all feedback, newest first. Exposed only to developers.
func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	ctx = ensureContext(ctx)

	var entries []models.Feedback
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&entries).Error
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return entries, nil
}

package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
)

// DeveloperService manages developer grants. Grants are keyed by account id;
// the email on the row is a convenience copy for operators reading the table.
type DeveloperService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewDeveloperService constructs a DeveloperService instance.
func NewDeveloperService(db *gorm.DB) (*DeveloperService, error) {
	if db == nil {
		return nil, errors.New("developer service: db is required")
	}
	return &DeveloperService{
		db:  db,
		log: logger.WithModule("services.developer"),
	}, nil
}

// IsDeveloper reports whether the account holds a grant.
func (s *DeveloperService) IsDeveloper(ctx context.Context, accountID string) (bool, error) {
	ctx = ensureContext(ctx)
	if accountID == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.DeveloperGrant{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantByEmail elevates the account registered under the email. Granting
// twice is a no-op.
func (s *DeveloperService) GrantByEmail(ctx context.Context, email string) (*models.DeveloperGrant, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NewBadRequest("Email is required")
	}

	var account models.Account
	if err := s.db.WithContext(ctx).Take(&account, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("No account exists for this email")
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	grant := &models.DeveloperGrant{AccountID: account.ID, Email: account.Email}
	err := s.db.WithContext(ctx).
		Where("account_id = ?", account.ID).
		FirstOrCreate(grant).Error
	if err != nil {
		if database.IsUniqueConstraintError(err) {
			return grant, nil
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	s.log.Info("developer grant added",
		zap.String("account_id", account.ID),
		zap.String("email", account.Email))
	return grant, nil
}

// RevokeByEmail removes the grant for the account registered under the email.
func (s *DeveloperService) RevokeByEmail(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperrors.NewBadRequest("Email is required")
	}

	var account models.Account
	if err := s.db.WithContext(ctx).Take(&account, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("No account exists for this email")
		}
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	result := s.db.WithContext(ctx).
		Where("account_id = ?", account.ID).
		Delete(&models.DeveloperGrant{})
	if result.Error != nil {
		return apperrors.ErrInternalServer.WithInternal(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound.WithMessage("This account holds no developer grant")
	}

	s.log.Info("developer grant revoked", zap.String("account_id", account.ID))
	return nil
}

// List returns all grants, oldest first.
func (s *DeveloperService) List(ctx context.Context) ([]models.DeveloperGrant, error) {
	ctx = ensureContext(ctx)

	var grants []models.DeveloperGrant
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&grants).Error
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return grants, nil
}

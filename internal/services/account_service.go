package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	"github.com/agrigpt/backend/pkg/crypto"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
)

// UpdateProfileInput enumerates mutable profile attributes. Nil fields are
// left untouched.
type UpdateProfileInput struct {
	Email          *string
	DisplayName    *string
	ProfilePicture *string
}

// DeletionReport counts the records removed by an account deletion.
type DeletionReport struct {
	ChatSessions int64 `json:"chat_sessions"`
	ChatMessages int64 `json:"chat_messages"`
	Reports      int64 `json:"reports"`
}

// AccountService manages profile and credential mutations on existing
// accounts. Account creation stays with the authentication flow.
type AccountService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(db *gorm.DB) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{
		db:  db,
		log: logger.WithModule("services.account"),
	}, nil
}

// Get fetches an account by id.
func (s *AccountService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	var account models.Account
	err := s.db.WithContext(ctx).Take(&account, "id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &account, nil
}

// UpdateProfile applies the supplied profile changes. An email move fails
// with EmailTaken when the address belongs to a different account; renaming
// to the current address is a no-op, not a conflict.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	account, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewBadRequest("Email cannot be empty")
		}
		if email != account.Email {
			var count int64
			err := s.db.WithContext(ctx).Model(&models.Account{}).
				Where("email = ? AND id <> ?", email, accountID).
				Count(&count).Error
			if err != nil {
				return nil, apperrors.ErrInternalServer.WithInternal(err)
			}
			if count > 0 {
				return nil, apperrors.ErrEmailTaken
			}
			updates["email"] = email
			account.Email = email
		}
	}

	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
		account.DisplayName = strings.TrimSpace(*input.DisplayName)
	}

	if input.ProfilePicture != nil {
		updates["profile_picture"] = *input.ProfilePicture
		account.ProfilePicture = *input.ProfilePicture
	}

	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		// The uniqueness check above races with concurrent renames; the
		// index is the final arbiter.
		if database.IsUniqueConstraintError(err) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if len(newPassword) < minPasswordLength {
		return apperrors.NewBadRequest("Password must be at least 6 characters")
	}

	account, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}

	if !account.HasPassword() || !crypto.VerifyPassword(*account.PasswordHash, currentPassword) {
		return apperrors.ErrWrongPassword
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if err := s.db.WithContext(ctx).Model(account).Update("password_hash", hash).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	s.log.Info("password changed", zap.String("account_id", accountID))
	return nil
}

// SetPassword adds a password to an account that so far only signs in through
// the identity provider. It is additive: the federated provider stays linked,
// and an account that already has local credentials is rejected so this can
// never act as a silent password reset.
func (s *AccountService) SetPassword(ctx context.Context, accountID, newPassword string) error {
	ctx = ensureContext(ctx)

	if len(newPassword) < minPasswordLength {
		return apperrors.NewBadRequest("Password must be at least 6 characters")
	}

	account, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}

	if !account.HasProvider(models.ProviderFederated) || account.HasProvider(models.ProviderLocal) || account.HasPassword() {
		return apperrors.ErrNotFederatedAccount
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	updates := map[string]any{
		"password_hash":  hash,
		"auth_providers": account.WithProvider(models.ProviderLocal),
	}
	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	s.log.Info("password added to federated account", zap.String("account_id", accountID))
	return nil
}

// Delete removes the account and everything it owns. The cascade runs inside
// a transaction: if the account row itself cannot be deleted the whole
// operation fails, and success is never reported for a partial cleanup.
func (s *AccountService) Delete(ctx context.Context, accountID string) (*DeletionReport, error) {
	ctx = ensureContext(ctx)

	if accountID == database.GuestAccountID {
		return nil, apperrors.NewBadRequest("The guest account cannot be deleted")
	}

	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}

	report := &DeletionReport{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("account_id = ?", accountID).Delete(&models.ChatMessage{})
		if res.Error != nil {
			return res.Error
		}
		report.ChatMessages = res.RowsAffected

		res = tx.Where("account_id = ?", accountID).Delete(&models.ChatSession{})
		if res.Error != nil {
			return res.Error
		}
		report.ChatSessions = res.RowsAffected

		res = tx.Where("account_id = ?", accountID).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		report.Reports = res.RowsAffected

		// Feedback survives anonymised; it is product input, not user data.
		if err := tx.Model(&models.Feedback{}).
			Where("account_id = ?", accountID).
			Update("account_id", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("account_id = ?", accountID).Delete(&models.DeveloperGrant{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Account{}, "id = ?", accountID).Error
	})
	if err != nil {
		s.log.Error("account deletion failed",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	s.log.Info("account deleted",
		zap.String("account_id", accountID),
		zap.Int64("chat_sessions", report.ChatSessions),
		zap.Int64("chat_messages", report.ChatMessages),
		zap.Int64("reports", report.Reports))

	return report, nil
}

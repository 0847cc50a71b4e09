package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth/federated"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
)

// ReconcileService maps a verified federated identity onto exactly one local
// account. The provider UID is the primary key of the mapping; email is only
// consulted when the UID has never been seen.
type ReconcileService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(db *gorm.DB) (*ReconcileService, error) {
	if db == nil {
		return nil, errors.New("reconcile service requires database")
	}

	return &ReconcileService{
		db:  db,
		log: logger.WithModule("auth.reconcile"),
	}, nil
}

// Reconcile resolves the identity to a local account, creating or linking as
// needed. The decision ladder:
//
//  1. An account already bound to the provider UID wins outright.
//  2. Otherwise an account with the same email is linked, unless it is a
//     password-only account, which requires an explicit linking step and
//     yields ErrLinkingRequired.
//  3. Otherwise a fresh federated-only account is created.
//
// Repeated calls with the same identity converge on the same account.
func (s *ReconcileService) Reconcile(ctx context.Context, identity *federated.Identity) (*models.Account, error) {
	ctx = ensureContext(ctx)
	if identity == nil || identity.UID == "" {
		return nil, apperrors.ErrInvalidAssertion
	}

	email := NormalizeEmail(identity.Email)
	if email == "" {
		return nil, apperrors.ErrInvalidAssertion
	}

	account, err := s.findByFederatedUID(ctx, identity.UID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return s.refresh(ctx, account, identity)
	}

	account, err = s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return s.link(ctx, account, identity)
	}

	created, err := s.create(ctx, email, identity)
	if err == nil {
		return created, nil
	}

	// A concurrent request may have created the account between the lookup
	// and the insert. Retry the resolution once off the fresh state.
	if database.IsUniqueConstraintError(err) {
		s.log.Debug("account creation raced, retrying resolution", zap.String("email", email))

		if account, lookupErr := s.findByFederatedUID(ctx, identity.UID); lookupErr == nil && account != nil {
			return s.refresh(ctx, account, identity)
		}
		if account, lookupErr := s.findByEmail(ctx, email); lookupErr == nil && account != nil {
			return s.link(ctx, account, identity)
		}
	}

	return nil, apperrors.ErrInternalServer.WithInternal(err)
}

func (s *ReconcileService) findByFederatedUID(ctx context.Context, uid string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("federated_uid = ?", uid).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &account, nil
}

func (s *ReconcileService) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &account, nil
}

// refresh backfills the provider label and profile fields on an account the
// UID already resolves to.
func (s *ReconcileService) refresh(ctx context.Context, account *models.Account, identity *federated.Identity) (*models.Account, error) {
	updates := map[string]any{}
	if !account.HasProvider(models.ProviderFederated) {
		account.AuthProviders = account.WithProvider(models.ProviderFederated)
		updates["auth_providers"] = account.AuthProviders
	}
	if account.DisplayName == "" && identity.DisplayName != "" {
		account.DisplayName = identity.DisplayName
		updates["display_name"] = identity.DisplayName
	}
	if account.ProfilePicture == "" && identity.Picture != "" {
		account.ProfilePicture = identity.Picture
		updates["profile_picture"] = identity.Picture
	}
	if len(updates) == 0 {
		return account, nil
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return account, nil
}

// link binds the provider UID to an existing account that shares the email.
// Accounts that never federated before are not merged implicitly; anyone
// controlling the provider-side email could otherwise bypass the password.
func (s *ReconcileService) link(ctx context.Context, account *models.Account, identity *federated.Identity) (*models.Account, error) {
	if !account.HasProvider(models.ProviderFederated) {
		return nil, apperrors.ErrLinkingRequired
	}

	account.AuthProviders = account.WithProvider(models.ProviderFederated)
	updates := map[string]any{
		"federated_uid":  identity.UID,
		"auth_providers": account.AuthProviders,
	}
	if account.DisplayName == "" && identity.DisplayName != "" {
		account.DisplayName = identity.DisplayName
		updates["display_name"] = identity.DisplayName
	}
	if account.ProfilePicture == "" && identity.Picture != "" {
		account.ProfilePicture = identity.Picture
		updates["profile_picture"] = identity.Picture
	}

	if err := s.db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, apperrors.ErrInvalidAssertion.WithInternal(err)
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	uid := identity.UID
	account.FederatedUID = &uid
	return account, nil
}

func (s *ReconcileService) create(ctx context.Context, email string, identity *federated.Identity) (*models.Account, error) {
	uid := identity.UID
	account := &models.Account{
		Email:          email,
		FederatedUID:   &uid,
		AuthProviders:  models.ProviderSet(models.ProviderFederated),
		DisplayName:    identity.DisplayName,
		ProfilePicture: identity.Picture,
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}

	s.log.Info("created federated account", zap.String("account_id", account.ID))
	return account, nil
}

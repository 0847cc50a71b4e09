package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth/federated"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	"github.com/agrigpt/backend/pkg/crypto"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
	"github.com/agrigpt/backend/pkg/metrics"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// OTPChallenge is the caller-facing reference to an issued code. The code
// itself travels out of band.
type OTPChallenge struct {
	Reference string            `json:"reference"`
	Email     string            `json:"email"`
	Purpose   models.OTPPurpose `json:"purpose"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// AuthResult is the outcome of a completed authentication.
type AuthResult struct {
	Account *models.Account `json:"account"`
	Token   string          `json:"token"`
}

// FlowService orchestrates the multi-step signup and login protocol plus
// federated sign-in. Accounts are only ever created here and in the
// reconciler, never by feature code.
type FlowService struct {
	db         *gorm.DB
	otp        *OTPService
	jwt        *JWTService
	reconciler *ReconcileService
	verifier   federated.Verifier
	now        func() time.Time
	log        *zap.Logger
}

// FlowOption customises a FlowService.
type FlowOption func(*FlowService)

// WithFlowClock overrides the service clock, used by tests.
func WithFlowClock(clock func() time.Time) FlowOption {
	return func(s *FlowService) { s.now = clock }
}

// WithFederatedVerifier attaches the verifier used for federated sign-in.
func WithFederatedVerifier(v federated.Verifier) FlowOption {
	return func(s *FlowService) { s.verifier = v }
}

// NewFlowService constructs a FlowService.
func NewFlowService(db *gorm.DB, otp *OTPService, jwt *JWTService, opts ...FlowOption) (*FlowService, error) {
	if db == nil {
		return nil, errors.New("flow service requires database")
	}
	if otp == nil {
		return nil, errors.New("flow service requires otp service")
	}
	if jwt == nil {
		return nil, errors.New("flow service requires jwt service")
	}

	reconciler, err := NewReconcileService(db)
	if err != nil {
		return nil, err
	}

	svc := &FlowService{
		db:         db,
		otp:        otp,
		jwt:        jwt,
		reconciler: reconciler,
		now:        time.Now,
		log:        logger.WithModule("auth.flow"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// InitiateSignup starts the two-phase signup. The account is not created yet;
// the email stays unclaimed until the code verifies, so unverified addresses
// never occupy the unique-email namespace.
func (s *FlowService) InitiateSignup(ctx context.Context, email, password string) (*OTPChallenge, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)

	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		metrics.AuthAttempts.WithLabelValues("signup", "failure").Inc()
		return nil, apperrors.ErrAccountExists
	}

	record, err := s.otp.Issue(ctx, email, models.OTPPurposeSignup)
	if err != nil {
		return nil, err
	}

	return challengeFrom(record), nil
}

// CompleteSignup consumes the code and performs the atomic account creation.
// The unique index on email is the arbiter under concurrent verified signups:
// exactly one create wins, the rest observe AccountExists.
func (s *FlowService) CompleteSignup(ctx context.Context, email, code, password, displayName string) (*AuthResult, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)

	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, email, code, models.OTPPurposeSignup); err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "failure").Inc()
		return nil, err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	now := s.now()
	account := &models.Account{
		Email:         email,
		PasswordHash:  &hash,
		AuthProviders: models.ProviderSet(models.ProviderLocal),
		DisplayName:   displayName,
		LastLoginAt:   &now,
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "failure").Inc()
		if database.IsUniqueConstraintError(err) {
			return nil, apperrors.ErrAccountExists
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	token, err := s.jwt.Issue(account.ID)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.AuthAttempts.WithLabelValues("signup", "success").Inc()
	s.log.Info("account created", zap.String("account_id", account.ID))

	return &AuthResult{Account: account, Token: token}, nil
}

// InitiateLogin checks the password and, on success, issues the second-factor
// code instead of a token.
func (s *FlowService) InitiateLogin(ctx context.Context, email, password string) (*OTPChallenge, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, apperrors.ErrNotRegistered
	}

	if !account.HasPassword() {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		if account.HasProvider(models.ProviderFederated) {
			return nil, apperrors.ErrNoPasswordSet.WithMessage(
				"This account signs in with its identity provider; use federated sign-in or set a password first")
		}
		return nil, apperrors.ErrNoPasswordSet
	}

	if !crypto.VerifyPassword(*account.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	record, err := s.otp.Issue(ctx, email, models.OTPPurposeLogin)
	if err != nil {
		return nil, err
	}

	return challengeFrom(record), nil
}

// CompleteLogin consumes the second-factor code, stamps the login time and
// issues the session token.
func (s *FlowService) CompleteLogin(ctx context.Context, email, code string) (*AuthResult, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)

	if err := s.otp.Verify(ctx, email, code, models.OTPPurposeLogin); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, err
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, apperrors.ErrNotRegistered
	}

	if err := s.stampLogin(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.jwt.Issue(account.ID)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	return &AuthResult{Account: account, Token: token}, nil
}

// FederatedSignIn verifies the provider assertion, reconciles it to a local
// account and issues a session token. OTP is bypassed; the provider already
// authenticated the user.
func (s *FlowService) FederatedSignIn(ctx context.Context, assertion string) (*AuthResult, error) {
	ctx = ensureContext(ctx)
	if s.verifier == nil {
		return nil, apperrors.ErrInternalServer.WithInternal(errors.New("no federated verifier configured"))
	}

	identity, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("federated", "failure").Inc()
		return nil, err
	}

	account, err := s.reconciler.Reconcile(ctx, identity)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("federated", "failure").Inc()
		return nil, err
	}

	if err := s.stampLogin(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.jwt.Issue(account.ID)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.AuthAttempts.WithLabelValues("federated", "success").Inc()
	return &AuthResult{Account: account, Token: token}, nil
}

// InitiatePasswordReset issues a reset code for a registered email.
func (s *FlowService) InitiatePasswordReset(ctx context.Context, email string) (*OTPChallenge, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("Email is required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.ErrNotRegistered
	}

	record, err := s.otp.Issue(ctx, email, models.OTPPurposePasswordReset)
	if err != nil {
		return nil, err
	}

	return challengeFrom(record), nil
}

// CompletePasswordReset consumes the reset code and replaces the password.
// The local provider label is added so the account can log in with the new
// password even if it was federated-only before.
func (s *FlowService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)

	if len(newPassword) < MinPasswordLength {
		return apperrors.NewBadRequest("Password must be at least 6 characters")
	}

	if err := s.otp.Verify(ctx, email, code, models.OTPPurposePasswordReset); err != nil {
		return err
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.ErrNotRegistered
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

	s.log.Info("password reset completed", zap.String("account_id", account.ID))
	return nil
}

func (s *FlowService) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, apperrors.ErrInternalServer.WithInternal(err)
	}
	return count > 0, nil
}

func (s *FlowService) findByEmail(ctx context.Context, email string) (*models.Account, error) {
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

func (s *FlowService) stampLogin(ctx context.Context, account *models.Account) error {
	now := s.now()
	account.LastLoginAt = &now
	err := s.db.WithContext(ctx).Model(account).Update("last_login_at", now).Error
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}
	return nil
}

func validateCredentials(email, password string) error {
	if email == "" {
		return apperrors.NewBadRequest("Email is required")
	}
	if len(password) < MinPasswordLength {
		return apperrors.NewBadRequest("Password must be at least 6 characters")
	}
	return nil
}

func challengeFrom(record *models.OTPCode) *OTPChallenge {
	return &OTPChallenge{
		Reference: record.ID,
		Email:     record.Email,
		Purpose:   record.Purpose,
		ExpiresAt: record.ExpiresAt,
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/models"
	"github.com/agrigpt/backend/pkg/crypto"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
	"github.com/agrigpt/backend/pkg/mail"
	"github.com/agrigpt/backend/pkg/metrics"
)

// Defaults for one-time code issuance.
const (
	DefaultOTPDigits = 6
	DefaultOTPExpiry = 10 * time.Minute
)

// OTPConfig bundles the configuration for an OTPService.
type OTPConfig struct {
	Digits int
	Expiry time.Duration
	Clock  func() time.Time
}

// OTPService manages the one-time code ledger: issuing codes, verifying and
// consuming them, and sweeping expired rows.
type OTPService struct {
	db     *gorm.DB
	mailer mail.Mailer
	digits int
	expiry time.Duration
	now    func() time.Time
}

// OTPOption customises an OTPService.
type OTPOption func(*OTPService)

// WithOTPMailer attaches a mailer used to deliver issued codes.
func WithOTPMailer(m mail.Mailer) OTPOption {
	return func(s *OTPService) { s.mailer = m }
}

// NewOTPService constructs an OTPService backed by the given database.
func NewOTPService(db *gorm.DB, cfg OTPConfig, opts ...OTPOption) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service requires database")
	}

	svc := &OTPService{
		db:     db,
		digits: cfg.Digits,
		expiry: cfg.Expiry,
		now:    time.Now,
	}
	if svc.digits <= 0 {
		svc.digits = DefaultOTPDigits
	}
	if svc.expiry <= 0 {
		svc.expiry = DefaultOTPExpiry
	}
	if cfg.Clock != nil {
		svc.now = cfg.Clock
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Issue creates a fresh code for the email and purpose. Any outstanding
// unconsumed codes for the same pair are invalidated first, so only the most
// recently issued code can verify. Delivery is best effort: a mail failure is
// logged but never rolls back the ledger entry.
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("Email is required")
	}
	if !purpose.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Unknown code purpose %q", purpose))
	}

	code, err := crypto.GenerateNumericCode(s.digits)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	record := &models.OTPCode{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.expiry),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ? AND purpose = ? AND consumed = ?", email, purpose, false).
			Delete(&models.OTPCode{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.OTPCodesIssued.WithLabelValues(string(purpose)).Inc()

	s.deliver(ctx, record)

	return record, nil
}

// Verify checks the supplied code and consumes it on success. An unknown or
// already consumed code yields ErrInvalidOTP; a matching but expired code
// yields ErrOTPExpired and is left unconsumed for the sweep to collect.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) error {
	ctx = ensureContext(ctx)
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		metrics.OTPVerifications.WithLabelValues(string(purpose), "invalid").Inc()
		return apperrors.ErrInvalidOTP
	}

	var record models.OTPCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND purpose = ? AND consumed = ?", email, code, purpose, false).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.OTPVerifications.WithLabelValues(string(purpose), "invalid").Inc()
			return apperrors.ErrInvalidOTP
		}
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if s.now().After(record.ExpiresAt) {
		metrics.OTPVerifications.WithLabelValues(string(purpose), "expired").Inc()
		return apperrors.ErrOTPExpired
	}

	// Conditional update so two concurrent verifications cannot both
	// consume the same row.
	result := s.db.WithContext(ctx).
		Model(&models.OTPCode{}).
		Where("id = ? AND consumed = ?", record.ID, false).
		Update("consumed", true)
	if result.Error != nil {
		return apperrors.ErrInternalServer.WithInternal(result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.OTPVerifications.WithLabelValues(string(purpose), "invalid").Inc()
		return apperrors.ErrInvalidOTP
	}

	metrics.OTPVerifications.WithLabelValues(string(purpose), "success").Inc()
	return nil
}

// CleanupExpired removes codes past their expiry plus any consumed rows. It
// returns the number of rows deleted.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR consumed = ?", s.now(), true).
		Delete(&models.OTPCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup otp codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *OTPService) deliver(ctx context.Context, record *models.OTPCode) {
	if s.mailer == nil {
		return
	}

	msg := mail.Message{
		To:      []string{record.Email},
		Subject: otpSubject(record.Purpose),
		Body: fmt.Sprintf(
			"Your verification code is %s.\n\nIt expires in %d minutes. If you did not request this code, you can ignore this email.\n",
			record.Code, int(s.expiry.Minutes()),
		),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			logger.Debug("otp delivery skipped, smtp disabled",
				zap.String("email", record.Email),
				zap.String("purpose", string(record.Purpose)))
			return
		}
		logger.Error("failed to deliver otp email",
			zap.String("email", record.Email),
			zap.String("purpose", string(record.Purpose)),
			zap.Error(err))
	}
}

func otpSubject(purpose models.OTPPurpose) string {
	switch purpose {
	case models.OTPPurposeLogin:
		return "Your login verification code"
	case models.OTPPurposePasswordReset:
		return "Your password reset code"
	default:
		return "Your signup verification code"
	}
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive at every entry point.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth/federated"
	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
)

type stubVerifier struct {
	identity *federated.Identity
	err      error
}

func (v *stubVerifier) Verify(context.Context, string) (*federated.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

type flowFixture struct {
	db    *gorm.DB
	clock *fixedClock
	flow  *FlowService
}

func newFlowFixture(t *testing.T, opts ...FlowOption) *flowFixture {
	t.Helper()

	db := openTestDB(t)
	clock := newFixedClock()

	otp, err := NewOTPService(db, OTPConfig{Clock: clock.Now})
	require.NoError(t, err)

	jwt, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "agrigpt", Clock: clock.Now})
	require.NoError(t, err)

	opts = append([]FlowOption{WithFlowClock(clock.Now)}, opts...)
	flow, err := NewFlowService(db, otp, jwt, opts...)
	require.NoError(t, err)

	return &flowFixture{db: db, clock: clock, flow: flow}
}

func (f *flowFixture) codeFor(t *testing.T, challenge *OTPChallenge) string {
	t.Helper()

	var record models.OTPCode
	require.NoError(t, f.db.Take(&record, "id = ?", challenge.Reference).Error)
	return record.Code
}

func (f *flowFixture) signUp(t *testing.T, email, password, name string) *AuthResult {
	t.Helper()

	challenge, err := f.flow.InitiateSignup(context.Background(), email, password)
	require.NoError(t, err)

	result, err := f.flow.CompleteSignup(context.Background(), email, f.codeFor(t, challenge), password, name)
	require.NoError(t, err)
	return result
}

func TestSignupFlow(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	challenge, err := f.flow.InitiateSignup(ctx, "Farmer@Example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "farmer@example.com", challenge.Email)
	require.Equal(t, models.OTPPurposeSignup, challenge.Purpose)

	// The account does not exist until the code verifies.
	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Where("email = ?", "farmer@example.com").Count(&count).Error)
	require.Zero(t, count)

	code := f.codeFor(t, challenge)
	result, err := f.flow.CompleteSignup(ctx, "farmer@example.com", code, "secret1", "Farmer")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, []string{models.ProviderLocal}, result.Account.Providers())
	require.NotNil(t, result.Account.LastLoginAt)

	// Replaying the consumed code fails.
	_, err = f.flow.CompleteSignup(ctx, "farmer@example.com", code, "secret1", "Farmer")
	require.ErrorIs(t, err, apperrors.ErrInvalidOTP)
}

func TestInitiateSignupExistingAccount(t *testing.T) {
	f := newFlowFixture(t)
	f.signUp(t, "farmer@example.com", "secret1", "Farmer")

	_, err := f.flow.InitiateSignup(context.Background(), "farmer@example.com", "secret1")
	require.ErrorIs(t, err, apperrors.ErrAccountExists)
}

func TestInitiateSignupRejectsShortPassword(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.InitiateSignup(context.Background(), "farmer@example.com", "abc")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestCompleteSignupExpiredCode(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	challenge, err := f.flow.InitiateSignup(ctx, "farmer@example.com", "secret1")
	require.NoError(t, err)
	code := f.codeFor(t, challenge)

	f.clock.Advance(DefaultOTPExpiry + time.Second)

	_, err = f.flow.CompleteSignup(ctx, "farmer@example.com", code, "secret1", "Farmer")
	require.ErrorIs(t, err, apperrors.ErrOTPExpired)
}

func TestCompleteSignupLosesRaceToExistingAccount(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	challenge, err := f.flow.InitiateSignup(ctx, "farmer@example.com", "secret1")
	require.NoError(t, err)
	code := f.codeFor(t, challenge)

	// Another request claims the email between the checks.
	hash := "x"
	require.NoError(t, f.db.Create(&models.Account{
		Email:         "farmer@example.com",
		PasswordHash:  &hash,
		AuthProviders: models.ProviderSet(models.ProviderLocal),
	}).Error)

	_, err = f.flow.CompleteSignup(ctx, "farmer@example.com", code, "secret1", "Farmer")
	require.ErrorIs(t, err, apperrors.ErrAccountExists)

	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Where("email = ?", "farmer@example.com").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestLoginFlow(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	f.signUp(t, "farmer@example.com", "secret1", "Farmer")

	challenge, err := f.flow.InitiateLogin(ctx, "farmer@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, models.OTPPurposeLogin, challenge.Purpose)

	f.clock.Advance(time.Minute)

	result, err := f.flow.CompleteLogin(ctx, "farmer@example.com", f.codeFor(t, challenge))
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.NotNil(t, result.Account.LastLoginAt)
	require.Equal(t, f.clock.Now(), result.Account.LastLoginAt.UTC())
}

func TestInitiateLoginUnknownEmail(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.InitiateLogin(context.Background(), "stranger@example.com", "secret1")
	require.ErrorIs(t, err, apperrors.ErrNotRegistered)
}

func TestInitiateLoginWrongPassword(t *testing.T) {
	f := newFlowFixture(t)
	f.signUp(t, "farmer@example.com", "secret1", "Farmer")

	_, err := f.flow.InitiateLogin(context.Background(), "farmer@example.com", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestInitiateLoginFederatedOnlyAccount(t *testing.T) {
	f := newFlowFixture(t)

	uid := "prov-123"
	require.NoError(t, f.db.Create(&models.Account{
		Email:         "farmer@example.com",
		FederatedUID:  &uid,
		AuthProviders: models.ProviderSet(models.ProviderFederated),
	}).Error)

	_, err := f.flow.InitiateLogin(context.Background(), "farmer@example.com", "secret1")
	require.ErrorIs(t, err, apperrors.ErrNoPasswordSet)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Message, "identity provider")
}

func TestFederatedSignInCreatesAccount(t *testing.T) {
	identity := &federated.Identity{
		UID:           "prov-123",
		Email:         "farmer@example.com",
		EmailVerified: true,
		DisplayName:   "Farmer",
	}
	f := newFlowFixture(t, WithFederatedVerifier(&stubVerifier{identity: identity}))

	result, err := f.flow.FederatedSignIn(context.Background(), "assertion-token")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, []string{models.ProviderFederated}, result.Account.Providers())
	require.Nil(t, result.Account.PasswordHash)
	require.NotNil(t, result.Account.LastLoginAt)
}

func TestFederatedSignInLinkingRequired(t *testing.T) {
	identity := &federated.Identity{
		UID:           "prov-123",
		Email:         "farmer@example.com",
		EmailVerified: true,
	}
	f := newFlowFixture(t, WithFederatedVerifier(&stubVerifier{identity: identity}))
	f.signUp(t, "farmer@example.com", "secret1", "Farmer")

	_, err := f.flow.FederatedSignIn(context.Background(), "assertion-token")
	require.ErrorIs(t, err, apperrors.ErrLinkingRequired)
}

func TestFederatedSignInBadAssertion(t *testing.T) {
	f := newFlowFixture(t, WithFederatedVerifier(&stubVerifier{err: apperrors.ErrInvalidAssertion}))

	_, err := f.flow.FederatedSignIn(context.Background(), "garbage")
	require.ErrorIs(t, err, apperrors.ErrInvalidAssertion)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	f.signUp(t, "farmer@example.com", "secret1", "Farmer")

	challenge, err := f.flow.InitiatePasswordReset(ctx, "farmer@example.com")
	require.NoError(t, err)
	require.Equal(t, models.OTPPurposePasswordReset, challenge.Purpose)

	require.NoError(t, f.flow.CompletePasswordReset(ctx, "farmer@example.com", f.codeFor(t, challenge), "newsecret"))

	// The old password no longer works, the new one does.
	_, err = f.flow.InitiateLogin(ctx, "farmer@example.com", "secret1")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.flow.InitiateLogin(ctx, "farmer@example.com", "newsecret")
	require.NoError(t, err)
}

func TestInitiatePasswordResetUnknownEmail(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.InitiatePasswordReset(context.Background(), "stranger@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotRegistered)
}

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrigpt/backend/internal/auth/federated"
	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
)

func newTestReconcileService(t *testing.T) (*ReconcileService, *flowFixture) {
	t.Helper()

	f := newFlowFixture(t)
	svc, err := NewReconcileService(f.db)
	require.NoError(t, err)
	return svc, f
}

func testIdentity() *federated.Identity {
	return &federated.Identity{
		UID:           "prov-123",
		Email:         "farmer@example.com",
		EmailVerified: true,
		DisplayName:   "Farmer",
		Picture:       "https://example.com/p.png",
	}
}

func TestReconcileCreatesAccount(t *testing.T) {
	svc, _ := newTestReconcileService(t)

	account, err := svc.Reconcile(context.Background(), testIdentity())
	require.NoError(t, err)
	require.Equal(t, "farmer@example.com", account.Email)
	require.NotNil(t, account.FederatedUID)
	require.Equal(t, "prov-123", *account.FederatedUID)
	require.Equal(t, []string{models.ProviderFederated}, account.Providers())
	require.Nil(t, account.PasswordHash)
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, _ := newTestReconcileService(t)
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, testIdentity())
	require.NoError(t, err)

	second, err := svc.Reconcile(ctx, testIdentity())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, []string{models.ProviderFederated}, second.Providers())
}

func TestReconcileResolvesByUIDBeforeEmail(t *testing.T) {
	svc, f := newTestReconcileService(t)
	ctx := context.Background()

	account, err := svc.Reconcile(ctx, testIdentity())
	require.NoError(t, err)

	// The provider email changed; the UID still wins.
	moved := testIdentity()
	moved.Email = "renamed@example.com"

	resolved, err := svc.Reconcile(ctx, moved)
	require.NoError(t, err)
	require.Equal(t, account.ID, resolved.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Where("email LIKE ?", "%example.com").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestReconcileRebindsKnownFederatedAccount(t *testing.T) {
	svc, f := newTestReconcileService(t)
	ctx := context.Background()

	// An account that already federated keeps working even if its stored
	// UID binding was lost.
	require.NoError(t, f.db.Create(&models.Account{
		Email:         "farmer@example.com",
		AuthProviders: models.ProviderSet(models.ProviderLocal, models.ProviderFederated),
	}).Error)

	account, err := svc.Reconcile(ctx, testIdentity())
	require.NoError(t, err)
	require.NotNil(t, account.FederatedUID)
	require.Equal(t, "prov-123", *account.FederatedUID)
	require.ElementsMatch(t, []string{models.ProviderLocal, models.ProviderFederated}, account.Providers())
}

func TestReconcileRefusesPasswordOnlyCollision(t *testing.T) {
	svc, f := newTestReconcileService(t)

	hash := "stored-hash"
	require.NoError(t, f.db.Create(&models.Account{
		Email:         "farmer@example.com",
		PasswordHash:  &hash,
		AuthProviders: models.ProviderSet(models.ProviderLocal),
	}).Error)

	_, err := svc.Reconcile(context.Background(), testIdentity())
	require.ErrorIs(t, err, apperrors.ErrLinkingRequired)

	// No new account appeared and the existing one was left untouched.
	var count int64
	require.NoError(t, f.db.Model(&models.Account{}).Where("email = ?", "farmer@example.com").Count(&count).Error)
	require.Equal(t, int64(1), count)

	var existing models.Account
	require.NoError(t, f.db.Take(&existing, "email = ?", "farmer@example.com").Error)
	require.Nil(t, existing.FederatedUID)
	require.Equal(t, []string{models.ProviderLocal}, existing.Providers())
}

func TestReconcileBackfillsProfileFields(t *testing.T) {
	svc, f := newTestReconcileService(t)
	ctx := context.Background()

	uid := "prov-123"
	require.NoError(t, f.db.Create(&models.Account{
		Email:         "farmer@example.com",
		FederatedUID:  &uid,
		AuthProviders: models.ProviderSet(models.ProviderFederated),
	}).Error)

	account, err := svc.Reconcile(ctx, testIdentity())
	require.NoError(t, err)
	require.Equal(t, "Farmer", account.DisplayName)
	require.Equal(t, "https://example.com/p.png", account.ProfilePicture)

	// Existing profile fields are never overwritten.
	changed := testIdentity()
	changed.DisplayName = "Somebody Else"

	account, err = svc.Reconcile(ctx, changed)
	require.NoError(t, err)
	require.Equal(t, "Farmer", account.DisplayName)
}

func TestReconcileRejectsEmptyIdentity(t *testing.T) {
	svc, _ := newTestReconcileService(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidAssertion)

	_, err = svc.Reconcile(ctx, &federated.Identity{Email: "farmer@example.com"})
	require.ErrorIs(t, err, apperrors.ErrInvalidAssertion)

	_, err = svc.Reconcile(ctx, &federated.Identity{UID: "prov-123"})
	require.ErrorIs(t, err, apperrors.ErrInvalidAssertion)
}

package services

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	"github.com/agrigpt/backend/pkg/crypto"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrateAndSeed(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createAccount(t *testing.T, db *gorm.DB, email, password string) *models.Account {
	t.Helper()

	account := &models.Account{
		Email:         email,
		AuthProviders: models.ProviderSet(models.ProviderLocal),
		DisplayName:   "Test User",
	}
	if password != "" {
		hash, err := crypto.HashPassword(password)
		require.NoError(t, err)
		account.PasswordHash = &hash
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func createFederatedAccount(t *testing.T, db *gorm.DB, email, uid string) *models.Account {
	t.Helper()

	account := &models.Account{
		Email:         email,
		FederatedUID:  &uid,
		AuthProviders: models.ProviderSet(models.ProviderFederated),
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// staticResponder answers every prompt with a fixed string.
type staticResponder struct {
	answer string
	err    error
	seen   []ChatPrompt
}

func (r *staticResponder) Respond(_ context.Context, prompt ChatPrompt) (string, error) {
	r.seen = append(r.seen, prompt)
	if r.err != nil {
		return "", r.err
	}
	return r.answer, nil
}

// staticTranscriber returns a fixed transcript for any recording.
type staticTranscriber struct {
	text     string
	language string
	err      error
}

func (tr *staticTranscriber) Transcribe(context.Context, io.Reader, string) (*Transcript, error) {
	if tr.err != nil {
		return nil, tr.err
	}
	return &Transcript{Text: tr.text, Language: tr.language}, nil
}

// staticGenerator returns a fixed report payload.
type staticGenerator struct {
	payload datatypes.JSON
	err     error
}

func (g *staticGenerator) Generate(context.Context, ReportRequest) (datatypes.JSON, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.payload, nil
}

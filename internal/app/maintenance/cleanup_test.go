package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateAndSeed(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestRunOnceSweepsExpiredCodes(t *testing.T) {
	db := openTestDB(t)

	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	otp, err := auth.NewOTPService(db, auth.OTPConfig{Clock: func() time.Time { return clock }})
	require.NoError(t, err)

	_, err = otp.Issue(context.Background(), "stale@example.com", models.OTPPurposeLogin)
	require.NoError(t, err)

	clock = clock.Add(time.Hour)

	cleaner := NewCleaner(db, otp, WithNow(func() time.Time { return clock }))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.OTPCode{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanupGuestChats(t *testing.T) {
	db := openTestDB(t)

	old := &models.ChatSession{AccountID: database.GuestAccountID, Title: "old"}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(&models.ChatMessage{
		SessionID: old.ID,
		AccountID: database.GuestAccountID,
		Question:  "q",
	}).Error)

	// Backdate the old session past the cutoff.
	past := time.Now().AddDate(0, 0, -60)
	require.NoError(t, db.Model(old).Update("created_at", past).Error)

	fresh := &models.ChatSession{AccountID: database.GuestAccountID, Title: "fresh"}
	require.NoError(t, db.Create(fresh).Error)

	owned := &models.ChatSession{AccountID: "some-account", Title: "owned"}
	require.NoError(t, db.Create(owned).Error)
	require.NoError(t, db.Model(owned).Update("created_at", past).Error)

	stats, err := CleanupGuestChats(context.Background(), db, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Sessions)
	require.Equal(t, int64(1), stats.Messages)

	var remaining []models.ChatSession
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)

	// Only the guest session aged out; owned history is untouched.
	for _, s := range remaining {
		require.NotEqual(t, "old", s.Title)
	}
}

func TestCleanerStartAndStop(t *testing.T) {
	db := openTestDB(t)
	otp, err := auth.NewOTPService(db, auth.OTPConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(db, otp, WithOTPSchedule("@every 1h"), WithGuestSchedule("@every 24h"))
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

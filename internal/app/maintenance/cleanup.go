package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/database"
	"github.com/agrigpt/backend/internal/models"
	"github.com/agrigpt/backend/pkg/logger"
)

const (
	defaultGuestRetentionDays = 30
	defaultOTPSpec            = "@hourly"
	defaultGuestSpec          = "@daily"
)

// Cleaner coordinates background maintenance: sweeping dead one-time codes
// and trimming guest conversations nobody can delete themselves.
type Cleaner struct {
	db   *gorm.DB
	otp  *auth.OTPService
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	guestRetention int
	otpSchedule    string
	guestSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithGuestRetentionDays adjusts how long guest chat history is kept.
func WithGuestRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.guestRetention = days
		}
	}
}

// WithOTPSchedule overrides the cron specification for the code sweep.
func WithOTPSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.otpSchedule = spec
		}
	}
}

// WithGuestSchedule overrides the cron specification for guest chat cleanup.
func WithGuestSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.guestSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding job being skipped.
func NewCleaner(db *gorm.DB, otp *auth.OTPService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:             db,
		otp:            otp,
		now:            time.Now,
		guestRetention: defaultGuestRetentionDays,
		otpSchedule:    defaultOTPSpec,
		guestSchedule:  defaultGuestSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.otp != nil {
		if _, err := c.cron.AddFunc(c.otpSchedule, func() {
			if _, err := c.otp.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("otp sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil && c.guestRetention > 0 {
		if _, err := c.cron.AddFunc(c.guestSchedule, func() {
			if _, err := CleanupGuestChats(context.Background(), c.db, c.now().AddDate(0, 0, -c.guestRetention)); err != nil {
				c.log.Warn("guest chat cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.otp != nil {
		if _, err := c.otp.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil && c.guestRetention > 0 {
		if _, err := CleanupGuestChats(ctx, c.db, c.now().AddDate(0, 0, -c.guestRetention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// GuestCleanupStats counts the guest chat records removed.
type GuestCleanupStats struct {
	Sessions int64
	Messages int64
}

// CleanupGuestChats removes guest-owned chat sessions created before the
// cutoff, together with their messages. Guest history has no owner who could
// delete it, so retention is enforced here.
func CleanupGuestChats(ctx context.Context, db *gorm.DB, cutoff time.Time) (GuestCleanupStats, error) {
	var stats GuestCleanupStats
	if db == nil {
		return stats, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessionIDs []string
		if err := tx.Model(&models.ChatSession{}).
			Where("account_id = ? AND created_at < ?", database.GuestAccountID, cutoff).
			Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) == 0 {
			return nil
		}

		res := tx.Where("session_id IN ?", sessionIDs).Delete(&models.ChatMessage{})
		if res.Error != nil {
			return res.Error
		}
		stats.Messages = res.RowsAffected

		res = tx.Where("id IN ?", sessionIDs).Delete(&models.ChatSession{})
		if res.Error != nil {
			return res.Error
		}
		stats.Sessions = res.RowsAffected
		return nil
	})
	return stats, err
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// ErrRetentionOutOfRange is returned by Set when the run retention is outside
// [model.MinRunRetention, model.MaxRunRetention].
var ErrRetentionOutOfRange = fmt.Errorf("run retention must be between %d and %d", model.MinRunRetention, model.MaxRunRetention)

// Compile-time interface satisfaction check.
var _ driven.UserSettingsStore = (*UserSettingsRepo)(nil)

// UserSettingsRepo is the SQLite implementation of the UserSettingsStore port interface.
type UserSettingsRepo struct {
	db               *DB
	defaultRetention int
}

// NewUserSettingsRepo creates a new UserSettingsRepo backed by the given DB.
func NewUserSettingsRepo(db *DB) *UserSettingsRepo {
	return &UserSettingsRepo{db: db, defaultRetention: model.DefaultRunRetention}
}

// WithDefaultRetention sets the run retention reported for users who have
// not saved settings. Values outside the allowed range are ignored.
func (r *UserSettingsRepo) WithDefaultRetention(n int) *UserSettingsRepo {
	if n >= model.MinRunRetention && n <= model.MaxRunRetention {
		r.defaultRetention = n
	}
	return r
}

// Get retrieves a user's settings, falling back to the default retention if
// none were saved.
func (r *UserSettingsRepo) Get(ctx context.Context, userID string) (model.UserSettings, error) {
	const query = `SELECT user_id, run_retention FROM user_settings WHERE user_id = ?`

	var s model.UserSettings
	err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.RunRetention)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserSettings{UserID: userID, RunRetention: r.defaultRetention}, nil
	}
	if err != nil {
		return model.UserSettings{}, fmt.Errorf("get settings for %s: %w", userID, err)
	}

	return s, nil
}

// Set inserts or updates a user's settings. On conflict the run retention is replaced.
func (r *UserSettingsRepo) Set(ctx context.Context, settings model.UserSettings) error {
	if settings.RunRetention < model.MinRunRetention || settings.RunRetention > model.MaxRunRetention {
		return fmt.Errorf("set settings for %s: %w", settings.UserID, ErrRetentionOutOfRange)
	}

	const query = `
		INSERT INTO user_settings (user_id, run_retention)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			run_retention = excluded.run_retention
	`

	_, err := r.db.Writer.ExecContext(ctx, query, settings.UserID, settings.RunRetention)
	if err != nil {
		return fmt.Errorf("set settings for %s: %w", settings.UserID, err)
	}

	return nil
}

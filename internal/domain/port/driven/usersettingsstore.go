package driven

import (
	"context"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// UserSettingsStore defines the driven port for per-user preferences.
// Get returns model.DefaultUserSettings when nothing has been saved.
type UserSettingsStore interface {
	Get(ctx context.Context, userID string) (model.UserSettings, error)
	Set(ctx context.Context, settings model.UserSettings) error
}

package model

// Run retention bounds. DefaultRunRetention applies when a user has not
// saved a preference.
const (
	DefaultRunRetention = 500
	MinRunRetention     = 200
	MaxRunRetention     = 1000
)

// UserSettings holds per-user preferences relevant to run caching.
type UserSettings struct {
	UserID       string
	RunRetention int // Max runs kept per workflow; also the full-refresh fetch count.
}

// DefaultUserSettings returns settings for a user with no saved preferences.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{UserID: userID, RunRetention: DefaultRunRetention}
}

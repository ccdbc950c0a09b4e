package application

import "time"

// ActivityTier buckets a repository by how long ago its newest cached run
// was updated. Repositories with runs in flight or just finished land in
// TierHot; ones nobody has pushed to in a week land in TierStale.
type ActivityTier int

const (
	TierHot ActivityTier = iota
	TierActive
	TierWarm
	TierStale
)

// activityTiers maps the age of the newest run to a poll interval, in
// ascending age order. A repository falls in the first tier whose maxAge
// exceeds the age of its newest run; TierStale has no upper bound.
var activityTiers = []struct {
	tier     ActivityTier
	name     string
	maxAge   time.Duration
	interval time.Duration
}{
	{TierHot, "hot", time.Hour, 2 * time.Minute},
	{TierActive, "active", 24 * time.Hour, 5 * time.Minute},
	{TierWarm, "warm", 7 * 24 * time.Hour, 15 * time.Minute},
	{TierStale, "stale", 0, 30 * time.Minute},
}

// fallbackInterval applies to a tier missing from activityTiers.
const fallbackInterval = 5 * time.Minute

func (t ActivityTier) String() string {
	for _, at := range activityTiers {
		if at.tier == t {
			return at.name
		}
	}
	return "unknown"
}

func tierInterval(tier ActivityTier) time.Duration {
	for _, at := range activityTiers {
		if at.tier == tier {
			return at.interval
		}
	}
	return fallbackInterval
}

// classifyActivity picks the tier for a repository whose newest cached run
// was updated at lastActivity. No cached runs at all counts as TierStale.
func classifyActivity(now, lastActivity time.Time) ActivityTier {
	if lastActivity.IsZero() {
		return TierStale
	}

	age := now.Sub(lastActivity)
	for _, at := range activityTiers {
		if at.maxAge > 0 && age < at.maxAge {
			return at.tier
		}
	}
	return TierStale
}

// repoSchedule is when a repository was last polled and when it is next due.
type repoSchedule struct {
	tier       ActivityTier
	nextPollAt time.Time
	lastPolled time.Time
}

// due reports whether the repository should be polled at now.
func (s *repoSchedule) due(now time.Time) bool {
	return !now.Before(s.nextPollAt)
}

func (s *repoSchedule) info() ScheduleInfo {
	return ScheduleInfo{Tier: s.tier, NextPollAt: s.nextPollAt, LastPolled: s.lastPolled}
}

// scheduleAfterPoll returns the schedule for a repository polled at now whose
// newest cached run changed at lastActivity.
func scheduleAfterPoll(now, lastActivity time.Time) *repoSchedule {
	tier := classifyActivity(now, lastActivity)
	return &repoSchedule{
		tier:       tier,
		nextPollAt: now.Add(tierInterval(tier)),
		lastPolled: now,
	}
}

// ScheduleInfo is a read-only copy of a repository's poll schedule.
type ScheduleInfo struct {
	Tier       ActivityTier
	NextPollAt time.Time
	LastPolled time.Time
}

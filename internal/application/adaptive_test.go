package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		wantTier ActivityTier
	}{
		{"30 minutes ago is hot", 30 * time.Minute, TierHot},
		{"59 minutes ago is hot (boundary)", 59 * time.Minute, TierHot},
		{"61 minutes ago is active (boundary)", 61 * time.Minute, TierActive},
		{"12 hours ago is active", 12 * time.Hour, TierActive},
		{"25 hours ago is warm", 25 * time.Hour, TierWarm},
		{"3 days ago is warm", 3 * 24 * time.Hour, TierWarm},
		{"8 days ago is stale", 8 * 24 * time.Hour, TierStale},
		{"zero time is stale", 0, TierStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lastActivity time.Time
			if tt.elapsed > 0 {
				lastActivity = now.Add(-tt.elapsed)
			}
			got := classifyActivity(now, lastActivity)
			assert.Equal(t, tt.wantTier, got)
		})
	}
}

func TestTierInterval(t *testing.T) {
	tests := []struct {
		tier    ActivityTier
		wantDur time.Duration
	}{
		{TierHot, 2 * time.Minute},
		{TierActive, 5 * time.Minute},
		{TierWarm, 15 * time.Minute},
		{TierStale, 30 * time.Minute},
		{ActivityTier(99), 5 * time.Minute}, // unknown defaults to 5m
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			got := tierInterval(tt.tier)
			assert.Equal(t, tt.wantDur, got)
		})
	}
}

func TestScheduleAfterPoll(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sched := scheduleAfterPoll(now, now.Add(-10*time.Minute))
	assert.Equal(t, TierHot, sched.tier)
	assert.Equal(t, now.Add(2*time.Minute), sched.nextPollAt)
	assert.Equal(t, now, sched.lastPolled)

	sched = scheduleAfterPoll(now, time.Time{})
	assert.Equal(t, TierStale, sched.tier)
	assert.Equal(t, now.Add(30*time.Minute), sched.nextPollAt)
}

func TestRepoSchedule_Due(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sched := scheduleAfterPoll(now, now.Add(-2*time.Hour)) // active: 5m

	assert.False(t, sched.due(now))
	assert.False(t, sched.due(now.Add(4*time.Minute)))
	assert.True(t, sched.due(now.Add(5*time.Minute)), "due exactly at nextPollAt")
	assert.True(t, sched.due(now.Add(time.Hour)))

	info := sched.info()
	assert.Equal(t, TierActive, info.Tier)
	assert.Equal(t, now.Add(5*time.Minute), info.NextPollAt)
	assert.Equal(t, now, info.LastPolled)
}

func TestActivityTier_String(t *testing.T) {
	assert.Equal(t, "hot", TierHot.String())
	assert.Equal(t, "active", TierActive.String())
	assert.Equal(t, "warm", TierWarm.String())
	assert.Equal(t, "stale", TierStale.String())
	assert.Equal(t, "unknown", ActivityTier(42).String())
}

func TestActivityTiers_AscendingAge(t *testing.T) {
	for i := 1; i < len(activityTiers); i++ {
		prev, cur := activityTiers[i-1], activityTiers[i]
		assert.Less(t, prev.interval, cur.interval, "%s polls less often than %s", cur.name, prev.name)
		if cur.maxAge > 0 {
			assert.Less(t, prev.maxAge, cur.maxAge)
		}
	}
	assert.Zero(t, activityTiers[len(activityTiers)-1].maxAge, "last tier is unbounded")
}

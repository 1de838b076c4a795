package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

func TestMarketCalendar_IsOpen(t *testing.T) {
	t.Parallel()

	loc := newYork(t)
	cal := usecase.NewMarketCalendar(loc)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday at open", time.Date(2024, 3, 4, 9, 30, 0, 0, loc), true},
		{"monday before open", time.Date(2024, 3, 4, 9, 29, 59, 0, loc), false},
		{"monday last minute", time.Date(2024, 3, 4, 15, 59, 59, 0, loc), true},
		{"monday at close", time.Date(2024, 3, 4, 16, 0, 0, 0, loc), false},
		{"saturday midday", time.Date(2024, 3, 2, 12, 0, 0, 0, loc), false},
		{"sunday midday", time.Date(2024, 3, 3, 12, 0, 0, 0, loc), false},
		// 14:30 UTC is 10:30 EDT after the switch to daylight time
		{"utc input during DST", time.Date(2024, 7, 1, 14, 30, 0, 0, time.UTC), true},
		{"holiday is still open", time.Date(2024, 12, 25, 11, 0, 0, 0, loc), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cal.IsOpen(tt.at))
		})
	}
}

func TestFreshnessPolicy_Aggregates(t *testing.T) {
	t.Parallel()

	policy := usecase.NewFreshnessPolicy(usecase.NewMarketCalendar(newYork(t)))
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		granularity entity.Granularity
		age         time.Duration
		want        bool
	}{
		{"daily 23h", entity.GranularityDaily, 23 * time.Hour, true},
		{"daily 25h", entity.GranularityDaily, 25 * time.Hour, false},
		{"weekly 6d", entity.GranularityWeekly, 6 * 24 * time.Hour, true},
		{"weekly 8d", entity.GranularityWeekly, 8 * 24 * time.Hour, false},
		{"monthly 29d", entity.GranularityMonthly, 29 * 24 * time.Hour, true},
		{"monthly 31d", entity.GranularityMonthly, 31 * 24 * time.Hour, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.IsFresh(tt.granularity, now.Add(-tt.age), now))
		})
	}

	assert.False(t, policy.IsFresh(entity.GranularityDaily, time.Time{}, now), "zero lastUpdated is never fresh")
}

func TestFreshnessPolicy_IntradayDependsOnMarketAtDecisionTime(t *testing.T) {
	t.Parallel()

	loc := newYork(t)
	policy := usecase.NewFreshnessPolicy(usecase.NewMarketCalendar(loc))

	open := time.Date(2024, 3, 4, 11, 0, 0, 0, loc)
	closed := time.Date(2024, 3, 4, 20, 0, 0, 0, loc)

	assert.Equal(t, usecase.IntradayOpenTTL, policy.TTL(entity.GranularityIntraday, open))
	assert.Equal(t, usecase.IntradayClosedTTL, policy.TTL(entity.GranularityIntraday, closed))

	// written 20 minutes ago: stale while open, fresh after close
	assert.False(t, policy.IsFresh(entity.GranularityIntraday, open.Add(-20*time.Minute), open))
	assert.True(t, policy.IsFresh(entity.GranularityIntraday, closed.Add(-20*time.Minute), closed))
}

func TestFreshnessPolicy_CheckIntraday(t *testing.T) {
	t.Parallel()

	loc := newYork(t)
	policy := usecase.NewFreshnessPolicy(usecase.NewMarketCalendar(loc))
	now := time.Date(2024, 3, 4, 11, 0, 0, 0, loc)

	entry := func(iv entity.Interval, age time.Duration) *entity.IntradayCacheEntry {
		return &entity.IntradayCacheEntry{
			Symbol:      "AAPL",
			Date:        "2024-03-04",
			Interval:    iv,
			LastUpdated: entity.NewTimestamp(now.Add(-age)),
		}
	}

	tests := []struct {
		name     string
		entry    *entity.IntradayCacheEntry
		interval entity.Interval
		want     usecase.Verdict
	}{
		{"nil entry", nil, entity.Interval15Min, usecase.VerdictAbsent},
		{"fresh match", entry(entity.Interval15Min, 5*time.Minute), entity.Interval15Min, usecase.VerdictFresh},
		{"stale match", entry(entity.Interval15Min, 16*time.Minute), entity.Interval15Min, usecase.VerdictStale},
		{"interval mismatch is absent", entry(entity.Interval15Min, time.Minute), entity.Interval60Min, usecase.VerdictAbsent},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.CheckIntraday(tt.entry, tt.interval, now))
		})
	}
}

func TestFreshnessPolicy_CheckAggregate(t *testing.T) {
	t.Parallel()

	policy := usecase.NewFreshnessPolicy(usecase.NewMarketCalendar(time.UTC))
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, usecase.VerdictAbsent, policy.CheckAggregate(nil, now))
	assert.Equal(t, usecase.VerdictFresh, policy.CheckAggregate(&entity.AggregateCacheEntry{
		Granularity: entity.GranularityWeekly,
		LastUpdated: entity.NewTimestamp(now.Add(-48 * time.Hour)),
	}, now))
	assert.Equal(t, usecase.VerdictStale, policy.CheckAggregate(&entity.AggregateCacheEntry{
		Granularity: entity.GranularityDaily,
		LastUpdated: entity.NewTimestamp(now.Add(-48 * time.Hour)),
	}, now))
}

func TestMarketCalendar_NilLocationIsUTC(t *testing.T) {
	t.Parallel()

	cal := usecase.NewMarketCalendar(nil)
	assert.Equal(t, time.UTC, cal.Location())
	assert.Equal(t, "2024-03-04", cal.Today(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)))
}

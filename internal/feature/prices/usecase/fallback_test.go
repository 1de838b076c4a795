package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

// probe はFallbackResolverの各プローブを記録するスタブです。
type probe struct {
	entries map[string]entity.IntradayCacheEntry // date -> entry
	seen    []string
}

func (p *probe) Peek(ctx context.Context, symbol, date string, interval entity.Interval) ([]entity.Candle, bool) {
	p.seen = append(p.seen, date+"/"+string(interval))
	e, ok := p.entries[date]
	if !ok || e.Interval != interval || len(e.Candles) == 0 {
		return nil, false
	}
	return e.Candles, true
}

func newResolver(t *testing.T, p *probe) *usecase.FallbackResolver {
	t.Helper()
	loc := newYork(t)
	monday := time.Date(2024, 3, 4, 8, 0, 0, 0, loc)
	return usecase.NewFallbackResolver(p, usecase.NewMarketCalendar(loc), func() time.Time { return monday })
}

func TestFallbackResolver_FindsFridayAtOtherInterval(t *testing.T) {
	t.Parallel()

	friday := session("2024-03-01", 3, 5*time.Minute)
	p := &probe{entries: map[string]entity.IntradayCacheEntry{
		"2024-03-01": {Symbol: "AAPL", Date: "2024-03-01", Interval: entity.Interval5Min, Candles: friday},
	}}

	got, ok := newResolver(t, p).FindRecentCachedData(context.Background(), "AAPL", entity.Interval15Min)

	require.True(t, ok)
	assert.Equal(t, "2024-03-01", got.Date)
	assert.Equal(t, entity.Interval5Min, got.Interval)
	assert.Equal(t, friday, got.Candles)
	// Mon, Sun, Sat fully probed, then Fri up to 5min
	assert.Equal(t, "2024-03-04/15min", p.seen[0])
	assert.Equal(t, "2024-03-01/5min", p.seen[len(p.seen)-1])
	assert.Len(t, p.seen, 3*5+4)
}

func TestFallbackResolver_PrefersMostRecentDate(t *testing.T) {
	t.Parallel()

	p := &probe{entries: map[string]entity.IntradayCacheEntry{
		"2024-03-04": {Interval: entity.Interval1Min, Candles: session("2024-03-04", 1, time.Minute)},
		"2024-03-01": {Interval: entity.Interval60Min, Candles: session("2024-03-01", 1, time.Hour)},
	}}

	got, ok := newResolver(t, p).FindRecentCachedData(context.Background(), "AAPL", entity.Interval60Min)

	require.True(t, ok)
	assert.Equal(t, "2024-03-04", got.Date)
	assert.Equal(t, entity.Interval1Min, got.Interval)
}

func TestFallbackResolver_NotFoundIsBounded(t *testing.T) {
	t.Parallel()

	p := &probe{entries: map[string]entity.IntradayCacheEntry{
		// six days back is outside the window
		"2024-02-27": {Interval: entity.Interval15Min, Candles: session("2024-02-27", 1, time.Minute)},
	}}

	_, ok := newResolver(t, p).FindRecentCachedData(context.Background(), "AAPL", entity.Interval15Min)

	assert.False(t, ok)
	assert.Len(t, p.seen, 6*5)

	dates := map[string]struct{}{}
	for _, s := range p.seen {
		dates[s[:10]] = struct{}{}
	}
	assert.Len(t, dates, 6)
	assert.NotContains(t, dates, "2024-02-27")
}

func TestFallbackResolver_ProbeOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		preferred entity.Interval
		want      []string
	}{
		{entity.Interval15Min, []string{"15min", "60min", "30min", "5min", "1min"}},
		{entity.Interval5Min, []string{"5min", "15min", "60min", "30min", "1min"}},
		{entity.Interval1Min, []string{"1min", "15min", "60min", "30min", "5min"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.preferred), func(t *testing.T) {
			t.Parallel()

			p := &probe{}
			_, ok := newResolver(t, p).FindRecentCachedData(context.Background(), "AAPL", tt.preferred)
			require.False(t, ok)

			var first []string
			for _, s := range p.seen[:5] {
				first = append(first, s[len("2024-03-04/"):])
			}
			assert.Equal(t, tt.want, first)
		})
	}
}

func TestFallbackResolver_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	p := &probe{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := newResolver(t, p).FindRecentCachedData(ctx, "AAPL", entity.Interval15Min)
	assert.False(t, ok)
	assert.Empty(t, p.seen)
}

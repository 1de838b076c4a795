package usecase

import (
	"time"

	"price_backend/internal/feature/prices/domain/entity"
)

const (
	// IntradayOpenTTL は市場が開いている間の当日データの有効期間です。
	IntradayOpenTTL = 15 * time.Minute
	// IntradayClosedTTL は市場が閉じている間の当日データの有効期間です。
	IntradayClosedTTL = 24 * time.Hour
	DailyTTL          = 24 * time.Hour
	WeeklyTTL         = 7 * 24 * time.Hour
	MonthlyTTL        = 30 * 24 * time.Hour
)

// MarketCalendar は取引所の現地時刻で市場の開場を判定します。祝日は考慮しません。
type MarketCalendar struct {
	loc *time.Location
}

// NewMarketCalendar は指定タイムゾーンのMarketCalendarを生成します。nilならUTC。
func NewMarketCalendar(loc *time.Location) MarketCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return MarketCalendar{loc: loc}
}

// Location は取引所のタイムゾーンを返します。
func (m MarketCalendar) Location() *time.Location {
	return m.loc
}

// IsOpen は now が平日かつ現地時刻 [09:30, 16:00) に入っているかを返します。
func (m MarketCalendar) IsOpen(now time.Time) bool {
	local := now.In(m.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// Today は取引所の現地日付を YYYY-MM-DD で返します。
func (m MarketCalendar) Today(now time.Time) string {
	return now.In(m.loc).Format(entity.DateLayout)
}

// Verdict はキャッシュエントリの判定結果です。
type Verdict int

const (
	VerdictAbsent Verdict = iota
	VerdictStale
	VerdictFresh
)

func (v Verdict) String() string {
	switch v {
	case VerdictFresh:
		return "fresh"
	case VerdictStale:
		return "stale"
	default:
		return "absent"
	}
}

// FreshnessPolicy は保存済みエントリがまだ使えるかを判定します。
// 当日データのTTLは書き込み時ではなく判定時の市場状態で決まります。
type FreshnessPolicy struct {
	calendar MarketCalendar
}

// NewFreshnessPolicy は新しいFreshnessPolicyを生成します。
func NewFreshnessPolicy(calendar MarketCalendar) FreshnessPolicy {
	return FreshnessPolicy{calendar: calendar}
}

// TTL は now 時点での粒度ごとの有効期間を返します。
func (p FreshnessPolicy) TTL(granularity entity.Granularity, now time.Time) time.Duration {
	switch granularity {
	case entity.GranularityDaily:
		return DailyTTL
	case entity.GranularityWeekly:
		return WeeklyTTL
	case entity.GranularityMonthly:
		return MonthlyTTL
	default:
		if p.calendar.IsOpen(now) {
			return IntradayOpenTTL
		}
		return IntradayClosedTTL
	}
}

// IsFresh は lastUpdated からの経過時間がTTL未満かを返します。
func (p FreshnessPolicy) IsFresh(granularity entity.Granularity, lastUpdated, now time.Time) bool {
	if lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) < p.TTL(granularity, now)
}

// CheckIntraday は当日エントリを判定します。
// intervalが要求と異なるエントリはキー衝突とみなし、staleではなくabsentとして扱います。
func (p FreshnessPolicy) CheckIntraday(entry *entity.IntradayCacheEntry, interval entity.Interval, now time.Time) Verdict {
	if entry == nil || entry.Interval != interval {
		return VerdictAbsent
	}
	if !p.IsFresh(entity.GranularityIntraday, entry.LastUpdated.Time, now) {
		return VerdictStale
	}
	return VerdictFresh
}

// CheckAggregate は集計エントリを判定します。
func (p FreshnessPolicy) CheckAggregate(entry *entity.AggregateCacheEntry, now time.Time) Verdict {
	if entry == nil {
		return VerdictAbsent
	}
	if !p.IsFresh(entry.Granularity, entry.LastUpdated.Time, now) {
		return VerdictStale
	}
	return VerdictFresh
}

package entity

import "time"

const (
	// DateLayout is the calendar date format used in cache keys and daily period keys.
	DateLayout = "2006-01-02"
	// MonthLayout is the format of a historical month request and of monthly period keys.
	MonthLayout = "2006-01"

	intradayKeyPrefix = "intraday_"
)

// UpstreamZone is the fixed UTC-5 offset upstream timestamps are interpreted in.
// Daylight saving time is deliberately ignored so that cached history keeps
// the interpretation it was written with.
var UpstreamZone = time.FixedZone("UTC-5", -5*60*60)

// IntradayCacheEntry is the cached raw series for one (symbol, date, interval).
// Refreshes overwrite it wholesale.
type IntradayCacheEntry struct {
	Symbol      string    `json:"symbol"`
	Date        string    `json:"date"`
	Interval    Interval  `json:"interval"`
	Candles     []Candle  `json:"candles"`
	LastUpdated Timestamp `json:"lastUpdated"`
}

// AggregateCacheEntry holds rolled-up candles keyed by period
// (date for daily, YYYY-Www for weekly, YYYY-MM for monthly).
type AggregateCacheEntry struct {
	Symbol      string            `json:"symbol"`
	Granularity Granularity       `json:"granularity"`
	Prices      map[string]Candle `json:"prices"`
	LastUpdated Timestamp         `json:"lastUpdated"`
}

// IntradayKey returns the per-symbol sub-key of an intraday document.
// date is either a calendar date or, for historical month requests, YYYY-MM.
func IntradayKey(date string) string {
	return intradayKeyPrefix + date
}

// SessionDate returns the calendar date t falls on in UpstreamZone.
func SessionDate(t time.Time) string {
	return t.In(UpstreamZone).Format(DateLayout)
}

// LatestSession returns the candles of the last session present in candles
// (the session of the final candle) together with that session's date.
// candles must be ordered by time ascending.
func LatestSession(candles []Candle) (string, []Candle) {
	if len(candles) == 0 {
		return "", nil
	}
	date := SessionDate(candles[len(candles)-1].Time)
	start := len(candles) - 1
	for start > 0 && SessionDate(candles[start-1].Time) == date {
		start--
	}
	return date, candles[start:]
}

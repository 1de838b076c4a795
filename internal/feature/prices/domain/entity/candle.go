// Package entity defines the domain models for the prices feature.
package entity

import "time"

// Candle represents OHLCV (Open, High, Low, Close, Volume) data for one time bucket.
// low <= open,close <= high is expected of upstream data but is not enforced.
type Candle struct {
	Time   time.Time `json:"time"`   // Timestamp for the start of this candle period
	Open   float64   `json:"open"`   // Opening price
	High   float64   `json:"high"`   // Highest price during this period
	Low    float64   `json:"low"`    // Lowest price during this period
	Close  float64   `json:"close"`  // Closing price
	Volume int64     `json:"volume"` // Trading volume
}

// Interval is the bucket size of an intraday series.
type Interval string

const (
	Interval1Min  Interval = "1min"
	Interval5Min  Interval = "5min"
	Interval15Min Interval = "15min"
	Interval30Min Interval = "30min"
	Interval60Min Interval = "60min"
)

// DefaultInterval is substituted for empty or unrecognized intervals.
const DefaultInterval = Interval60Min

// FallbackIntervals is the probe order used when the preferred interval has no cached data.
var FallbackIntervals = []Interval{Interval15Min, Interval60Min, Interval30Min, Interval5Min, Interval1Min}

// Valid reports whether i is one of the intervals the upstream accepts.
func (i Interval) Valid() bool {
	switch i {
	case Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval60Min:
		return true
	}
	return false
}

// ParseInterval returns the interval for s, falling back to DefaultInterval
// for anything unrecognized instead of failing.
func ParseInterval(s string) Interval {
	i := Interval(s)
	if !i.Valid() {
		return DefaultInterval
	}
	return i
}

// OutputSize selects how many points the upstream returns.
type OutputSize string

const (
	OutputSizeCompact OutputSize = "compact"
	OutputSizeFull    OutputSize = "full"
)

// ParseOutputSize returns OutputSizeFull only for "full"; everything else is compact.
func ParseOutputSize(s string) OutputSize {
	if OutputSize(s) == OutputSizeFull {
		return OutputSizeFull
	}
	return OutputSizeCompact
}

// Granularity is the time-bucket size of a cached series.
type Granularity string

const (
	GranularityIntraday Granularity = "intraday"
	GranularityDaily    Granularity = "daily"
	GranularityWeekly   Granularity = "weekly"
	GranularityMonthly  Granularity = "monthly"
)

// ParseAggregateGranularity accepts only the aggregate granularities (daily/weekly/monthly).
func ParseAggregateGranularity(s string) (Granularity, bool) {
	switch g := Granularity(s); g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return g, true
	}
	return "", false
}

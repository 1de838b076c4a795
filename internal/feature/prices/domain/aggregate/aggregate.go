// Package aggregate rolls finer-granularity candles into coarser ones.
// Every function here is pure: the same input always yields the same output.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"price_backend/internal/feature/prices/domain/entity"
)

// ToDaily folds an ordered intraday series into one daily candle.
// It returns false for an empty series.
func ToDaily(candles []entity.Candle) (entity.Candle, bool) {
	if len(candles) == 0 {
		return entity.Candle{}, false
	}
	out := entity.Candle{
		Time:  candles[0].Time,
		Open:  candles[0].Open,
		High:  candles[0].High,
		Low:   candles[0].Low,
		Close: candles[len(candles)-1].Close,
	}
	for _, c := range candles {
		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		out.Volume += c.Volume
	}
	return out, true
}

// ToWeekly groups daily candles by ISO-8601 week (YYYY-Www) and folds each group.
// Period keys that are not calendar dates are skipped.
func ToWeekly(daily map[string]entity.Candle) map[string]entity.Candle {
	return rollup(daily, isoWeekKey)
}

// ToMonthly groups daily candles by YYYY-MM (the first 7 characters of the period key) and folds each group.
func ToMonthly(daily map[string]entity.Candle) map[string]entity.Candle {
	return rollup(daily, func(date string) (string, bool) {
		if len(date) < 7 {
			return "", false
		}
		return date[:7], true
	})
}

// isoWeekKey returns the ISO-8601 week string (YYYY-Www) of a calendar date.
func isoWeekKey(date string) (string, bool) {
	// parsed as a calendar date in UTC so the week is the date's own week
	d, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return "", false
	}
	year, week := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week), true
}

func rollup(daily map[string]entity.Candle, group func(string) (string, bool)) map[string]entity.Candle {
	// map iteration is random; fold in date order so first/last are well defined
	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	groups := make(map[string][]entity.Candle)
	for _, d := range dates {
		key, ok := group(d)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], daily[d])
	}

	out := make(map[string]entity.Candle, len(groups))
	for key, cs := range groups {
		if c, ok := ToDaily(cs); ok {
			out[key] = c
		}
	}
	return out
}

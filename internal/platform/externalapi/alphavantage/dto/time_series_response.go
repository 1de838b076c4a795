// Package dto defines data transfer objects for the Alpha Vantage API responses.
package dto

import (
	"encoding/json"
	"strings"
)

const seriesKeyPrefix = "Time Series"

// Bar is one OHLCV point. Alpha Vantage sends every number as a string.
type Bar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// MetaData describes the returned series.
type MetaData struct {
	Information   string `json:"1. Information"`
	Symbol        string `json:"2. Symbol"`
	LastRefreshed string `json:"3. Last Refreshed"`
	Interval      string `json:"4. Interval"`
	OutputSize    string `json:"5. Output Size"`
	TimeZone      string `json:"6. Time Zone"`
}

// TimeSeriesResponse represents the JSON response from the TIME_SERIES_INTRADAY function.
// The series object is keyed "Time Series (<interval>)", so it is collected into Series
// whatever the interval.
type TimeSeriesResponse struct {
	MetaData     MetaData       `json:"Meta Data"`
	Series       map[string]Bar `json:"-"` // datetime -> bar
	Note         string         `json:"Note,omitempty"`
	Information  string         `json:"Information,omitempty"`
	ErrorMessage string         `json:"Error Message,omitempty"`
}

// UnmarshalJSON decodes the fixed fields and the interval-specific series object.
func (r *TimeSeriesResponse) UnmarshalJSON(b []byte) error {
	type plain TimeSeriesResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if !strings.HasPrefix(k, seriesKeyPrefix) {
			continue
		}
		if err := json.Unmarshal(v, &p.Series); err != nil {
			return err
		}
		break
	}

	*r = TimeSeriesResponse(p)
	return nil
}

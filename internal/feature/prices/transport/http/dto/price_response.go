// Package dto defines the HTTP response bodies of the prices feature.
package dto

import (
	"time"

	"price_backend/internal/feature/prices/domain/entity"
)

// CandleResponse はロウソク足データのレスポンスDTOです。
type CandleResponse struct {
	Time   string  `json:"time"`   // 足の開始時刻（RFC3339）
	Open   float64 `json:"open"`   // 始値
	High   float64 `json:"high"`   // 高値
	Low    float64 `json:"low"`    // 安値
	Close  float64 `json:"close"`  // 終値
	Volume int64   `json:"volume"` // 出来高
}

// IntradayResponse は当日（または指定月）のイントラデイデータです。
type IntradayResponse struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Candles  []CandleResponse `json:"candles"`
}

// RecentOpenDayResponse は直近の取引日のデータです。
// Interval は実際に見つかった足の間隔で、要求した間隔と異なる場合があります。
type RecentOpenDayResponse struct {
	Symbol     string           `json:"symbol"`
	Interval   string           `json:"interval"`
	TradingDay *string          `json:"tradingDay"`
	Candles    []CandleResponse `json:"candles"`
}

// AggregateResponse は期間キーごとの集計済みロウソク足です。
type AggregateResponse struct {
	Symbol      string                    `json:"symbol"`
	Granularity string                    `json:"granularity"`
	Prices      map[string]CandleResponse `json:"prices"`
}

// ErrorResponse はエラー時のレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToCandleResponse はエンティティをレスポンスDTOに変換します。
func ToCandleResponse(x entity.Candle) CandleResponse {
	return CandleResponse{
		Time:   x.Time.Format(time.RFC3339),
		Open:   x.Open,
		High:   x.High,
		Low:    x.Low,
		Close:  x.Close,
		Volume: x.Volume,
	}
}

// ToCandleResponses は常に非nilのスライスを返します。
func ToCandleResponses(candles []entity.Candle) []CandleResponse {
	out := make([]CandleResponse, 0, len(candles))
	for _, x := range candles {
		out = append(out, ToCandleResponse(x))
	}
	return out
}

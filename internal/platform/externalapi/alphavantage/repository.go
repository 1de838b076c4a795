package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
	"price_backend/internal/platform/externalapi/alphavantage/dto"
	"price_backend/internal/shared/ratelimiter"
)

const (
	functionIntraday = "TIME_SERIES_INTRADAY"
	opIntraday       = "time_series_intraday"
	datetimeLayout   = "2006-01-02 15:04:05"
)

// AlphaVantageMarket はAlpha Vantage外部APIから株価データを取得するMarketRepository実装です。
type AlphaVantageMarket struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
}

// AlphaVantageMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*AlphaVantageMarket)(nil)

// NewAlphaVantageMarket は指定された設定とHTTPクライアントでAlphaVantageMarketの新しいインスタンスを生成します。
// limiter が nil の場合は呼び出し頻度を制限しません。
func NewAlphaVantageMarket(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface) *AlphaVantageMarket {
	return &AlphaVantageMarket{cfg: cfg, client: client, limiter: limiter}
}

// FetchSeries はAlpha Vantage APIからイントラデイの時系列データを取得し、
// 時刻の昇順に並べたentity.Candleのスライスとして返します。
//
// 上流のレート制限（Note/Information）と日次クォータ超過は domain.ErrUpstreamThrottled、
// 通信・HTTP・プロバイダーのエラーは *domain.UpstreamError を返します。
func (m *AlphaVantageMarket) FetchSeries(ctx context.Context, sr usecase.SeriesRequest) ([]entity.Candle, error) {
	if m.limiter != nil {
		if err := m.limiter.WaitIfNeeded(ctx); err != nil {
			if errors.Is(err, ratelimiter.ErrDailyQuotaExceeded) {
				return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamThrottled, err)
			}
			return nil, &domain.UpstreamError{Op: "rate limit wait", Err: err}
		}
	}

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.buildURL(sr), nil)
	if err != nil {
		return nil, &domain.UpstreamError{Op: opIntraday, Err: err}
	}

	// リクエストを実行
	res, err := m.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Op: opIntraday, Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, &domain.UpstreamError{
			Op:         opIntraday,
			StatusCode: res.StatusCode,
			Err:        errors.New(http.StatusText(res.StatusCode)),
		}
	}

	// JSONレスポンスをDTOにデコード
	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &domain.UpstreamError{Op: opIntraday, Err: fmt.Errorf("decode response: %w", err)}
	}

	switch {
	case body.ErrorMessage != "":
		return nil, &domain.UpstreamError{Op: opIntraday, Err: errors.New(body.ErrorMessage)}
	case body.Note != "", body.Information != "" && len(body.Series) == 0:
		slog.Warn("alphavantage throttled", "symbol", sr.Symbol, "note", firstNonEmpty(body.Note, body.Information))
		return nil, domain.ErrUpstreamThrottled
	}

	candles, err := toCandles(body.Series)
	if err != nil {
		return nil, &domain.UpstreamError{Op: opIntraday, Err: err}
	}
	return candles, nil
}

// buildURL は TIME_SERIES_INTRADAY のリクエストURLを生成します。
func (m *AlphaVantageMarket) buildURL(sr usecase.SeriesRequest) string {
	interval := sr.Interval
	if !interval.Valid() {
		interval = entity.DefaultInterval
	}
	outputSize := sr.OutputSize
	if outputSize == "" {
		outputSize = entity.OutputSizeCompact
	}

	q := url.Values{}
	// クエリパラメータを追加
	q.Set("function", functionIntraday)
	q.Set("symbol", sr.Symbol)
	q.Set("interval", string(interval))
	q.Set("outputsize", string(outputSize))
	q.Set("adjusted", strconv.FormatBool(sr.Adjusted))
	q.Set("extended_hours", strconv.FormatBool(sr.ExtendedHours))
	if sr.Month != "" {
		q.Set("month", sr.Month)
	}
	q.Set("apikey", m.cfg.APIKey)

	return fmt.Sprintf("%s/query?%s", strings.TrimRight(m.cfg.BaseURL, "/"), q.Encode())
}

// toCandles はDTOのバーをパースし、時刻の昇順に並べます。
// 時刻は固定のUTC-5として解釈します。
func toCandles(series map[string]dto.Bar) ([]entity.Candle, error) {
	candles := make([]entity.Candle, 0, len(series))
	for datetime, v := range series {
		// タイムスタンプをパース
		tm, err := time.ParseInLocation(datetimeLayout, datetime, entity.UpstreamZone)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", datetime, err)
		}
		o, err := strconv.ParseFloat(v.Open, 64)
		if err != nil {
			return nil, fmt.Errorf("parse open %q: %w", v.Open, err)
		}
		h, err := strconv.ParseFloat(v.High, 64)
		if err != nil {
			return nil, fmt.Errorf("parse high %q: %w", v.High, err)
		}
		l, err := strconv.ParseFloat(v.Low, 64)
		if err != nil {
			return nil, fmt.Errorf("parse low %q: %w", v.Low, err)
		}
		c, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", v.Close, err)
		}
		vol, err := strconv.ParseInt(v.Volume, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}

		// ドメインエンティティに変換
		candles = append(candles, entity.Candle{
			Time:   tm,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: vol,
		})
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

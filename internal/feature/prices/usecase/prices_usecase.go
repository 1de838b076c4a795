package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/aggregate"
	"price_backend/internal/feature/prices/domain/entity"
)

// IntradayParams は当日データ取得のパラメータです。
type IntradayParams struct {
	Symbol        string
	Interval      string
	OutputSize    string
	Adjusted      bool
	ExtendedHours bool
	Month         string // YYYY-MM。空なら当日
}

// IntradayResult は GetIntradayPrices の結果です。
type IntradayResult struct {
	Symbol   string
	Interval entity.Interval
	Candles  []entity.Candle
}

// RecentOpenDayResult は GetRecentOpenDay の結果です。
// TradingDay はデータが見つからなかった場合 nil です。
type RecentOpenDayResult struct {
	Symbol     string
	Interval   entity.Interval
	TradingDay *string
	Candles    []entity.Candle
}

// AggregateResult は GetAggregatedPrices の結果です。
type AggregateResult struct {
	Symbol      string
	Granularity entity.Granularity
	Prices      map[string]entity.Candle
}

// Option はPricesUsecaseの設定を変更します。
type Option func(*options)

type options struct {
	now          func() time.Time
	location     *time.Location
	metrics      Recorder
	singleFlight bool
}

// WithClock は現在時刻の取得関数を差し替えます（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation は取引所のタイムゾーンを設定します。
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithRecorder はメトリクスの記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithSingleFlight は同一キーへの同時フェッチの重複排除を有効にします。
func WithSingleFlight(enabled bool) Option {
	return func(o *options) { o.singleFlight = enabled }
}

// PricesUsecase は株価データ取得のユースケースを定義します。
type PricesUsecase struct {
	store    CacheStore
	cache    *ReadThroughCache
	resolver *FallbackResolver
	policy   FreshnessPolicy
	now      func() time.Time
	metrics  Recorder
}

// NewPricesUsecase は新しいPricesUsecaseを生成します。
func NewPricesUsecase(store CacheStore, market MarketRepository, opts ...Option) *PricesUsecase {
	o := options{now: time.Now, metrics: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	calendar := NewMarketCalendar(o.location)

	var flight *singleflight.Group
	if o.singleFlight {
		flight = &singleflight.Group{}
	}
	cache := NewReadThroughCache(store, market, calendar, o.now, o.metrics, flight)

	return &PricesUsecase{
		store:    store,
		cache:    cache,
		resolver: NewFallbackResolver(cache, calendar, o.now),
		policy:   NewFreshnessPolicy(calendar),
		now:      o.now,
		metrics:  o.metrics,
	}
}

// normalizeSymbol は銘柄コードの前後の空白を除去し大文字にします。
func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", domain.NewValidationError("symbol", domain.ErrInvalidSymbol)
	}
	return s, nil
}

func validateMonth(month string) error {
	if month == "" {
		return nil
	}
	if len(month) != len(entity.MonthLayout) {
		return domain.NewValidationError("month", domain.ErrInvalidMonth)
	}
	if _, err := time.Parse(entity.MonthLayout, month); err != nil {
		return domain.NewValidationError("month", domain.ErrInvalidMonth)
	}
	return nil
}

// GetIntradayPrices は指定銘柄の当日（または指定月）のローソク足を返します。
// 不明な時間足はエラーにせず 60min にフォールバックします。
func (u *PricesUsecase) GetIntradayPrices(ctx context.Context, p IntradayParams) (IntradayResult, error) {
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return IntradayResult{}, err
	}
	if err := validateMonth(p.Month); err != nil {
		return IntradayResult{}, err
	}
	interval := entity.ParseInterval(p.Interval)

	candles, err := u.cache.Get(ctx, SeriesRequest{
		Symbol:        symbol,
		Interval:      interval,
		OutputSize:    entity.ParseOutputSize(p.OutputSize),
		Adjusted:      p.Adjusted,
		ExtendedHours: p.ExtendedHours,
		Month:         p.Month,
	})
	if err != nil {
		return IntradayResult{}, err
	}
	return IntradayResult{Symbol: symbol, Interval: interval, Candles: candles}, nil
}

// GetRecentOpenDay は直近の取引セッションのローソク足を返します。
// キャッシュに見つからなければ当日分を上流から無条件に取得し、キャッシュに保存します。
func (u *PricesUsecase) GetRecentOpenDay(ctx context.Context, symbol, interval string) (RecentOpenDayResult, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return RecentOpenDayResult{}, err
	}
	preferred := entity.ParseInterval(interval)

	if found, ok := u.resolver.FindRecentCachedData(ctx, sym, preferred); ok {
		// キャッシュキーの日付ではなく、ローソク足が属するセッションの日付を返す
		day, _ := entity.LatestSession(found.Candles)
		if day == "" {
			day = found.Date
		}
		return RecentOpenDayResult{Symbol: sym, Interval: found.Interval, TradingDay: &day, Candles: found.Candles}, nil
	}

	slog.DebugContext(ctx, "no recent cached session, fetching upstream", "symbol", sym, "interval", preferred)
	candles, err := u.cache.Refresh(ctx, SeriesRequest{
		Symbol:        sym,
		Interval:      preferred,
		OutputSize:    entity.OutputSizeCompact,
		Adjusted:      true,
		ExtendedHours: true,
	})
	if err != nil {
		return RecentOpenDayResult{}, err
	}

	out := RecentOpenDayResult{Symbol: sym, Interval: preferred, Candles: candles}
	if day, _ := entity.LatestSession(candles); day != "" {
		out.TradingDay = &day
	}
	return out, nil
}

// GetAggregatedPrices は日足・週足・月足の集計データを返します。
// 週足・月足が存在しないか期限切れの場合は日足全体から再計算し、全体を上書き保存します。
func (u *PricesUsecase) GetAggregatedPrices(ctx context.Context, symbol, granularity string) (AggregateResult, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return AggregateResult{}, err
	}
	g, ok := entity.ParseAggregateGranularity(granularity)
	if !ok {
		return AggregateResult{}, domain.NewValidationError("granularity", domain.ErrInvalidGranularity)
	}

	var entry *entity.AggregateCacheEntry
	if g != entity.GranularityDaily {
		entry = u.readAggregate(ctx, sym, g)
		if u.policy.CheckAggregate(entry, u.now()) == VerdictFresh {
			u.metrics.CacheHit(g)
			return AggregateResult{Symbol: sym, Granularity: g, Prices: entry.Prices}, nil
		}
		u.metrics.CacheMiss(g, "recompute")
	}

	daily := u.readAggregate(ctx, sym, entity.GranularityDaily)
	if daily == nil || len(daily.Prices) == 0 {
		// 再計算できない場合は期限切れでも既存の集計を返す
		if entry != nil && entry.Prices != nil {
			return AggregateResult{Symbol: sym, Granularity: g, Prices: entry.Prices}, nil
		}
		return AggregateResult{Symbol: sym, Granularity: g, Prices: map[string]entity.Candle{}}, nil
	}
	if g == entity.GranularityDaily {
		return AggregateResult{Symbol: sym, Granularity: g, Prices: daily.Prices}, nil
	}

	var prices map[string]entity.Candle
	if g == entity.GranularityWeekly {
		prices = aggregate.ToWeekly(daily.Prices)
	} else {
		prices = aggregate.ToMonthly(daily.Prices)
	}

	if err := u.store.SetAggregate(ctx, entity.AggregateCacheEntry{
		Symbol:      sym,
		Granularity: g,
		Prices:      prices,
		LastUpdated: entity.NewTimestamp(u.now()),
	}); err != nil {
		u.metrics.CacheWriteFailure(string(g))
		slog.WarnContext(ctx, "aggregate write failed", "symbol", sym, "granularity", g, "error", err)
	}
	return AggregateResult{Symbol: sym, Granularity: g, Prices: prices}, nil
}

// readAggregate は集計エントリを読み込みます。読み込み失敗はミスとして扱います。
func (u *PricesUsecase) readAggregate(ctx context.Context, symbol string, g entity.Granularity) *entity.AggregateCacheEntry {
	entry, err := u.store.GetAggregate(ctx, symbol, g)
	if err != nil {
		if !errors.Is(err, domain.ErrEntryNotFound) {
			slog.WarnContext(ctx, "aggregate read failed", "symbol", symbol, "granularity", g, "error", err)
		}
		return nil
	}
	return entry
}

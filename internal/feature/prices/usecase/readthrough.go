package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/aggregate"
	"price_backend/internal/feature/prices/domain/entity"
)

// ReadThroughCache は当日データのリードスルーキャッシュです。
// ストアを確認し、ミスまたは期限切れの場合のみ上流APIを呼び出して結果を保存します。
// プロセス内に状態は持たず、すべての操作がストアを往復します。
type ReadThroughCache struct {
	store    CacheStore
	market   MarketRepository
	policy   FreshnessPolicy
	calendar MarketCalendar
	now      func() time.Time
	metrics  Recorder
	// nil の場合、同一キーへの同時フェッチは重複排除されない
	flight *singleflight.Group
}

// NewReadThroughCache は新しいReadThroughCacheを生成します。
func NewReadThroughCache(store CacheStore, market MarketRepository, calendar MarketCalendar, now func() time.Time, metrics Recorder, flight *singleflight.Group) *ReadThroughCache {
	if now == nil {
		now = time.Now
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &ReadThroughCache{
		store:    store,
		market:   market,
		policy:   NewFreshnessPolicy(calendar),
		calendar: calendar,
		now:      now,
		metrics:  metrics,
		flight:   flight,
	}
}

// cacheDate は要求に対応するintradayドキュメントの日付キーを返します。
// 過去月の要求では YYYY-MM、それ以外は取引所の当日日付です。
func (r *ReadThroughCache) cacheDate(req SeriesRequest) string {
	if req.Month != "" {
		return req.Month
	}
	return r.calendar.Today(r.now())
}

// Get はキャッシュが有効ならそれを返し、そうでなければ上流から取得して保存します。
func (r *ReadThroughCache) Get(ctx context.Context, req SeriesRequest) ([]entity.Candle, error) {
	date := r.cacheDate(req)

	entry, err := r.store.GetIntraday(ctx, req.Symbol, date)
	if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
		// 読み込み失敗はミスとして扱う
		slog.WarnContext(ctx, "cache read failed, falling back to upstream",
			"symbol", req.Symbol, "key", entity.IntradayKey(date), "error", err)
		entry = nil
	}

	verdict := r.policy.CheckIntraday(entry, req.Interval, r.now())
	if verdict == VerdictFresh {
		r.metrics.CacheHit(entity.GranularityIntraday)
		slog.DebugContext(ctx, "cache hit", "symbol", req.Symbol, "date", date, "interval", req.Interval)
		return entry.Candles, nil
	}
	r.metrics.CacheMiss(entity.GranularityIntraday, verdict.String())
	slog.DebugContext(ctx, "cache miss", "symbol", req.Symbol, "date", date, "interval", req.Interval, "verdict", verdict.String())

	return r.Refresh(ctx, req)
}

// Refresh はキャッシュを確認せずに上流から取得し、結果を保存します。
func (r *ReadThroughCache) Refresh(ctx context.Context, req SeriesRequest) ([]entity.Candle, error) {
	if r.flight == nil {
		return r.fetchAndStore(ctx, req)
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%t|%t", req.Symbol, r.cacheDate(req), req.Interval, req.OutputSize, req.Adjusted, req.ExtendedHours)
	// 共有フェッチは最初の呼び出し元のキャンセルに影響されない。各呼び出し元は自身のctxで待機を打ち切る
	ch := r.flight.DoChan(key, func() (any, error) {
		return r.fetchAndStore(context.WithoutCancel(ctx), req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entity.Candle), nil
	}
}

// Peek はストアだけを参照し、intervalが一致する空でないエントリのローソク足を返します。
// 上流APIは呼び出しません。
func (r *ReadThroughCache) Peek(ctx context.Context, symbol, date string, interval entity.Interval) ([]entity.Candle, bool) {
	entry, err := r.store.GetIntraday(ctx, symbol, date)
	if err != nil {
		if !errors.Is(err, domain.ErrEntryNotFound) {
			slog.WarnContext(ctx, "cache probe failed", "symbol", symbol, "key", entity.IntradayKey(date), "error", err)
		}
		return nil, false
	}
	if entry.Interval != interval || len(entry.Candles) == 0 {
		return nil, false
	}
	return entry.Candles, true
}

func (r *ReadThroughCache) fetchAndStore(ctx context.Context, req SeriesRequest) ([]entity.Candle, error) {
	date := r.cacheDate(req)

	candles, err := r.market.FetchSeries(ctx, req)
	if errors.Is(err, domain.ErrUpstreamThrottled) {
		// レート制限は空の成功として返し、キャッシュしない
		r.metrics.UpstreamFetch("throttled")
		slog.WarnContext(ctx, "upstream throttled", "symbol", req.Symbol, "interval", req.Interval)
		return []entity.Candle{}, nil
	}
	if err != nil {
		r.metrics.UpstreamFetch("error")
		var ue *domain.UpstreamError
		if !errors.As(err, &ue) {
			err = &domain.UpstreamError{Op: "fetch series", Err: err}
		}
		return nil, err
	}
	if len(candles) == 0 {
		// 空の結果は上流の制限であることが多いため保存しない
		r.metrics.UpstreamFetch("empty")
		return []entity.Candle{}, nil
	}
	r.metrics.UpstreamFetch("ok")

	now := r.now()
	if err := r.store.SetIntraday(ctx, entity.IntradayCacheEntry{
		Symbol:      req.Symbol,
		Date:        date,
		Interval:    req.Interval,
		Candles:     candles,
		LastUpdated: entity.NewTimestamp(now),
	}); err != nil {
		r.metrics.CacheWriteFailure("intraday")
		slog.WarnContext(ctx, "cache write failed", "symbol", req.Symbol, "key", entity.IntradayKey(date), "error", err)
	}

	if req.Month == "" {
		r.upsertDaily(ctx, req.Symbol, candles, now)
	}
	return candles, nil
}

// upsertDaily は最新セッションを日足に集計し、daily エントリの該当日だけを更新します。
func (r *ReadThroughCache) upsertDaily(ctx context.Context, symbol string, candles []entity.Candle, now time.Time) {
	sessionDate, session := entity.LatestSession(candles)
	daily, ok := aggregate.ToDaily(session)
	if !ok {
		return
	}
	if err := r.store.MergeUpsertField(ctx, symbol, entity.GranularityDaily, sessionDate, daily, now); err != nil {
		r.metrics.CacheWriteFailure("daily")
		slog.WarnContext(ctx, "daily aggregate upsert failed", "symbol", symbol, "date", sessionDate, "error", err)
	}
}

package usecase

import (
	"context"
	"time"

	"price_backend/internal/feature/prices/domain/entity"
)

// MaxDaysBack は直近セッションを探す際に遡る最大日数です（当日を含めて6日分）。
const MaxDaysBack = 5

// RecentSession は見つかったキャッシュ済みセッションです。
// Interval は実際に見つかった時間足で、要求と異なる場合があります。
type RecentSession struct {
	Date     string
	Interval entity.Interval
	Candles  []entity.Candle
}

// cachePeeker はストアのみを参照するプローブです。
type cachePeeker interface {
	Peek(ctx context.Context, symbol, date string, interval entity.Interval) ([]entity.Candle, bool)
}

// FallbackResolver は正確な日付がない場合に、直近の利用可能なセッションをキャッシュから探します。
// 週末・祝日や時間足ごとのキャッシュの偏りに対応するため、日付と時間足の組み合わせを有限回だけ調べます。
type FallbackResolver struct {
	cache    cachePeeker
	calendar MarketCalendar
	now      func() time.Time
}

// NewFallbackResolver は新しいFallbackResolverを生成します。
func NewFallbackResolver(cache cachePeeker, calendar MarketCalendar, now func() time.Time) *FallbackResolver {
	if now == nil {
		now = time.Now
	}
	return &FallbackResolver{cache: cache, calendar: calendar, now: now}
}

// FindRecentCachedData は当日から MaxDaysBack 日前まで、各日付で優先時間足→フォールバック順に
// キャッシュを調べ、最初に見つかった空でないデータを返します。上流APIは呼び出しません。
func (f *FallbackResolver) FindRecentCachedData(ctx context.Context, symbol string, preferred entity.Interval) (RecentSession, bool) {
	today := f.now().In(f.calendar.Location())
	intervals := probeOrder(preferred)

	for daysBack := 0; daysBack <= MaxDaysBack; daysBack++ {
		date := today.AddDate(0, 0, -daysBack).Format(entity.DateLayout)
		for _, iv := range intervals {
			if err := ctx.Err(); err != nil {
				return RecentSession{}, false
			}
			if candles, ok := f.cache.Peek(ctx, symbol, date, iv); ok {
				return RecentSession{Date: date, Interval: iv, Candles: candles}, true
			}
		}
	}
	return RecentSession{}, false
}

// probeOrder は優先時間足を先頭に、残りをフォールバック順で並べます。
func probeOrder(preferred entity.Interval) []entity.Interval {
	out := make([]entity.Interval, 0, len(entity.FallbackIntervals)+1)
	out = append(out, preferred)
	for _, iv := range entity.FallbackIntervals {
		if iv != preferred {
			out = append(out, iv)
		}
	}
	return out
}

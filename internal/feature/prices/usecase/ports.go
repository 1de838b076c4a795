// Package usecase は株価キャッシュと集計のビジネスロジックを実装します。
package usecase

import (
	"context"
	"time"

	"price_backend/internal/feature/prices/domain/entity"
)

// CacheStore はキャッシュドキュメントの永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
//
// 存在しないドキュメントには domain.ErrEntryNotFound を返します。
// 全体上書き（Set*）とフィールド単位のマージ（MergeUpsertField）は別の操作です。
type CacheStore interface {
	GetIntraday(ctx context.Context, symbol, date string) (*entity.IntradayCacheEntry, error)
	SetIntraday(ctx context.Context, entry entity.IntradayCacheEntry) error
	GetAggregate(ctx context.Context, symbol string, granularity entity.Granularity) (*entity.AggregateCacheEntry, error)
	SetAggregate(ctx context.Context, entry entity.AggregateCacheEntry) error
	// MergeUpsertField は prices.<periodKey> の1フィールドだけを書き込み、lastUpdated を更新します。
	MergeUpsertField(ctx context.Context, symbol string, granularity entity.Granularity, periodKey string, candle entity.Candle, updatedAt time.Time) error
}

// SeriesRequest は上流APIへの時系列取得リクエストです。
type SeriesRequest struct {
	Symbol        string
	Interval      entity.Interval
	OutputSize    entity.OutputSize
	Adjusted      bool
	ExtendedHours bool
	Month         string // YYYY-MM。空なら直近データ
}

// MarketRepository は上流の株価データプロバイダーを抽象化します。
// レート制限時は domain.ErrUpstreamThrottled、通信・HTTP失敗時は *domain.UpstreamError を返します。
type MarketRepository interface {
	FetchSeries(ctx context.Context, req SeriesRequest) ([]entity.Candle, error)
}

// Recorder はキャッシュ動作のメトリクスを記録します。
type Recorder interface {
	CacheHit(granularity entity.Granularity)
	CacheMiss(granularity entity.Granularity, reason string)
	UpstreamFetch(outcome string)
	CacheWriteFailure(op string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(entity.Granularity)          {}
func (nopRecorder) CacheMiss(entity.Granularity, string) {}
func (nopRecorder) UpstreamFetch(string)                 {}
func (nopRecorder) CacheWriteFailure(string)             {}

package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

type priceCacheSQL struct {
	db *gorm.DB
}

var _ usecase.CacheStore = (*priceCacheSQL)(nil)

// NewPriceCacheRepository returns a CacheStore backed by a relational database.
func NewPriceCacheRepository(db *gorm.DB) *priceCacheSQL {
	return &priceCacheSQL{db: db}
}

// IntradayEntryModel is one intraday document; candles are kept as a JSON array.
type IntradayEntryModel struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"size:32;not null;uniqueIndex:intraday_sym_date,priority:1"`
	Date        string    `gorm:"size:10;not null;uniqueIndex:intraday_sym_date,priority:2"`
	Interval    string    `gorm:"column:series_interval;size:8;not null"`
	Candles     string    `gorm:"type:text;not null"`
	LastUpdated time.Time `gorm:"not null"`
}

func (IntradayEntryModel) TableName() string {
	return "intraday_entries"
}

// AggregateEntryModel carries the document-level metadata of an aggregate.
type AggregateEntryModel struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"size:32;not null;uniqueIndex:aggregate_sym_gran,priority:1"`
	Granularity string    `gorm:"size:16;not null;uniqueIndex:aggregate_sym_gran,priority:2"`
	LastUpdated time.Time `gorm:"not null"`
}

func (AggregateEntryModel) TableName() string {
	return "aggregate_entries"
}

// AggregatePriceModel is one prices.<period> field of an aggregate document.
type AggregatePriceModel struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"size:32;not null;uniqueIndex:aggregate_sym_gran_period,priority:1"`
	Granularity string    `gorm:"size:16;not null;uniqueIndex:aggregate_sym_gran_period,priority:2"`
	PeriodKey   string    `gorm:"size:16;not null;uniqueIndex:aggregate_sym_gran_period,priority:3"`
	Time        time.Time `gorm:"not null"`

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume int64   `gorm:"not null;default:0"`
}

func (AggregatePriceModel) TableName() string {
	return "aggregate_prices"
}

// Models lists the tables this repository needs migrated.
func Models() []any {
	return []any{&IntradayEntryModel{}, &AggregateEntryModel{}, &AggregatePriceModel{}}
}

// Ping reports whether the database is reachable.
func (r *priceCacheSQL) Ping(ctx context.Context) error {
	if r.db == nil {
		return domain.ErrStoreUnavailable
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *priceCacheSQL) GetIntraday(ctx context.Context, symbol, date string) (*entity.IntradayCacheEntry, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var m IntradayEntryModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND date = ?", symbol, date).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: intraday %s/%s: %w", domain.ErrCacheRead, symbol, date, err)
	}

	var candles []entity.Candle
	if err := json.Unmarshal([]byte(m.Candles), &candles); err != nil {
		return nil, fmt.Errorf("%w: decode intraday %s/%s: %w", domain.ErrCacheRead, symbol, date, err)
	}
	return &entity.IntradayCacheEntry{
		Symbol:      m.Symbol,
		Date:        m.Date,
		Interval:    entity.Interval(m.Interval),
		Candles:     candles,
		LastUpdated: entity.NewTimestamp(m.LastUpdated),
	}, nil
}

func (r *priceCacheSQL) SetIntraday(ctx context.Context, entry entity.IntradayCacheEntry) error {
	if r.db == nil {
		return domain.ErrStoreUnavailable
	}
	candles := entry.Candles
	if candles == nil {
		candles = []entity.Candle{}
	}
	b, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("%w: encode intraday %s/%s: %w", domain.ErrCacheWrite, entry.Symbol, entry.Date, err)
	}
	m := IntradayEntryModel{
		Symbol:      entry.Symbol,
		Date:        entry.Date,
		Interval:    string(entry.Interval),
		Candles:     string(b),
		LastUpdated: entry.LastUpdated.Time,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"series_interval", "candles", "last_updated"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: intraday %s/%s: %w", domain.ErrCacheWrite, entry.Symbol, entry.Date, err)
	}
	return nil
}

func (r *priceCacheSQL) GetAggregate(ctx context.Context, symbol string, granularity entity.Granularity) (*entity.AggregateCacheEntry, error) {
	if r.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	db := r.db.WithContext(ctx)

	var head AggregateEntryModel
	err := db.Where("symbol = ? AND granularity = ?", symbol, string(granularity)).First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate %s/%s: %w", domain.ErrCacheRead, symbol, granularity, err)
	}

	var rows []AggregatePriceModel
	err = db.Where("symbol = ? AND granularity = ?", symbol, string(granularity)).
		Order("period_key ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate prices %s/%s: %w", domain.ErrCacheRead, symbol, granularity, err)
	}

	prices := make(map[string]entity.Candle, len(rows))
	for _, m := range rows {
		prices[m.PeriodKey] = entity.Candle{
			Time:   m.Time,
			Open:   m.Open,
			High:   m.High,
			Low:    m.Low,
			Close:  m.Close,
			Volume: m.Volume,
		}
	}
	return &entity.AggregateCacheEntry{
		Symbol:      symbol,
		Granularity: granularity,
		Prices:      prices,
		LastUpdated: entity.NewTimestamp(head.LastUpdated),
	}, nil
}

// SetAggregate replaces every period of the document in one transaction.
func (r *priceCacheSQL) SetAggregate(ctx context.Context, entry entity.AggregateCacheEntry) error {
	if r.db == nil {
		return domain.ErrStoreUnavailable
	}
	g := string(entry.Granularity)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("symbol = ? AND granularity = ?", entry.Symbol, g).
			Delete(&AggregatePriceModel{}).Error; err != nil {
			return err
		}
		if len(entry.Prices) > 0 {
			ms := make([]AggregatePriceModel, 0, len(entry.Prices))
			for period, c := range entry.Prices {
				ms = append(ms, toPriceModel(entry.Symbol, entry.Granularity, period, c))
			}
			if err := tx.Create(&ms).Error; err != nil {
				return err
			}
		}
		return upsertHead(tx, entry.Symbol, g, entry.LastUpdated.Time)
	})
	if err != nil {
		return fmt.Errorf("%w: aggregate %s/%s: %w", domain.ErrCacheWrite, entry.Symbol, g, err)
	}
	return nil
}

// MergeUpsertField upserts one period row and bumps the document's lastUpdated.
func (r *priceCacheSQL) MergeUpsertField(ctx context.Context, symbol string, granularity entity.Granularity, periodKey string, candle entity.Candle, updatedAt time.Time) error {
	if r.db == nil {
		return domain.ErrStoreUnavailable
	}
	m := toPriceModel(symbol, granularity, periodKey, candle)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "granularity"}, {Name: "period_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"time", "open", "high", "low", "close", "volume"}),
		}).Create(&m).Error; err != nil {
			return err
		}
		return upsertHead(tx, symbol, string(granularity), updatedAt)
	})
	if err != nil {
		return fmt.Errorf("%w: merge %s/%s.%s: %w", domain.ErrCacheWrite, symbol, granularity, periodKey, err)
	}
	return nil
}

func upsertHead(tx *gorm.DB, symbol, granularity string, updatedAt time.Time) error {
	head := AggregateEntryModel{Symbol: symbol, Granularity: granularity, LastUpdated: updatedAt}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "granularity"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_updated"}),
	}).Create(&head).Error
}

func toPriceModel(symbol string, granularity entity.Granularity, period string, c entity.Candle) AggregatePriceModel {
	return AggregatePriceModel{
		Symbol:      symbol,
		Granularity: string(granularity),
		PeriodKey:   period,
		Time:        c.Time,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		Volume:      c.Volume,
	}
}

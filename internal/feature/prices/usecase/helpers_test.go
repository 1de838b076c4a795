package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

// ErrStore はモックストアが返す共通エラーです。
var ErrStore = errors.New("store down")

// memStore はCacheStoreのインメモリ実装です。呼び出し回数を記録します。
type memStore struct {
	mu         sync.Mutex
	intraday   map[string]entity.IntradayCacheEntry
	aggregates map[string]entity.AggregateCacheEntry

	getErr error
	setErr error
	// failGranularity の集計読み込みだけを ErrStore で失敗させる
	failGranularity entity.Granularity

	GetIntradayCalls  int
	SetIntradayCalls  int
	MergeCalls        int
	SetAggregateCalls int
	MergedKeys        []string
}

func newMemStore() *memStore {
	return &memStore{
		intraday:   map[string]entity.IntradayCacheEntry{},
		aggregates: map[string]entity.AggregateCacheEntry{},
	}
}

func (m *memStore) GetIntraday(ctx context.Context, symbol, date string) (*entity.IntradayCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetIntradayCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.intraday[symbol+"|"+date]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &e, nil
}

func (m *memStore) SetIntraday(ctx context.Context, entry entity.IntradayCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetIntradayCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.intraday[entry.Symbol+"|"+entry.Date] = entry
	return nil
}

func (m *memStore) GetAggregate(ctx context.Context, symbol string, g entity.Granularity) (*entity.AggregateCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.failGranularity != "" && m.failGranularity == g {
		return nil, ErrStore
	}
	e, ok := m.aggregates[symbol+"|"+string(g)]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &e, nil
}

func (m *memStore) SetAggregate(ctx context.Context, entry entity.AggregateCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetAggregateCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.aggregates[entry.Symbol+"|"+string(entry.Granularity)] = entry
	return nil
}

func (m *memStore) MergeUpsertField(ctx context.Context, symbol string, g entity.Granularity, periodKey string, c entity.Candle, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MergeCalls++
	if m.setErr != nil {
		return m.setErr
	}
	key := symbol + "|" + string(g)
	e, ok := m.aggregates[key]
	if !ok {
		e = entity.AggregateCacheEntry{Symbol: symbol, Granularity: g}
	}
	if e.Prices == nil {
		e.Prices = map[string]entity.Candle{}
	}
	e.Prices[periodKey] = c
	e.LastUpdated = entity.NewTimestamp(updatedAt)
	m.aggregates[key] = e
	m.MergedKeys = append(m.MergedKeys, periodKey)
	return nil
}

// mockMarket はMarketRepositoryのモック実装です。
type mockMarket struct {
	mu        sync.Mutex
	FetchFunc func(ctx context.Context, req usecase.SeriesRequest) ([]entity.Candle, error)
	Calls     int
	Requests  []usecase.SeriesRequest
}

func (m *mockMarket) FetchSeries(ctx context.Context, req usecase.SeriesRequest) ([]entity.Candle, error) {
	m.mu.Lock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, req)
	}
	return nil, errors.New("FetchFunc is not implemented")
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load America/New_York: %v", err)
	}
	return loc
}

// session は date の 09:30 (UTC-5) から step 間隔で n 本のローソク足を生成します。
func session(date string, n int, step time.Duration) []entity.Candle {
	d, _ := time.ParseInLocation(entity.DateLayout, date, entity.UpstreamZone)
	start := d.Add(9*time.Hour + 30*time.Minute)
	out := make([]entity.Candle, 0, n)
	for i := 0; i < n; i++ {
		p := float64(100 + i)
		out = append(out, entity.Candle{
			Time:   start.Add(time.Duration(i) * step),
			Open:   p,
			High:   p + 2,
			Low:    p - 1,
			Close:  p + 1,
			Volume: int64(10 * (i + 1)),
		})
	}
	return out
}

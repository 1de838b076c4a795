package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

// mockPrices is a function-field mock of the reader WarmUsecase depends on.
type mockPrices struct {
	IntradayFunc  func(ctx context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error)
	AggregateFunc func(ctx context.Context, symbol, granularity string) (usecase.AggregateResult, error)

	IntradayCalls  []usecase.IntradayParams
	AggregateCalls []string
}

func (m *mockPrices) GetIntradayPrices(ctx context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error) {
	m.IntradayCalls = append(m.IntradayCalls, p)
	return m.IntradayFunc(ctx, p)
}

func (m *mockPrices) GetAggregatedPrices(ctx context.Context, symbol, granularity string) (usecase.AggregateResult, error) {
	m.AggregateCalls = append(m.AggregateCalls, symbol+"/"+granularity)
	if m.AggregateFunc != nil {
		return m.AggregateFunc(ctx, symbol, granularity)
	}
	return usecase.AggregateResult{}, nil
}

func TestWarmUsecase_WarmAll(t *testing.T) {
	t.Parallel()

	m := &mockPrices{
		IntradayFunc: func(ctx context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error) {
			switch p.Symbol {
			case "AAPL":
				return usecase.IntradayResult{Symbol: "AAPL", Interval: entity.Interval15Min, Candles: session("2024-03-01", 2, 15*time.Minute)}, nil
			case "THROTTLED":
				return usecase.IntradayResult{Symbol: "THROTTLED", Interval: entity.Interval15Min, Candles: []entity.Candle{}}, nil
			default:
				return usecase.IntradayResult{}, errors.New("upstream down")
			}
		},
	}

	report, err := usecase.NewWarmUsecase(m).WarmAll(context.Background(), []string{"AAPL", "THROTTLED", "BROKEN"}, "15min")
	require.NoError(t, err)

	assert.Equal(t, usecase.WarmReport{Symbols: 3, Fetched: 1, Empty: 1, Failed: 1}, report)
	require.Len(t, m.IntradayCalls, 3)
	assert.Equal(t, usecase.IntradayParams{
		Symbol:        "AAPL",
		Interval:      "15min",
		OutputSize:    "compact",
		Adjusted:      true,
		ExtendedHours: true,
	}, m.IntradayCalls[0])
	// aggregates only follow a successful fetch
	assert.Equal(t, []string{"AAPL/weekly", "AAPL/monthly"}, m.AggregateCalls)
}

func TestWarmUsecase_WarmAll_AggregateFailureContinues(t *testing.T) {
	t.Parallel()

	m := &mockPrices{
		IntradayFunc: func(ctx context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error) {
			return usecase.IntradayResult{Symbol: p.Symbol, Candles: session("2024-03-01", 1, time.Minute)}, nil
		},
		AggregateFunc: func(ctx context.Context, symbol, granularity string) (usecase.AggregateResult, error) {
			return usecase.AggregateResult{}, errors.New("store down")
		},
	}

	report, err := usecase.NewWarmUsecase(m).WarmAll(context.Background(), []string{"AAPL", "MSFT"}, "1min")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Len(t, m.AggregateCalls, 4)
}

func TestWarmUsecase_WarmAll_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	m := &mockPrices{
		IntradayFunc: func(_ context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error) {
			cancel()
			return usecase.IntradayResult{Symbol: p.Symbol}, nil
		},
	}

	report, err := usecase.NewWarmUsecase(m).WarmAll(ctx, []string{"AAPL", "MSFT", "IBM"}, "5min")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Symbols)
	assert.Len(t, m.IntradayCalls, 1)
}

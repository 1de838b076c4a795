package usecase

import (
	"context"
	"log/slog"

	"price_backend/internal/feature/prices/domain/entity"
)

// warmGranularities は当日データ取得後に再計算する集計の粒度です。
var warmGranularities = []entity.Granularity{entity.GranularityWeekly, entity.GranularityMonthly}

// pricesReader はWarmUsecaseが利用する読み取り操作です。
type pricesReader interface {
	GetIntradayPrices(ctx context.Context, p IntradayParams) (IntradayResult, error)
	GetAggregatedPrices(ctx context.Context, symbol, granularity string) (AggregateResult, error)
}

var _ pricesReader = (*PricesUsecase)(nil)

// WarmReport はWarmAllの結果の集計です。
type WarmReport struct {
	Symbols int // 処理した銘柄数
	Fetched int // ローソク足を1本以上得られた銘柄数
	Empty   int // 空の結果（上流の制限を含む）だった銘柄数
	Failed  int // エラーになった銘柄数
}

// WarmUsecase は指定銘柄のキャッシュを事前に温めるユースケースです。
// 上流の呼び出し頻度はMarketRepository側のレートリミッターで制御されます。
type WarmUsecase struct {
	prices pricesReader
}

// NewWarmUsecase は新しい WarmUsecase を作成します。
func NewWarmUsecase(prices pricesReader) *WarmUsecase {
	return &WarmUsecase{prices: prices}
}

// WarmAll は全銘柄について当日データを読み通しキャッシュ経由で取得し、週足・月足を再計算します。
// 1つの銘柄でエラーが発生しても処理を止めずにログに出力し、次の銘柄へ進みます。
// ctx がキャンセルされた場合はそこで中断し、ctx.Err() を返します。
func (wu *WarmUsecase) WarmAll(ctx context.Context, symbols []string, interval string) (WarmReport, error) {
	var report WarmReport
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Symbols++

		res, err := wu.prices.GetIntradayPrices(ctx, IntradayParams{
			Symbol:        s,
			Interval:      interval,
			OutputSize:    string(entity.OutputSizeCompact),
			Adjusted:      true,
			ExtendedHours: true,
		})
		if err != nil {
			report.Failed++
			slog.ErrorContext(ctx, "failed to warm intraday", "symbol", s, "interval", interval, "error", err)
			continue
		}
		if len(res.Candles) == 0 {
			report.Empty++
			slog.WarnContext(ctx, "no intraday data", "symbol", res.Symbol, "interval", res.Interval)
			continue
		}
		report.Fetched++

		for _, g := range warmGranularities {
			if _, err := wu.prices.GetAggregatedPrices(ctx, res.Symbol, string(g)); err != nil {
				slog.ErrorContext(ctx, "failed to warm aggregate", "symbol", res.Symbol, "granularity", g, "error", err)
			}
		}
	}
	return report, nil
}

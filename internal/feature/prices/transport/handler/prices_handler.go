// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/transport/http/dto"
	"price_backend/internal/feature/prices/usecase"
)

// PricesUsecase は株価データ取得のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PricesUsecase interface {
	GetIntradayPrices(ctx context.Context, p usecase.IntradayParams) (usecase.IntradayResult, error)
	GetRecentOpenDay(ctx context.Context, symbol, interval string) (usecase.RecentOpenDayResult, error)
	GetAggregatedPrices(ctx context.Context, symbol, granularity string) (usecase.AggregateResult, error)
}

// PricesHandler は株価データのHTTPリクエストを処理します。
type PricesHandler struct {
	uc PricesUsecase
}

// NewPricesHandler は指定されたusecaseでPricesHandlerの新しいインスタンスを生成します。
func NewPricesHandler(uc PricesUsecase) *PricesHandler {
	return &PricesHandler{uc: uc}
}

// GetIntraday は銘柄のイントラデイデータをJSONで返します。
//
// エンドポイント例:
// GET /prices/:symbol/intraday?interval=15min&outputsize=compact&adjusted=true&extended_hours=true&month=2024-01
func (h *PricesHandler) GetIntraday(c *gin.Context) {
	p := usecase.IntradayParams{
		Symbol:     c.Param("symbol"),
		Interval:   c.Query("interval"),
		OutputSize: c.Query("outputsize"),
		// 未指定・不正な値は上流APIのデフォルト（true）を使用
		Adjusted:      queryBool(c, "adjusted", true),
		ExtendedHours: queryBool(c, "extended_hours", true),
		Month:         c.Query("month"),
	}

	res, err := h.uc.GetIntradayPrices(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.IntradayResponse{
		Symbol:   res.Symbol,
		Interval: string(res.Interval),
		Candles:  dto.ToCandleResponses(res.Candles),
	})
}

// GetRecentOpenDay は直近の取引日のデータを返します。
//
// エンドポイント例:
// GET /prices/:symbol/recent?interval=15min
func (h *PricesHandler) GetRecentOpenDay(c *gin.Context) {
	res, err := h.uc.GetRecentOpenDay(c.Request.Context(), c.Param("symbol"), c.Query("interval"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RecentOpenDayResponse{
		Symbol:     res.Symbol,
		Interval:   string(res.Interval),
		TradingDay: res.TradingDay,
		Candles:    dto.ToCandleResponses(res.Candles),
	})
}

// GetAggregates は日足・週足・月足の集計データを返します。
//
// エンドポイント例:
// GET /prices/:symbol/aggregates/weekly
func (h *PricesHandler) GetAggregates(c *gin.Context) {
	res, err := h.uc.GetAggregatedPrices(c.Request.Context(), c.Param("symbol"), c.Param("granularity"))
	if err != nil {
		writeError(c, err)
		return
	}

	prices := make(map[string]dto.CandleResponse, len(res.Prices))
	for k, v := range res.Prices {
		prices[k] = dto.ToCandleResponse(v)
	}
	c.JSON(http.StatusOK, dto.AggregateResponse{
		Symbol:      res.Symbol,
		Granularity: string(res.Granularity),
		Prices:      prices,
	})
}

// writeError はエラーの種類をHTTPステータスに変換します。
func writeError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: ve.Error()})
	case errors.As(err, &ue):
		slog.ErrorContext(c.Request.Context(), "upstream request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "upstream market data provider failed"})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	priceshandler "price_backend/internal/feature/prices/transport/handler"
)

// NewRouter はルーティングを登録したginエンジンを返します。
// metrics が nil の場合 /metrics は登録しません。
func NewRouter(prices *priceshandler.PricesHandler, health gin.HandlerFunc, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 導通確認用
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// 株価
	p := r.Group("/prices/:symbol")
	{
		p.GET("/intraday", prices.GetIntraday)
		p.GET("/recent", prices.GetRecentOpenDay)
		p.GET("/aggregates/:granularity", prices.GetAggregates)
	}

	return r
}

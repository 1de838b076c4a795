// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const pingTimeout = 2 * time.Second

// Pinger は到達性を確認できるバックエンドです。
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealth はサービスヘルスチェック用の /healthz ハンドラーを返します。
// GET ではキャッシュストアへの疎通も確認し、到達できなければ 503 を返します。
// store が nil の場合は疎通確認を省略します。
func NewHealth(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 明示的にキャッシュを防止
		c.Header("Cache-Control", "no-store")

		switch c.Request.Method {
		case http.MethodHead:
			c.Status(http.StatusOK)
		case http.MethodOptions:
			c.Status(http.StatusNoContent)
		default:
			if store == nil {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
				return
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				slog.WarnContext(ctx, "health check: store unreachable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unavailable"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "ok"})
		}
	}
}

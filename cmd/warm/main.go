package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"price_backend/internal/app/di"
	priceadapters "price_backend/internal/feature/prices/adapters"
	"price_backend/internal/feature/prices/usecase"
	"price_backend/internal/platform/config"
	infradb "price_backend/internal/platform/db"
	"price_backend/internal/platform/externalapi/alphavantage"
	"price_backend/internal/platform/logger"
	"price_backend/internal/platform/metrics"
	infraredis "price_backend/internal/platform/redis"
)

func main() {
	os.Exit(run())
}

// run はキャッシュを温め、終了コードを返します。
func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger.Setup(os.Stderr, cfg.LogLevel)

	warmCfg, err := config.LoadWarm()
	if err != nil {
		slog.Error("failed to load warm config", "error", err)
		return 1
	}
	if len(warmCfg.Symbols) == 0 {
		slog.Warn("WARM_SYMBOLS is empty; nothing to do")
		return 0
	}
	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid exchange timezone", "error", err)
		return 1
	}
	avCfg, err := alphavantage.LoadConfig()
	if err != nil {
		slog.Error("failed to load upstream config", "error", err)
		return 1
	}
	redisCfg, err := infraredis.LoadConfig()
	if err != nil {
		slog.Error("failed to load redis config", "error", err)
		return 1
	}

	var (
		rdb *redisv9.Client
		db  *gorm.DB
	)
	if cfg.StoreBackend == config.BackendPostgres {
		dbCfg, err := infradb.LoadConfigFromEnv()
		if err != nil {
			slog.Error("failed to load db config", "error", err)
			return 1
		}
		if db, err = infradb.OpenDB(dbCfg, priceadapters.Models()...); err != nil {
			slog.Error("failed to open database", "error", err)
			return 1
		}
	} else {
		// キャッシュなしで温めても意味がないため、Redisに接続できなければ終了
		if rdb, err = infraredis.NewRedisClient(ctx, redisCfg); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			return 1
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}
	store := di.NewCacheStore(cfg.StoreBackend, rdb, db, redisCfg.Namespace, redisCfg.Retention)

	pricesUC := di.NewPricesUsecase(cfg, loc, store, di.NewMarket(avCfg), metrics.New(""))
	warmUC := usecase.NewWarmUsecase(pricesUC)

	// 5件/分の制限で待機するため、銘柄数に応じて十分な時間を確保
	ctx, cancelTimeout := context.WithTimeout(ctx, time.Duration(len(warmCfg.Symbols)+1)*time.Minute)
	defer cancelTimeout()

	start := time.Now()
	report, err := warmUC.WarmAll(ctx, warmCfg.Symbols, warmCfg.Interval)
	slog.Info("warm finished",
		"symbols", report.Symbols,
		"fetched", report.Fetched,
		"empty", report.Empty,
		"failed", report.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err != nil {
		slog.Error("warm interrupted", "error", err)
		return 1
	}
	return 0
}

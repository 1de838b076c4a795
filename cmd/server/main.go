package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"price_backend/internal/app/di"
	"price_backend/internal/app/router"
	priceadapters "price_backend/internal/feature/prices/adapters"
	"price_backend/internal/platform/config"
	infradb "price_backend/internal/platform/db"
	"price_backend/internal/platform/externalapi/alphavantage"
	healthhandler "price_backend/internal/platform/http/handler"
	"price_backend/internal/platform/logger"
	"price_backend/internal/platform/metrics"
	infraredis "price_backend/internal/platform/redis"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(os.Stderr, cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid exchange timezone", "error", err)
		os.Exit(1)
	}
	avCfg, err := alphavantage.LoadConfig()
	if err != nil {
		slog.Error("failed to load upstream config", "error", err)
		os.Exit(1)
	}
	if avCfg.APIKey == "" {
		slog.Warn("ALPHAVANTAGE_API_KEY is not set; upstream calls will fail")
	}

	// キャッシュストア
	var (
		rdb *redisv9.Client
		db  *gorm.DB
	)
	redisCfg, err := infraredis.LoadConfig()
	if err != nil {
		slog.Error("failed to load redis config", "error", err)
		os.Exit(1)
	}
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbCfg, err := infradb.LoadConfigFromEnv()
		if err != nil {
			slog.Error("failed to load db config", "error", err)
			os.Exit(1)
		}
		db, err = infradb.OpenDB(dbCfg, priceadapters.Models()...)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
	default:
		if tmp, err := infraredis.NewRedisClient(ctx, redisCfg); err != nil {
			slog.Warn("Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}
	store := di.NewCacheStore(cfg.StoreBackend, rdb, db, redisCfg.Namespace, redisCfg.Retention)

	// Usecase / Handler
	m := metrics.New("")
	pricesUC := di.NewPricesUsecase(cfg, loc, store, di.NewMarket(avCfg), m)
	pricesH := di.NewPricesHandler(pricesUC)

	// ルータ生成
	engine := router.NewRouter(pricesH, healthhandler.NewHealth(store), m.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "listen_address", cfg.Addr, "store", cfg.StoreBackend, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			return err
		}
		return nil
	})

	// Handle graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		slog.Info("shutting down server gracefully")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server terminated", "error", err)
	}
}

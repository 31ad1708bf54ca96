package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/billing"
	"github.com/ksred/klear-bill/internal/config"
	"github.com/ksred/klear-bill/internal/database"
	"github.com/ksred/klear-bill/internal/ledger"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/pkg/middleware"
)

// init configures logging until the config file has been read.
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main runs the billing API with graceful shutdown support.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		zlog.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load(os.Getenv("KLEARBILL_CONFIG"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	if os.Getenv("ENV") == "production" {
		cfg.Logging.Pretty = false
	}
	cfg.Logging.Apply(os.Stdout)

	runs := ledger.NewService(nil)
	if cfg.Ledger.Enabled {
		db, err := database.NewDatabase(cfg.Ledger.DSN)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to initialize database")
		}
		runs = ledger.NewService(ledger.NewDatabase(db))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cards := ratecard.NewCache(ratecard.FileLoader(cfg.RateCardOptions()))
	if _, err := cards.Get(); err != nil {
		// The service still starts; requests report the configuration error.
		zlog.Warn().Err(err).Msg("Rate card not loaded at startup")
	}
	if cfg.RateCard.WatchInterval > 0 {
		go ratecard.NewWatcher(cards, cfg.RateCardOptions(), cfg.RateCard.WatchInterval).Start(ctx)
	}

	limiter := middleware.NewRateLimiter(
		middleware.Limit{Prefix: "/api/v1/admin", PerMinute: cfg.RateLimit.AdminPerMinute},
		middleware.Limit{Prefix: "/api/v1/bills", PerMinute: cfg.RateLimit.BillsPerMinute},
	)
	go limiter.Start(ctx)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(gin.Recovery(), middleware.RequestLogger(), limiter.Handler())

	service := billing.NewService(cards, runs, billing.Options{
		MaxErrorLength:  cfg.Billing.MaxErrorLength,
		DebugSampleRows: cfg.Billing.DebugSampleRows,
	})
	billing.NewGinHandlers(service, cfg.MaxUploadBytes()).Register(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info().Int("port", cfg.Server.Port).Bool("ledger", runs.Enabled()).Msg("Starting billing server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

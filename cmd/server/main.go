package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"

	"github.com/ksred/order-core/internal/config"
	"github.com/ksred/order-core/internal/database"
	"github.com/ksred/order-core/internal/engine"
	"github.com/ksred/order-core/internal/eventbus"
	"github.com/ksred/order-core/internal/holdings"
	"github.com/ksred/order-core/internal/httpapi"
	"github.com/ksred/order-core/internal/idempotency"
	"github.com/ksred/order-core/internal/refdata"
	"github.com/ksred/order-core/internal/settlement"
	"github.com/ksred/order-core/internal/statelog"
	"github.com/ksred/order-core/internal/store"
	"github.com/ksred/order-core/internal/wsstream"
	"github.com/ksred/order-core/pkg/middleware"
)

// init configures logging: pretty console output outside production,
// level gated by DEBUG.
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

func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize database")
	}

	st := store.New(db)
	rd := refdata.NewRepository(db)
	idemp := idempotency.NewRegistry()
	hm := holdings.NewMutator()
	sl := statelog.NewWriter()
	bus := eventbus.New()

	sched := settlement.New(st, sl, bus, cfg.SettlementDelay)
	if err := sched.Restore(context.Background()); err != nil {
		zlog.Fatal().Err(err).Msg("failed to restore settlement jobs")
	}
	sched.Start()

	eng := engine.New(engine.Config{
		WorkerPoolSize:     cfg.WorkerPoolSize,
		QueueSize:          cfg.QueueSize,
		ProcessingDeadline: cfg.ProcessingDeadline,
		MaxRetries:         cfg.MaxRetries,
		RetryBaseDelay:     cfg.RetryBaseDelay,
		SettlementDelay:    cfg.SettlementDelay,
	}, st, rd, idemp, hm, sl, bus, sched)
	eng.Start()

	handlers := httpapi.New(eng, st, rd)
	stream := wsstream.New(bus)

	router := gin.Default()
	router.Use(middleware.RateLimit())
	handlers.Register(router)
	router.GET("/stream/:investorId", stream.Handle)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down server...")

	eng.Stop()
	sched.Stop()
	bus.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server exiting")
}

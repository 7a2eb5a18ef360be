package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetops/fleet-dashboard/internal/api"
	"github.com/fleetops/fleet-dashboard/internal/api/ws"
	"github.com/fleetops/fleet-dashboard/internal/core/service"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/config"
	mongodb "github.com/fleetops/fleet-dashboard/internal/infrastructure/db/mongo"
	redisdb "github.com/fleetops/fleet-dashboard/internal/infrastructure/db/redis"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/feed"
	"github.com/fleetops/fleet-dashboard/internal/infrastructure/queue"
	"github.com/fleetops/fleet-dashboard/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Env == "development"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()

	historyRepo := mongodb.NewHistoryRepository(db)
	if err := historyRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("history indexes")
	}
	if err := mongodb.NewAuthRepository(db).EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("operator indexes")
	}

	// --- Core services ---
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	animator := service.NewAnimator(service.TickerScheduler{Interval: cfg.Animation.FrameInterval}, hub, nil, log)
	fleet := service.NewFleetService(animator, hub, historyRepo, cfg.Animation.Duration, log)
	animator.SetTraceRecorder(fleet)

	ingest := queue.NewIngest(fleet, 0, log)
	ingest.Start(ctx)
	defer ingest.Stop()

	simulator := service.NewSimulator(fleet, cfg.Simulator.Interval, cfg.Simulator.MaxDelta, log)

	// --- Upstream feed, or demo data without one ---
	feedStatus := func() string { return string(feed.StatusClosed) }
	var feedReconnect func()
	if cfg.Feed.URL != "" {
		client := feed.NewClient(feed.Config{
			URL:           cfg.Feed.URL,
			RetryInterval: cfg.Feed.RetryInterval,
			MaxRetries:    cfg.Feed.MaxRetries,
		}, log)
		client.OnMessage(func(raw []byte) {
			upd, err := feed.DecodeMessage(raw)
			if err != nil {
				log.Warn().Err(err).Msg("feed message dropped")
				return
			}
			if err := ingest.Enqueue(upd); err != nil {
				log.Warn().Err(err).Msg("feed update dropped")
			}
		})
		// Simulated motion resumes only on exhaustion: a lost connection
		// passes through closed on its way to the next retry, and flapping
		// the simulator on every drop would fight the feed.
		client.OnStatus(func(st feed.Status) {
			hub.FeedStatus(string(st))
			if st == feed.StatusOpen {
				simulator.Suspend()
			}
		})
		client.OnExhausted(func() {
			simulator.Resume()
			log.Error().Msg("feed offline; waiting for manual reconnect")
		})
		client.Connect()
		defer client.Close()
		feedStatus = func() string { return string(client.Status()) }
		feedReconnect = client.Reconnect
	} else if err := service.SeedDemo(ctx, fleet); err != nil {
		log.Warn().Err(err).Msg("demo seed")
	}

	if cfg.Simulator.Enabled {
		if err := simulator.Start(); err != nil {
			log.Fatal().Err(err).Msg("simulator start")
		}
		defer simulator.Stop()
	}

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Mongo:         db,
		Redis:         rdb,
		JWTSecret:     cfg.JWTSecret,
		Fleet:         fleet,
		History:       historyRepo,
		Ingest:        ingest,
		Hub:           hub,
		FeedStatus:    feedStatus,
		FeedReconnect: feedReconnect,
		Log:           log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("fleet dashboard up")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

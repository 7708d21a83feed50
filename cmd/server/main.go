package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"normative/internal/contentsync"
	csmetrics "normative/internal/contentsync/metrics"
	"normative/internal/extraction"
	"normative/internal/platform/config"
	"normative/internal/platform/httpserver"
	"normative/internal/platform/logger"
	"normative/internal/platform/postgres"
	platformredis "normative/internal/platform/redis"
	"normative/internal/release"
	releasemetrics "normative/internal/release/metrics"
	"normative/internal/rules"
	rulesmetrics "normative/internal/rules/metrics"
	httptransport "normative/internal/transport/http"
	"normative/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
// Batch pipeline stages run through normctl; the server carries the read-only
// release API and the content-sync background loops.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]func() error{}

	// Storage. Without a DSN everything runs in memory, which is the local
	// development mode.
	var (
		txRunner     tx.Runner
		pointerStore extraction.Store
		ruleStore    rules.Store
		releaseStore release.Store
		syncStore    contentsync.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		txRunner = &tx.SQLRunner{DB: db}
		pointerStore = extraction.NewPostgresStore(db)
		ruleStore = rules.NewPostgresStore(db)
		releaseStore = release.NewPostgresStore(db)
		syncStore = contentsync.NewPostgresStore(db)
		healthChecks["postgres"] = db.Ping
	} else {
		log.Warn("no postgres DSN configured, running on in-memory stores")
		txRunner = &tx.MutexRunner{}
		pointerStore = extraction.NewInMemoryStore()
		ruleStore = rules.NewInMemoryStore()
		releaseStore = release.NewInMemoryStore()
		syncStore = contentsync.NewInMemoryStore()
	}

	// Release cache. Redis being down degrades to a pass-through.
	var cache httptransport.Cache = httptransport.NoopCache{}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = httptransport.NewRedisCache(redisClient, log)
		healthChecks["redis"] = func() error {
			return redisClient.Health(context.Background())
		}
	}

	// Content-sync queue.
	var backend contentsync.QueueBackend = contentsync.NewMemoryBackend()
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := contentsync.NewKafkaBackend(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		backend = kafka
	} else {
		log.Warn("no kafka brokers configured, sync events drain to an in-memory queue")
	}

	syncMetrics := csmetrics.New()
	dispatcher := contentsync.NewDispatcher(syncStore, backend, syncMetrics, log)

	rulesSvc := rules.NewService(ruleStore, pointerStore, dispatcher, txRunner, cfg.AutoApproveFloor, rulesmetrics.New(), log)
	releaseSvc := release.NewService(releaseStore, ruleStore, rulesSvc, dispatcher, txRunner, releasemetrics.New(), log)

	rulesHandler := httptransport.NewRulesHandler(rulesSvc, releaseSvc, cache, log)
	router := httptransport.NewRouter(rulesHandler, httptransport.Healthz(healthChecks))
	srv := httpserver.New(cfg.Addr, router)

	// Background loops: drain pending events to the queue, and consume them
	// when a downstream content repo is configured.
	go runEvery(ctx, 15*time.Second, func(ctx context.Context) {
		if _, err := dispatcher.DrainPending(ctx); err != nil {
			log.Error("drain pending events", "error", err)
		}
	})
	if cfg.ContentRepoURL != "" {
		repo := rules.NewWebhookContentRepo(cfg.ContentRepoURL)
		handler := rules.NewSyncHandler(ruleStore, repo, log)
		worker := contentsync.NewWorker(syncStore, handler, cfg.SyncMaxAttempts, time.Second, syncMetrics, log)
		go runEvery(ctx, 15*time.Second, func(ctx context.Context) {
			if err := worker.ProcessEnqueued(ctx); err != nil {
				log.Error("process enqueued events", "error", err)
			}
		})
		// Claims abandoned by a crashed worker stay PROCESSING until this
		// sweep hands them back to the queue.
		go runEvery(ctx, time.Minute, func(ctx context.Context) {
			if _, err := worker.RequeueStale(ctx, 5*time.Minute); err != nil {
				log.Error("requeue stale events", "error", err)
			}
		})
	} else {
		log.Info("no content repo configured, enqueued events wait for an external consumer")
	}

	go func() {
		log.Info("starting normative server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// runEvery invokes fn immediately and then on every tick until ctx ends.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

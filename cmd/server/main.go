package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/audit"
	auditmetrics "vigil/internal/audit/metrics"
	"vigil/internal/audit/publish"
	"vigil/internal/audit/store"
	"vigil/internal/audit/store/memory"
	"vigil/internal/audit/store/postgres"
	"vigil/internal/fieldcrypt"
	"vigil/internal/keys"
	keysmetrics "vigil/internal/keys/metrics"
	"vigil/internal/monitor"
	monitormetrics "vigil/internal/monitor/metrics"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	platformredis "vigil/internal/platform/redis"
	httptransport "vigil/internal/transport/http"
	"vigil/internal/trust"
	"vigil/internal/trust/intel"
	trustmetrics "vigil/internal/trust/metrics"
)

// main wires the dependency graph and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Key management and field encryption.
	keyManager, err := keys.NewManager(
		keys.WithLogger(log),
		keys.WithMetrics(keysmetrics.New()),
	)
	if err != nil {
		log.Error("key manager init failed", "error", err)
		os.Exit(1)
	}
	rotator := keys.NewRotator(keyManager, cfg.KeyRotationInterval, log)
	go rotator.Run(ctx)

	scrubber := fieldcrypt.NewScrubber(keyManager)

	// Audit chain with durable store.
	var auditStore store.Store = memory.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres pool init failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := postgres.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("postgres audit store migration failed", "error", err)
			os.Exit(1)
		}
		auditStore = pgStore
	}

	auditLog := audit.NewLogger([]byte(cfg.SigningKey),
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithScrubber(scrubber),
	)
	worker := audit.NewWorker(auditStore, auditLog.Pending(),
		audit.WithWorkerLogger(log),
	)
	go worker.Run(ctx)

	// Optional Kafka sink for high-severity events.
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := publish.NewSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, publish.WithSinkLogger(log))
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditLog.Subscribe(sink.HandleEvent)
	}

	// Threat intelligence: Redis when configured, static otherwise.
	var feed intel.Feed = intel.NewStaticFeed()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		feed = intel.NewRedisFeed(redisClient.Client)
	}

	// Zero-trust engine.
	engine := trust.NewEngine(trust.NewStaticDirectory(), feed,
		trust.WithLogger(log),
		trust.WithMetrics(trustmetrics.New()),
		trust.WithAuditLogger(auditLog),
	)

	// Security monitor: periodic collection plus real-time critical events.
	mon := monitor.NewMonitor(engine, auditLog,
		monitor.WithLogger(log),
		monitor.WithMetrics(monitormetrics.New()),
		monitor.WithInterval(cfg.MonitorInterval),
	)
	auditLog.Subscribe(mon.HandleAuditEvent)
	go mon.Run(ctx)

	router := httptransport.NewRouter(httptransport.Services{
		Engine:   engine,
		AuditLog: auditLog,
		Monitor:  mon,
		Logger:   log,
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting vigil", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("vigil stopped")
}

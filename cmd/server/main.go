// main wires the dependency graph and keeps the server lifecycle small.
// Backend selection (memory vs postgres/redis) is decided here, once, by
// configuration; nothing below this file switches on deployment mode.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	certadapters "veritag/internal/certificate/adapters"
	certhandler "veritag/internal/certificate/handler"
	certports "veritag/internal/certificate/ports"
	certservice "veritag/internal/certificate/service"
	certmem "veritag/internal/certificate/store/memory"
	certpg "veritag/internal/certificate/store/postgres"
	"veritag/internal/identifier"
	"veritag/internal/jwttoken"
	"veritag/internal/platform/config"
	"veritag/internal/platform/httpserver"
	"veritag/internal/platform/logger"
	"veritag/internal/platform/metrics"
	platformredis "veritag/internal/platform/redis"
	httpapi "veritag/internal/transport/http"
	verifadapters "veritag/internal/verification/adapters"
	verifhandler "veritag/internal/verification/handler"
	verifports "veritag/internal/verification/ports"
	verifservice "veritag/internal/verification/service"
	sessmem "veritag/internal/verification/store/memory"
	sessredis "veritag/internal/verification/store/redis"
	"veritag/pkg/platform/audit"
	"veritag/pkg/platform/audit/publisher"
	kafkasink "veritag/pkg/platform/audit/publishers/kafka"
	auditmem "veritag/pkg/platform/audit/store/memory"
	"veritag/pkg/platform/lock"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Redis is optional; absent it we run single-node with memory backends.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		certStore certports.Store
		locker    lock.Locker
		sessions  verifports.SessionStore
		checks    = map[string]httpapi.HealthChecker{}
	)

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, certpg.Schema); err != nil {
			return err
		}
		certStore = certpg.New(pool)
		checks["postgres"] = poolHealth{pool}
		log.Info("certificate store: postgres")
	} else {
		certStore = certmem.New()
		log.Info("certificate store: memory")
	}

	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient.Client)
		sessions = sessredis.New(redisClient.Client)
		checks["redis"] = redisClient
		log.Info("locks and sessions: redis")
	} else {
		locker = lock.NewMemoryLocker()
		sessions = sessmem.New()
		log.Info("locks and sessions: memory")
	}

	auditStores := audit.MultiStore{auditmem.NewInMemoryStore()}
	var kafka *kafkasink.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err = kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		auditStores = append(auditStores, kafka)
		log.Info("audit sink: kafka", "topic", cfg.Kafka.Topic)
	}
	auditPub := publisher.NewPublisher(auditStores,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer auditPub.Close()

	ids := identifier.New(certStore)
	ledger := certadapters.NewLedgerClient(cfg.Ledger, log)
	lifecycle := certservice.New(certStore, ledger, locker, ids, auditPub, m, log, cfg.LockTTL)

	scorer := verifadapters.NewScoringClient(cfg.Scoring, log)
	extractor := verifadapters.NewExtractionClient(cfg.Extraction, log)
	verification := verifservice.New(scorer, extractor, sessions, lifecycle, auditPub, m, log, cfg.SessionTTL)

	jwtSvc := jwttoken.NewService(cfg.AdminJWTKey, "veritag", "veritag-admin")

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		Certificates: certhandler.New(lifecycle, log, jwtSvc),
		Verification: verifhandler.New(verification, log, cfg.ScanRatePerIP, scanBurst(cfg.ScanRatePerIP)),
		Checks:       checks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func scanBurst(perSecond float64) int {
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return burst
}

type poolHealth struct {
	pool *pgxpool.Pool
}

func (p poolHealth) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

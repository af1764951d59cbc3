// Server entry point. main wires configuration, storage, the rating table
// and the conversation engine, then runs the HTTP server and the session
// sweeper until a shutdown signal arrives.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"lifeshield/internal/audit"
	"lifeshield/internal/documents"
	"lifeshield/internal/engine"
	"lifeshield/internal/payment"
	"lifeshield/internal/platform/config"
	"lifeshield/internal/platform/httpserver"
	"lifeshield/internal/platform/logger"
	"lifeshield/internal/platform/metrics"
	platformredis "lifeshield/internal/platform/redis"
	"lifeshield/internal/rating"
	"lifeshield/internal/responder"
	"lifeshield/internal/session"
	httptransport "lifeshield/internal/transport/http"
	"lifeshield/internal/underwriting"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := loadRateTable(cfg)
	if err != nil {
		return fmt.Errorf("rate table: %w", err)
	}
	log.Info("rate table loaded",
		slog.String("version", table.Version()),
		slog.String("hash", table.Hash()))

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer closeStore()
	log.Info("session store ready", slog.String("backend", cfg.SessionBackend))

	publisher, err := newAuditPublisher(cfg, log)
	if err != nil {
		return fmt.Errorf("audit publisher: %w", err)
	}
	defer publisher.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	eng := engine.New(engine.Deps{
		Store:      store,
		Calculator: rating.NewCalculator(table),
		Responder:  responder.NewOllama(cfg.Ollama, log),
		Policy:     underwriting.NewRiskScoring(),
		Documents:  documents.NewService(),
		Gateway:    payment.NewMock(),
		Publisher:  publisher,
		Metrics:    m,
		Logger:     log,
		SessionTTL: cfg.SessionTTL,
	})

	handler := httptransport.NewHandler(eng, log)
	router := httptransport.NewRouter(handler, log, m, prometheus.DefaultGatherer)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", slog.String("addr", cfg.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return session.RunSweeper(gctx, store, cfg.SweepInterval, func(archived int, err error) {
			if err != nil {
				log.Error("session sweep failed", slog.String("error", err.Error()))
				return
			}
			if archived > 0 {
				m.SessionsExpired.Add(float64(archived))
				log.Info("sessions archived", slog.Int("count", archived))
			}
		})
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadRateTable(cfg config.Config) (*rating.Table, error) {
	if cfg.RateTablePath != "" {
		return rating.LoadFile(cfg.RateTablePath)
	}
	return rating.LoadDefault()
}

// newSessionStore picks a backend from configuration. The returned close
// function releases the backing connection pool, if any.
func newSessionStore(cfg config.Config) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.SessionBackend {
	case "memory":
		return session.NewInMemory(), noop, nil

	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		if client == nil {
			return nil, noop, errors.New("REDIS_URL is required for the redis backend")
		}
		return session.NewRedis(client.Client), func() { _ = client.Close() }, nil

	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, noop, errors.New("POSTGRES_URL is required for the postgres backend")
		}
		db, err := sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		if err := db.PingContext(context.Background()); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return session.NewPostgres(db), func() { _ = db.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// newAuditPublisher uses Kafka when brokers are configured and an in-memory
// store otherwise. The in-memory fallback keeps single-node deployments
// working without a broker.
func newAuditPublisher(cfg config.Config, log *slog.Logger) (audit.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka not configured, stage transitions kept in memory")
		return audit.NewInMemoryStore(), nil
	}
	return audit.NewKafkaPublisher(cfg.Kafka, log)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"certificate-transfer/internal/auth"
	"certificate-transfer/internal/config"
	"certificate-transfer/internal/eventing"
	"certificate-transfer/internal/observability/metrics"
	"certificate-transfer/internal/transfer/application"
	transfer "certificate-transfer/internal/transfer/domain"
	"certificate-transfer/internal/transfer/infrastructure/postgres"
	"certificate-transfer/internal/transfer/infrastructure/redislock"
	"certificate-transfer/internal/transfer/interfaces"
	"certificate-transfer/internal/walletclient"
	"certificate-transfer/migrations"
)

// app holds the wired engine and the connections it owns.
type app struct {
	db      *sql.DB
	redis   *redis.Client
	nats    *nats.Conn
	utility *application.Utility
	engine  *application.Engine
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	a := &app{db: db}
	if err := db.PingContext(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		a.Close()
		return nil, err
	}
	metrics.Init(db, logger)

	if err := a.wire(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	issuer, err := auth.NewTokenIssuer([]byte(cfg.Wallet.JWTSecret), cfg.Wallet.JWTIssuer, cfg.Wallet.TokenTTL)
	if err != nil {
		return err
	}
	wallet, err := walletclient.NewClient(cfg.Wallet.BaseURL, issuer,
		walletclient.WithHTTPClient(&http.Client{Timeout: cfg.Wallet.Timeout}))
	if err != nil {
		return err
	}

	store := postgres.NewRequestStatusRepository(a.db)
	agreements := postgres.NewAgreementRepository(a.db, cfg.Transfer.AgreementLookback)

	a.utility, err = application.NewUtility(wallet, store,
		application.WithTrial(cfg.Transfer.IsTrial),
		application.WithBatchSize(cfg.Transfer.BatchSize),
		application.WithAgingPolicy(transfer.AgingPolicy{
			CheckInterval: cfg.Requests.CheckInterval,
			TimeoutAfter:  cfg.Requests.TimeoutAfter,
			DeleteAfter:   cfg.Requests.DeleteAfter,
		}),
		application.WithUtilityLogger(logger),
	)
	if err != nil {
		return err
	}

	publisher, err := a.publisher(cfg, logger)
	if err != nil {
		return err
	}
	submitterOpts := []application.SubmitterOption{
		application.WithPublisher(publisher),
		application.WithSubmitterLogger(logger),
	}
	if cfg.Transfer.MaxTransferAttempts > 0 {
		cache := application.NewAttemptCache(cfg.Transfer.AttemptWindow, cfg.Transfer.AttemptCapacity, nil)
		submitterOpts = append(submitterOpts, application.WithAttemptLimit(cache, cfg.Transfer.MaxTransferAttempts))
	}
	submitter, err := application.NewSubmitter(wallet, store, submitterOpts...)
	if err != nil {
		return err
	}

	transferAll, err := application.NewTransferAllStrategy(a.utility, submitter, logger)
	if err != nil {
		return err
	}
	consumption, err := application.NewConsumptionStrategy(a.utility, submitter, logger)
	if err != nil {
		return err
	}

	engineOpts := []application.EngineOption{
		application.WithConcurrency(cfg.Transfer.Concurrency),
		application.WithEngineLogger(logger),
	}
	if cfg.Redis.URL != "" {
		locker, err := a.redisLocker(ctx, cfg, logger)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, application.WithLocker(locker))
	}
	a.engine, err = application.NewEngine(agreements, []application.Strategy{transferAll, consumption}, engineOpts...)
	return err
}

func (a *app) publisher(cfg config.Config, logger *log.Logger) (application.TransferPublisher, error) {
	if cfg.NATS.URL == "" {
		return interfaces.NewLoggingPublisher(logger), nil
	}
	conn, err := eventing.Connect(eventing.NATSConfig{URL: cfg.NATS.URL, Name: programName}, logger)
	if err != nil {
		return nil, err
	}
	a.nats = conn
	natsPublisher, err := eventing.NewNATSPublisher(conn, cfg.NATS.Subject)
	if err != nil {
		return nil, err
	}
	return interfaces.NewEventPublisher(natsPublisher)
}

func (a *app) redisLocker(ctx context.Context, cfg config.Config, logger *log.Logger) (*redislock.Locker, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return redislock.New(a.redis, redislock.WithTTL(cfg.Redis.LockTTL), redislock.WithLogger(logger))
}

// Close releases every connection the app opened.
func (a *app) Close() {
	if a.nats != nil {
		_ = a.nats.Drain()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

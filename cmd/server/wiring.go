package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"docflow/internal/document/blob"
	"docflow/internal/document/events"
	docmetrics "docflow/internal/document/metrics"
	"docflow/internal/document/ports"
	"docflow/internal/document/service"
	"docflow/internal/document/store/memory"
	"docflow/internal/document/store/postgres"
	redisstore "docflow/internal/document/store/redis"
	"docflow/internal/document/store/sqlite"
	"docflow/internal/platform/config"
	"docflow/internal/platform/database"
	"docflow/internal/platform/redis"
	"docflow/internal/policy"
	"docflow/pkg/platform/circuit"
)

type healthCheck func(ctx context.Context) error

// app holds the wired service and everything that must be closed on exit.
type app struct {
	service *service.Service
	gate    policy.Gate
	log     *slog.Logger
	checks  map[string]healthCheck
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backend struct {
	documents ports.DocumentStore
	versions  ports.VersionStore
	sequences ports.SequenceAllocator
	tx        ports.TxRunner
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{log: log, checks: make(map[string]healthCheck)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	b, err := a.storage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.SequenceBackend == config.SequenceRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks["redis"] = client.Health
		b.sequences = redisstore.NewSequenceAllocator(client.Client, client.Prefix())
	}

	blobs, err := a.blobStore(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}
	publisher, err := a.publisher(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(b.documents, b.versions, b.sequences, b.tx,
		service.WithLogger(log),
		service.WithMetrics(docmetrics.New()),
		service.WithBlobStore(blobs),
		service.WithEventPublisher(publisher),
		service.WithRetryPolicy(service.RetryPolicy{
			Attempts: cfg.Storage.ConflictRetries,
			Backoff:  service.DefaultRetryPolicy().Backoff,
		}),
	)
	if err != nil {
		return nil, err
	}
	a.service = svc
	a.gate = gate(cfg.Policy)
	return a, nil
}

func (a *app) storage(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.Open(ctx, cfg.Storage.DatabaseURL, database.Options{
			Driver:       cfg.Storage.PostgresDriver,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		a.addDB(db)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		store := postgres.New(db, postgres.WithTxTimeout(cfg.Storage.TxTimeout))
		return &backend{
			documents: store.Documents(),
			versions:  store.Versions(),
			sequences: postgres.NewSequenceAllocator(db),
			tx:        store,
		}, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.addDB(db)
		store := sqlite.New(db, sqlite.WithTxTimeout(cfg.Storage.TxTimeout))
		return &backend{
			documents: store.Documents(),
			versions:  store.Versions(),
			sequences: sqlite.NewSequenceAllocator(db),
			tx:        store,
		}, nil
	default:
		a.log.Warn("using in-memory storage; documents are lost on restart")
		store := memory.New(memory.WithTxTimeout(cfg.Storage.TxTimeout))
		return &backend{
			documents: store.Documents(),
			versions:  store.Versions(),
			sequences: memory.NewSequenceAllocator(),
			tx:        store,
		}, nil
	}
}

func (a *app) addDB(db *sql.DB) {
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.checks["database"] = db.PingContext
}

func (a *app) blobStore(ctx context.Context, cfg config.BlobConfig) (ports.BlobStore, error) {
	if cfg.Endpoint == "" {
		return blob.NewMemory(), nil
	}
	store, err := blob.NewMinIO(blob.MinIOConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	a.checks["blob"] = store.Health
	return store, nil
}

func (a *app) publisher(ctx context.Context, cfg config.KafkaConfig) (ports.EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLog(a.log), nil
	}
	k, err := events.NewKafka(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, k.Close)
	if err := k.EnsureTopic(ctx, 3, 1); err != nil {
		return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, err)
	}
	a.checks["events"] = k.Ping
	breaker := circuit.New("kafka-events", circuit.WithCooldown(30*time.Second))
	return events.NewGuarded(k, events.NewLog(a.log), breaker, a.log), nil
}

func gate(cfg config.PolicyConfig) policy.Gate {
	if cfg.Mode == config.PolicyStatic {
		return policy.Static{Roles: policy.DefaultRoles(), DraftOnlyEdits: cfg.DraftOnlyEdits}
	}
	return policy.AllowAll{}
}

// Package main is the runtime's entry point: it wires the capability
// backends, the smartcity primitives the runtime uses (identity, tenancy,
// traffic cop, steward, nurse; curator and conductor are not constructed),
// and the content realm into the dispatcher and Experience Edge, then runs
// until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cityos/runtime/internal/abstraction/filestorage"
	"github.com/cityos/runtime/internal/abstraction/semanticstore"
	"github.com/cityos/runtime/internal/abstraction/statesurface"
	"github.com/cityos/runtime/internal/abstraction/wal"
	"github.com/cityos/runtime/internal/app/system"
	"github.com/cityos/runtime/internal/artifact"
	"github.com/cityos/runtime/internal/capability/blobstore"
	"github.com/cityos/runtime/internal/capability/cache"
	"github.com/cityos/runtime/internal/capability/graphstore"
	"github.com/cityos/runtime/internal/capability/pubsub"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/config"
	"github.com/cityos/runtime/internal/edge"
	"github.com/cityos/runtime/internal/platform/database"
	"github.com/cityos/runtime/internal/platform/migrations"
	"github.com/cityos/runtime/internal/realm/content"
	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/execution"
	"github.com/cityos/runtime/internal/runtime/streambus"
	"github.com/cityos/runtime/internal/smartcity/identity"
	"github.com/cityos/runtime/internal/smartcity/nurse"
	"github.com/cityos/runtime/internal/smartcity/steward"
	"github.com/cityos/runtime/internal/smartcity/tenancy"
	"github.com/cityos/runtime/internal/smartcity/trafficcop"
	"github.com/cityos/runtime/pkg/logger"
)

// purgeSchedule runs purge_expired_materializations every six hours.
const purgeSchedule = "0 */6 * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLog.Infof("starting runtime in %s mode", cfg.Env)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rows, closeDB, err := openRowStore(rootCtx, cfg)
	if err != nil {
		appLog.Fatalf("open row store: %v", err)
	}
	if closeDB != nil {
		defer closeDB()
	}

	blobs := openBlobStore(cfg, appLog)
	graph := graphstore.NewMemoryStore()
	bus := openPubSub(rootCtx, cfg, appLog)
	memo := openCache(rootCtx, cfg, appLog)

	tenants := tenancy.NewRegistry()
	tenants.Register("default", "Default Tenant")

	ident := identity.NewManager(cfg.JWTSigningKey, cfg.JWTExpiry)
	cop := trafficcop.New(trafficcop.Policy{
		RequestsPerSecond: cfg.RateLimitPerSecond,
		Burst:             cfg.RateLimitBurst,
	})

	artifacts := artifact.NewRegistry(rows, graph)
	walLog := wal.New(rows)
	stewardSvc := steward.New()

	contentDeps := content.Dependencies{
		Files:     filestorage.New(blobs, rows),
		Semantic:  semanticstore.New(rows, graph),
		State:     statesurface.New(rows, "content"),
		Artifacts: artifacts,
		Cache:     memo,
	}

	services := []execution.DomainService{
		&content.IngestFileService{Deps: contentDeps},
		&content.ListFilesService{Deps: contentDeps},
		&content.GetFileService{Deps: contentDeps},
		&content.ArchiveFileService{Deps: contentDeps},
		&content.ParseContentService{Deps: contentDeps},
		&content.ExtractEmbeddingsService{Deps: contentDeps},
		&content.SaveMaterializationService{Deps: contentDeps},
		&content.PurgeExpiredMaterializationsService{Deps: contentDeps},
	}

	d := dispatcher.New(services, walLog, stewardSvc, tenants, cop, cfg.TenantParallelism, cfg.DispatchQueueSize)
	stream := streambus.New(bus)

	healthNurse := nurse.New()
	healthNurse.Register("rowstore", func(ctx context.Context) error {
		_, err := rows.Query(ctx, "default", "files", rowstore.Filter{}, 1)
		return err
	})

	purger := content.NewPurger(d, tenants, appLog.Logger)
	sched := cron.New()
	if _, err := purger.Schedule(sched, purgeSchedule); err != nil {
		appLog.Fatalf("schedule purge job: %v", err)
	}

	manager := system.NewManager()
	if err := manager.Register(system.NewCronService("materialization-purger", sched)); err != nil {
		appLog.Fatalf("register purger: %v", err)
	}

	edgeAddr := fmtAddr(cfg.RuntimePort)
	edgeSvc := edge.NewService(edgeAddr, d, stream, ident, manager.Descriptors, appLog)
	if err := manager.Register(edgeSvc); err != nil {
		appLog.Fatalf("register edge: %v", err)
	}

	if err := manager.Start(rootCtx); err != nil {
		appLog.Fatalf("start runtime: %v", err)
	}
	appLog.Infof("experience edge listening on %s", edgeAddr)

	nurseCtx, cancelNurse := context.WithCancel(context.Background())
	go healthNurse.Run(nurseCtx, time.Minute)

	<-rootCtx.Done()
	appLog.Info("shutdown signal received")
	cancelNurse()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		appLog.Fatalf("shutdown: %v", err)
	}
}

func fmtAddr(port int) string {
	return ":" + itoa(port)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// openRowStore chooses the Postgres row store when ROW_DSN names a real
// connection string, falling back to an in-memory store for local runs and
// tests (ROW_DSN=memory). The returned close func is nil for the in-memory
// path.
func openRowStore(ctx context.Context, cfg *config.Config) (rowstore.Store, func(), error) {
	if cfg.RowDSN == "" || cfg.RowDSN == "memory" {
		return rowstore.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(ctx, cfg.RowDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	store, err := rowstore.NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { closeDB(db) }, nil
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}

// openBlobStore uses a local directory when BLOB_ENDPOINT is set, otherwise
// an in-memory store suitable for local runs and tests.
func openBlobStore(cfg *config.Config, log *logger.Logger) blobstore.Store {
	if cfg.BlobEndpoint == "" {
		return blobstore.NewMemoryStore()
	}
	store, err := blobstore.NewLocalStore(cfg.BlobEndpoint)
	if err != nil {
		log.Fatalf("open local blob store at %s: %v", cfg.BlobEndpoint, err)
	}
	return store
}

// openPubSub dials Redis when REDIS_URL is configured, otherwise an
// in-process bus that only fans out within this runtime instance.
func openPubSub(ctx context.Context, cfg *config.Config, log *logger.Logger) pubsub.Bus {
	if cfg.RedisURL == "" {
		return pubsub.NewMemoryBus()
	}
	bus, err := pubsub.NewRedisBus(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("connect to redis pubsub: %v", err)
	}
	return bus
}

// openCache shares REDIS_URL with openPubSub: the same Redis instance backs
// both pub/sub fanout and short-lived memoization when configured.
func openCache(ctx context.Context, cfg *config.Config, log *logger.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(time.Minute, 5*time.Minute)
	}
	c, err := cache.NewRedisCache(ctx, cfg.RedisURL, time.Minute)
	if err != nil {
		log.Fatalf("connect to redis cache: %v", err)
	}
	return c
}

package testutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/sync/errgroup"

	"imagine/internal/config"
	"imagine/internal/platform/cache"
	"imagine/internal/platform/database"
	"imagine/internal/platform/storage"
)

// TestBucket receives every photo uploaded by integration tests
const TestBucket = "test-photos"

const (
	postgresImage = "postgres:15-alpine"
	minioImage    = "minio/minio:latest"
	valkeyImage   = "valkey/valkey:7-alpine"

	minioUser     = "testuser"
	minioPassword = "testpass123"
)

// TestContainers holds the Postgres, MinIO and Valkey instances backing an
// integration test run, and clients already connected to them
type TestContainers struct {
	DB      *sql.DB
	Storage *storage.MinIOClient
	Cache   *cache.RedisClient

	DatabaseURL   string
	MinioEndpoint string
	ValkeyAddr    string

	mu       sync.Mutex
	teardown []func(context.Context) error
}

// SetupTestContainers starts the three backends in parallel, connects to
// them and applies the schema
func SetupTestContainers(ctx context.Context) (*TestContainers, error) {
	tc := &TestContainers{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tc.startPostgres(gctx) })
	g.Go(func() error { return tc.startMinio(gctx) })
	g.Go(func() error { return tc.startValkey(gctx) })

	if err := g.Wait(); err != nil {
		return nil, errors.Join(err, tc.Cleanup(context.Background()))
	}

	if _, err := database.RunMigrations(ctx, tc.DB); err != nil {
		return nil, errors.Join(fmt.Errorf("migrations: %w", err), tc.Cleanup(context.Background()))
	}
	return tc, nil
}

// onCleanup registers fn to run, in reverse order, during Cleanup
func (tc *TestContainers) onCleanup(fn func(context.Context) error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.teardown = append(tc.teardown, fn)
}

func (tc *TestContainers) terminateOnCleanup(c testcontainers.Container) {
	tc.onCleanup(func(ctx context.Context) error { return c.Terminate(ctx) })
}

func (tc *TestContainers) startPostgres(ctx context.Context) error {
	pg, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("imagine_test"),
		postgres.WithUsername("imagine"),
		postgres.WithPassword("imagine"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	tc.terminateOnCleanup(pg)

	if tc.DatabaseURL, err = pg.ConnectionString(ctx, "sslmode=disable"); err != nil {
		return fmt.Errorf("postgres connection string: %w", err)
	}

	// Readiness in the log can precede the mapped port accepting connections
	for attempt := 1; ; attempt++ {
		tc.DB, err = database.NewConnection(ctx, tc.DatabaseURL, database.DefaultPoolConfig())
		if err == nil {
			break
		}
		if attempt == 10 {
			return fmt.Errorf("postgres never accepted connections: %w", err)
		}
		time.Sleep(time.Second)
	}
	tc.onCleanup(func(context.Context) error { return tc.DB.Close() })
	return nil
}

func (tc *TestContainers) startMinio(ctx context.Context) error {
	mc, err := minio.Run(ctx, minioImage,
		minio.WithUsername(minioUser),
		minio.WithPassword(minioPassword),
	)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	tc.terminateOnCleanup(mc)

	if tc.MinioEndpoint, err = mc.ConnectionString(ctx); err != nil {
		return fmt.Errorf("minio endpoint: %w", err)
	}

	// The client creates TestBucket on first connect
	if tc.Storage, err = storage.NewMinIOClient(ctx, tc.StorageConfig()); err != nil {
		return fmt.Errorf("minio client: %w", err)
	}
	return nil
}

func (tc *TestContainers) startValkey(ctx context.Context) error {
	vc, err := tcredis.Run(ctx, valkeyImage)
	if err != nil {
		return fmt.Errorf("valkey: %w", err)
	}
	tc.terminateOnCleanup(vc)

	uri, err := vc.ConnectionString(ctx)
	if err != nil {
		return fmt.Errorf("valkey endpoint: %w", err)
	}
	tc.ValkeyAddr = strings.TrimPrefix(uri, "redis://")

	if tc.Cache, err = cache.NewRedisClient(tc.CacheConfig()); err != nil {
		return fmt.Errorf("valkey client: %w", err)
	}
	tc.onCleanup(func(context.Context) error { return tc.Cache.Close() })
	return tc.Cache.Health(ctx)
}

// StorageConfig points the storage layer at the MinIO container
func (tc *TestContainers) StorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Endpoint:        tc.MinioEndpoint,
		AccessKeyID:     minioUser,
		SecretAccessKey: minioPassword,
		BucketName:      TestBucket,
		Region:          "us-east-1",
		MaxUploadSize:   5 << 20,
		AllowedTypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
}

// CacheConfig points the cache layer at the Valkey container
func (tc *TestContainers) CacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		Address:     tc.ValkeyAddr,
		DefaultTTL:  time.Hour,
		UserTTL:     5 * time.Minute,
		DialTimeout: 5 * time.Second,
	}
}

// Cleanup closes clients and terminates containers, newest first
func (tc *TestContainers) Cleanup(ctx context.Context) error {
	tc.mu.Lock()
	steps := slices.Clone(tc.teardown)
	tc.teardown = nil
	tc.mu.Unlock()

	var errs []error
	for _, fn := range slices.Backward(steps) {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// ResetDatabase empties every domain table and restarts the id sequences;
// the schema and migration history survive
func (tc *TestContainers) ResetDatabase(ctx context.Context) error {
	if _, err := tc.DB.ExecContext(ctx,
		`TRUNCATE users, photos, tags, photo_tags, ratings, comments RESTART IDENTITY CASCADE`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

// FlushRedis drops every cached key
func (tc *TestContainers) FlushRedis(ctx context.Context) error {
	if tc.Cache == nil {
		return errors.New("valkey client not available")
	}
	return tc.Cache.FlushCache(ctx)
}

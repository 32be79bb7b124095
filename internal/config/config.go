// Package config loads the service configuration from the environment and
// validates it as a whole.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration
type Config struct {
	Environment string
	Host        string
	Port        string
	DatabaseURL string
	Database    DatabaseConfig
	Storage     StorageConfig
	Cache       CacheConfig
	Photos      PhotoConfig
	Server      *ServerConfig
}

// DatabaseConfig sizes the Postgres connection pool
type DatabaseConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// StorageConfig points at the S3 compatible bucket holding photo bytes
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	Region          string
	PublicURL       string
	MaxUploadSize   int64
	AllowedTypes    []string
}

// CacheConfig configures the optional Redis/Valkey read cache
type CacheConfig struct {
	Enabled         bool
	Address         string
	Password        string
	Database        int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	DefaultTTL      time.Duration
	UserTTL         time.Duration
}

// PhotoConfig holds limits applied by the photo, tag and search services.
// Zero values fall back to the service defaults.
type PhotoConfig struct {
	MaxTransformSide int
	MaxPageSize      int
}

// ServerConfig holds the HTTP server timeouts
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment. Malformed values and
// failed checks are returned together as ValidationErrors.
func Load() (*Config, error) {
	var env envReader

	endpoint := env.str("STORAGE_ENDPOINT", "localhost:9000")
	useSSL := env.boolean("STORAGE_USE_SSL", false)

	cfg := &Config{
		Environment: env.str("APP_ENV", "development"),
		Host:        env.str("HOST", "localhost"),
		Port:        env.str("PORT", "8080"),
		DatabaseURL: env.str("DATABASE_URL", ""),
		Database: DatabaseConfig{
			MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", 2*time.Minute),
		},
		Storage: StorageConfig{
			Endpoint:        endpoint,
			AccessKeyID:     env.str("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: env.str("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      env.str("STORAGE_BUCKET", "photos"),
			UseSSL:          useSSL,
			Region:          env.str("STORAGE_REGION", "us-east-1"),
			PublicURL:       env.str("STORAGE_PUBLIC_URL", schemeFor(useSSL)+endpoint),
			MaxUploadSize:   env.size("MAX_UPLOAD_SIZE", 10<<20),
			AllowedTypes:    splitList(env.str("ALLOWED_FILE_TYPES", "image/jpeg,image/png,image/gif,image/webp")),
		},
		Cache: CacheConfig{
			Enabled:         env.boolean("CACHE_ENABLED", false),
			Address:         env.str("REDIS_ADDR", "localhost:6379"),
			Password:        env.str("REDIS_PASSWORD", ""),
			Database:        env.integer("REDIS_DB", 0),
			MaxRetries:      env.integer("REDIS_MAX_RETRIES", 3),
			MinRetryBackoff: env.duration("REDIS_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: env.duration("REDIS_MAX_RETRY_BACKOFF", 512*time.Millisecond),
			DialTimeout:     env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:     env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:    env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:        env.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns:    env.integer("REDIS_MIN_IDLE_CONNS", 2),
			PoolTimeout:     env.duration("REDIS_POOL_TIMEOUT", 4*time.Second),
			DefaultTTL:      env.duration("CACHE_DEFAULT_TTL", time.Hour),
			UserTTL:         env.duration("CACHE_USER_TTL", 5*time.Minute),
		},
		Photos: PhotoConfig{
			MaxTransformSide: env.integer("MAX_TRANSFORM_SIDE", 4096),
			MaxPageSize:      env.integer("MAX_PAGE_SIZE", 500),
		},
		Server: &ServerConfig{
			ReadTimeout:     env.duration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.duration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.duration("SERVER_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	errs := env.errs
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err.(ValidationErrors)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// envReader looks up variables with defaults and remembers every value that
// failed to parse
type envReader struct {
	errs ValidationErrors
}

func (r *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key, raw, want string) {
	r.errs = append(r.errs, ValidationError{Field: key, Value: raw, Message: "must be " + want})
}

func (r *envReader) str(key, fallback string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return fallback
}

func (r *envReader) integer(key string, fallback int) int {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "an integer")
		return fallback
	}
	return n
}

func (r *envReader) boolean(key string, fallback bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, "a boolean")
		return fallback
	}
	return b
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "a duration such as 30s")
		return fallback
	}
	return d
}

func (r *envReader) size(key string, fallback int64) int64 {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := parseSize(v)
	if err != nil {
		r.fail(key, v, "a size such as 512KB or 10MB")
		return fallback
	}
	return n
}

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30},
	{"MB", 20},
	{"KB", 10},
	{"B", 0},
}

// parseSize reads a byte count with an optional binary unit suffix
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	shift := uint(0)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, shift = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.shift
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %d", n)
	}
	return n << shift, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func schemeFor(useSSL bool) string {
	if useSSL {
		return "https://"
	}
	return "http://"
}

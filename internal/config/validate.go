package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7/pkg/s3utils"
)

const (
	maxUploadLimit   = 100 << 20
	maxTransformSide = 10000
	maxPageSize      = 500
	maxServerTimeout = 5 * time.Minute
	defaultCredValue = "minioadmin"
)

var environments = []string{"development", "test", "staging", "production"}

// ValidationError is one rejected setting
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every rejected setting so they can be fixed in
// one pass
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Fields lists the rejected settings in order
func (ve ValidationErrors) Fields() []string {
	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	return fields
}

func (ve *ValidationErrors) check(ok bool, field string, value any, msg string) {
	if !ok {
		*ve = append(*ve, ValidationError{Field: field, Value: value, Message: msg})
	}
}

// Validate returns ValidationErrors, or nil when the config is usable
func (c *Config) Validate() error {
	var errs ValidationErrors

	c.checkListener(&errs)
	c.checkDatabase(&errs)
	c.checkStorage(&errs)
	if c.Cache.Enabled {
		c.checkCache(&errs)
	}
	c.checkPhotos(&errs)
	if c.Server != nil {
		c.checkServer(&errs)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *Config) checkListener(errs *ValidationErrors) {
	port, err := strconv.Atoi(c.Port)
	errs.check(err == nil && port >= 1 && port <= 65535, "port", c.Port, "must be a TCP port between 1 and 65535")
	errs.check(c.Environment == "" || slices.Contains(environments, c.Environment),
		"environment", c.Environment, "must be one of "+strings.Join(environments, ", "))
}

func (c *Config) checkDatabase(errs *ValidationErrors) {
	pool := c.Database
	errs.check(pool.MaxOpenConns >= 0 && pool.MaxIdleConns >= 0, "database.pool", pool, "connection limits cannot be negative")
	errs.check(pool.MaxOpenConns == 0 || pool.MaxIdleConns <= pool.MaxOpenConns,
		"database.max_idle_conns", pool.MaxIdleConns, "cannot exceed max open connections")

	if c.DatabaseURL == "" {
		// Tests inject their own connection
		errs.check(c.Environment == "test", "database_url", "", "is required outside the test environment")
		return
	}

	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		errs.check(false, "database_url", "[unparseable]", "must be a postgres:// URL")
		return
	}
	errs.check(u.Scheme == "postgres" || u.Scheme == "postgresql", "database_url", u.Scheme, "must use the postgres scheme")
	errs.check(u.Host != "", "database_url", u.Redacted(), "must include a host")
	errs.check(strings.Trim(u.Path, "/") != "", "database_url", u.Redacted(), "must name a database")
}

func (c *Config) checkStorage(errs *ValidationErrors) {
	s := c.Storage
	errs.check(s.Endpoint != "", "storage.endpoint", s.Endpoint, "cannot be empty")
	errs.check(s3utils.CheckValidBucketNameStrict(s.BucketName) == nil,
		"storage.bucket_name", s.BucketName, "must be a valid lowercase S3 bucket name")

	if s.PublicURL != "" {
		u, err := url.Parse(s.PublicURL)
		errs.check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
			"storage.public_url", s.PublicURL, "must be an absolute http(s) URL")
	}

	errs.check(s.MaxUploadSize <= maxUploadLimit, "storage.max_upload_size", s.MaxUploadSize,
		fmt.Sprintf("cannot exceed %d bytes", maxUploadLimit))

	if c.Environment == "production" {
		errs.check(s.AccessKeyID != "" && s.AccessKeyID != defaultCredValue,
			"storage.access_key_id", s.AccessKeyID, "must be set to a non-default value in production")
		errs.check(s.SecretAccessKey != "" && s.SecretAccessKey != defaultCredValue,
			"storage.secret_access_key", "[REDACTED]", "must be set to a non-default value in production")
	}
}

func (c *Config) checkCache(errs *ValidationErrors) {
	cc := c.Cache
	errs.check(cc.Address != "", "cache.address", cc.Address, "is required when the cache is enabled")
	errs.check(cc.Database >= 0 && cc.Database <= 15, "cache.database", cc.Database, "must be between 0 and 15")
	errs.check(cc.UserTTL > 0, "cache.user_ttl", cc.UserTTL, "must be positive")
	errs.check(cc.DefaultTTL > 0, "cache.default_ttl", cc.DefaultTTL, "must be positive")
}

func (c *Config) checkPhotos(errs *ValidationErrors) {
	p := c.Photos
	errs.check(p.MaxTransformSide >= 0 && p.MaxTransformSide <= maxTransformSide,
		"photos.max_transform_side", p.MaxTransformSide, fmt.Sprintf("must be between 1 and %d", maxTransformSide))
	errs.check(p.MaxPageSize >= 0 && p.MaxPageSize <= maxPageSize,
		"photos.max_page_size", p.MaxPageSize, fmt.Sprintf("must be between 1 and %d", maxPageSize))
}

func (c *Config) checkServer(errs *ValidationErrors) {
	for _, t := range []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
	} {
		errs.check(t.value > 0 && t.value <= maxServerTimeout, t.field, t.value, "must be positive and at most 5m")
	}
	errs.check(c.Server.IdleTimeout > 0, "server.idle_timeout", c.Server.IdleTimeout, "must be positive")
}

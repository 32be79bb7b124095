package observability

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Trace sampler names, matching OTEL_TRACES_SAMPLER values
const (
	SamplerAlwaysOn                = "always_on"
	SamplerAlwaysOff               = "always_off"
	SamplerTraceIDRatio            = "traceidratio"
	SamplerParentBasedAlwaysOn     = "parentbased_always_on"
	SamplerParentBasedAlwaysOff    = "parentbased_always_off"
	SamplerParentBasedTraceIDRatio = "parentbased_traceidratio"
)

// Config controls telemetry export and logging
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TracesEnabled    bool
	TracesEndpoint   string
	TracesSampler    string
	TracesSamplerArg string

	MetricsEnabled  bool
	MetricsEndpoint string

	LogLevel  string
	LogFormat string // json or console
}

// LoadConfig reads the standard OTEL_* variables plus LOG_LEVEL and LOG_FORMAT
func LoadConfig() Config {
	return Config{
		ServiceName:    envOr("OTEL_SERVICE_NAME", "imagine"),
		ServiceVersion: envOr("OTEL_SERVICE_VERSION", "0.1.0"),
		Environment:    envOr("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),

		TracesEnabled:    envFlag("OTEL_TRACES_ENABLED", true),
		TracesEndpoint:   envOr("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://localhost:4318/v1/traces"),
		TracesSampler:    envOr("OTEL_TRACES_SAMPLER", SamplerAlwaysOn),
		TracesSamplerArg: envOr("OTEL_TRACES_SAMPLER_ARG", "1.0"),

		MetricsEnabled:  envFlag("OTEL_METRICS_ENABLED", true),
		MetricsEndpoint: envOr("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "http://localhost:4318/v1/metrics"),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}
}

// Validate reports every problem with the config at once
func (c Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.TracesEnabled {
		if c.TracesEndpoint == "" {
			errs = append(errs, errors.New("traces endpoint is required when traces are enabled"))
		}
		if err := validateSampler(c.TracesSampler, c.TracesSamplerArg); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MetricsEnabled && c.MetricsEndpoint == "" {
		errs = append(errs, errors.New("metrics endpoint is required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// validateSampler accepts what newSampler accepts, with ratios limited to [0, 1]
func validateSampler(name, arg string) error {
	if _, err := newSampler(name, arg); err != nil {
		return err
	}
	if name != SamplerTraceIDRatio && name != SamplerParentBasedTraceIDRatio {
		return nil
	}
	// newSampler already proved arg parses
	ratio, _ := strconv.ParseFloat(arg, 64)
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sampler ratio must be between 0 and 1, got %v", ratio)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envFlag(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "":
		return fallback
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

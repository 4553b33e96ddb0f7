package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	rghttp "github.com/ligustah/rangeget/internal/http"
	"github.com/ligustah/rangeget/internal/progress"
	"github.com/ligustah/rangeget/pkg/download"
	"github.com/ligustah/rangeget/pkg/location"
)

// Progress display modes.
const (
	ProgressNone    = "none"
	ProgressConsole = "console"
	ProgressBar     = "bar"
)

// Resolver kinds.
const (
	ResolverREST   = "rest"
	ResolverBlob   = "blob"
	ResolverS3     = "s3"
	ResolverStatic = "static"
)

// Config defines configuration for the rangeget CLI.
type Config struct {
	Workers          int            `yaml:"workers"`
	PartSize         int64          `yaml:"part_size"`
	StreamIncrement  int64          `yaml:"stream_increment"`
	QueueDepth       int            `yaml:"queue_depth"`
	MaxRetries       int            `yaml:"max_retries"`
	ExpiryBuffer     time.Duration  `yaml:"expiry_buffer"`
	ParallelRequests int            `yaml:"parallel_requests"`
	Progress         string         `yaml:"progress"`
	LogLevel         string         `yaml:"log_level"`
	LogFormat        string         `yaml:"log_format"`
	MetricsAddr      string         `yaml:"metrics_addr"`
	Retry            RetryConfig    `yaml:"retry"`
	Resolver         ResolverConfig `yaml:"resolver"`
}

// RetryConfig defines connection-level retry behavior of the HTTP client.
type RetryConfig struct {
	// Attempts is the number of retries after a failed connection. 0
	// disables retries.
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// ResolverConfig selects and configures where signed URLs come from.
type ResolverConfig struct {
	Kind string `yaml:"kind"`

	// rest
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`

	// blob: a gocloud.dev bucket URL such as s3://bucket or gs://bucket
	BucketURL string `yaml:"bucket_url"`

	// s3
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	S3Endpoint string `yaml:"s3_endpoint"`

	// blob and s3
	Prefix    string        `yaml:"prefix"`
	URLExpiry time.Duration `yaml:"url_expiry"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:          download.DefaultWorkers,
		PartSize:         download.DefaultPartSize,
		StreamIncrement:  download.DefaultStreamIncrement,
		QueueDepth:       download.DefaultQueueDepth,
		MaxRetries:       download.DefaultMaxRetries,
		ExpiryBuffer:     location.DefaultExpiryBuffer,
		ParallelRequests: download.DefaultParallelRequests,
		Progress:         ProgressConsole,
		LogLevel:         "info",
		LogFormat:        "text",
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
		Resolver: ResolverConfig{
			Kind:      ResolverStatic,
			URLExpiry: 15 * time.Minute,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with human-readable sizes and
// durations.
type yamlConfig struct {
	Workers          int                `yaml:"workers"`
	PartSize         string             `yaml:"part_size"`
	StreamIncrement  string             `yaml:"stream_increment"`
	QueueDepth       int                `yaml:"queue_depth"`
	MaxRetries       int                `yaml:"max_retries"`
	ExpiryBuffer     string             `yaml:"expiry_buffer"`
	ParallelRequests int                `yaml:"parallel_requests"`
	Progress         string             `yaml:"progress"`
	LogLevel         string             `yaml:"log_level"`
	LogFormat        string             `yaml:"log_format"`
	MetricsAddr      string             `yaml:"metrics_addr"`
	Retry            yamlRetryConfig    `yaml:"retry"`
	Resolver         yamlResolverConfig `yaml:"resolver"`
}

type yamlRetryConfig struct {
	Attempts   *int   `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

type yamlResolverConfig struct {
	Kind       string `yaml:"kind"`
	Endpoint   string `yaml:"endpoint"`
	Token      string `yaml:"token"`
	BucketURL  string `yaml:"bucket_url"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	Prefix     string `yaml:"prefix"`
	URLExpiry  string `yaml:"url_expiry"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	var override Config
	override.Workers = yc.Workers
	override.QueueDepth = yc.QueueDepth
	override.MaxRetries = yc.MaxRetries
	override.ParallelRequests = yc.ParallelRequests
	override.Progress = yc.Progress
	override.LogLevel = yc.LogLevel
	override.LogFormat = yc.LogFormat
	override.MetricsAddr = yc.MetricsAddr
	override.Resolver = ResolverConfig{
		Kind:       yc.Resolver.Kind,
		Endpoint:   yc.Resolver.Endpoint,
		Token:      yc.Resolver.Token,
		BucketURL:  yc.Resolver.BucketURL,
		Bucket:     yc.Resolver.Bucket,
		Region:     yc.Resolver.Region,
		S3Endpoint: yc.Resolver.S3Endpoint,
		Prefix:     yc.Resolver.Prefix,
	}

	sizes := []struct {
		name string
		in   string
		out  *int64
	}{
		{"part_size", yc.PartSize, &override.PartSize},
		{"stream_increment", yc.StreamIncrement, &override.StreamIncrement},
	}
	for _, s := range sizes {
		if s.in == "" {
			continue
		}
		if *s.out, err = progress.ParseBytes(s.in); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", s.name, err)
		}
	}

	durations := []struct {
		name string
		in   string
		out  *time.Duration
	}{
		{"expiry_buffer", yc.ExpiryBuffer, &override.ExpiryBuffer},
		{"retry.backoff", yc.Retry.Backoff, &override.Retry.Backoff},
		{"retry.max_backoff", yc.Retry.MaxBackoff, &override.Retry.MaxBackoff},
		{"resolver.url_expiry", yc.Resolver.URLExpiry, &override.Resolver.URLExpiry},
	}
	for _, d := range durations {
		if d.in == "" {
			continue
		}
		if *d.out, err = time.ParseDuration(d.in); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
	}

	cfg := Default().Merge(override)
	// Merge skips zero values, but an explicit "attempts: 0" turns retries off.
	if yc.Retry.Attempts != nil {
		cfg.Retry.Attempts = *yc.Retry.Attempts
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the RANGEGET_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"RANGEGET_PROGRESS":     &c.Progress,
		"RANGEGET_LOG_LEVEL":    &c.LogLevel,
		"RANGEGET_LOG_FORMAT":   &c.LogFormat,
		"RANGEGET_METRICS_ADDR": &c.MetricsAddr,
		"RANGEGET_RESOLVER":     &c.Resolver.Kind,
		"RANGEGET_ENDPOINT":     &c.Resolver.Endpoint,
		"RANGEGET_TOKEN":        &c.Resolver.Token,
		"RANGEGET_BUCKET_URL":   &c.Resolver.BucketURL,
		"RANGEGET_S3_BUCKET":    &c.Resolver.Bucket,
		"RANGEGET_S3_REGION":    &c.Resolver.Region,
		"RANGEGET_S3_ENDPOINT":  &c.Resolver.S3Endpoint,
		"RANGEGET_PREFIX":       &c.Resolver.Prefix,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RANGEGET_WORKERS":           &c.Workers,
		"RANGEGET_QUEUE_DEPTH":       &c.QueueDepth,
		"RANGEGET_MAX_RETRIES":       &c.MaxRetries,
		"RANGEGET_PARALLEL_REQUESTS": &c.ParallelRequests,
		"RANGEGET_RETRY_ATTEMPTS":    &c.Retry.Attempts,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = n
		}
	}

	sizes := map[string]*int64{
		"RANGEGET_PART_SIZE":        &c.PartSize,
		"RANGEGET_STREAM_INCREMENT": &c.StreamIncrement,
	}
	for key, dst := range sizes {
		if v := os.Getenv(key); v != "" {
			size, err := progress.ParseBytes(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = size
		}
	}

	durations := map[string]*time.Duration{
		"RANGEGET_EXPIRY_BUFFER":     &c.ExpiryBuffer,
		"RANGEGET_RETRY_BACKOFF":     &c.Retry.Backoff,
		"RANGEGET_RETRY_MAX_BACKOFF": &c.Retry.MaxBackoff,
		"RANGEGET_URL_EXPIRY":        &c.Resolver.URLExpiry,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.PartSize <= 0 {
		return errors.New("config: part_size must be positive")
	}
	if c.StreamIncrement <= 0 {
		return errors.New("config: stream_increment must be positive")
	}
	if c.StreamIncrement > c.PartSize {
		return errors.New("config: stream_increment must not exceed part_size")
	}
	if c.QueueDepth <= 0 {
		return errors.New("config: queue_depth must be positive")
	}
	if c.MaxRetries <= 0 {
		return errors.New("config: max_retries must be positive")
	}
	if c.ParallelRequests <= 0 {
		return errors.New("config: parallel_requests must be positive")
	}
	if c.ExpiryBuffer < 0 {
		return errors.New("config: expiry_buffer must not be negative")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}

	switch c.Progress {
	case ProgressNone, ProgressConsole, ProgressBar:
	default:
		return fmt.Errorf("config: unknown progress mode %q", c.Progress)
	}

	return c.Resolver.Validate()
}

// Validate checks that the fields the selected resolver needs are set.
func (r *ResolverConfig) Validate() error {
	switch r.Kind {
	case ResolverREST:
		if r.Endpoint == "" {
			return errors.New("config: resolver.endpoint is required for the rest resolver")
		}
	case ResolverBlob:
		if r.BucketURL == "" {
			return errors.New("config: resolver.bucket_url is required for the blob resolver")
		}
	case ResolverS3:
		if r.Bucket == "" {
			return errors.New("config: resolver.bucket is required for the s3 resolver")
		}
	case ResolverStatic:
	default:
		return fmt.Errorf("config: unknown resolver kind %q", r.Kind)
	}
	if r.URLExpiry < 0 {
		return errors.New("config: resolver.url_expiry must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored, so Merge cannot reset a field to zero;
// LoadFromFile and LoadFromEnv assign explicit zeros directly.
func (c Config) Merge(override Config) Config {
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PartSize != 0 {
		c.PartSize = override.PartSize
	}
	if override.StreamIncrement != 0 {
		c.StreamIncrement = override.StreamIncrement
	}
	if override.QueueDepth != 0 {
		c.QueueDepth = override.QueueDepth
	}
	if override.MaxRetries != 0 {
		c.MaxRetries = override.MaxRetries
	}
	if override.ExpiryBuffer != 0 {
		c.ExpiryBuffer = override.ExpiryBuffer
	}
	if override.ParallelRequests != 0 {
		c.ParallelRequests = override.ParallelRequests
	}
	if override.Progress != "" {
		c.Progress = override.Progress
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}

	r, o := &c.Resolver, override.Resolver
	if o.Kind != "" {
		r.Kind = o.Kind
	}
	if o.Endpoint != "" {
		r.Endpoint = o.Endpoint
	}
	if o.Token != "" {
		r.Token = o.Token
	}
	if o.BucketURL != "" {
		r.BucketURL = o.BucketURL
	}
	if o.Bucket != "" {
		r.Bucket = o.Bucket
	}
	if o.Region != "" {
		r.Region = o.Region
	}
	if o.S3Endpoint != "" {
		r.S3Endpoint = o.S3Endpoint
	}
	if o.Prefix != "" {
		r.Prefix = o.Prefix
	}
	if o.URLExpiry != 0 {
		r.URLExpiry = o.URLExpiry
	}
	return c
}

// DownloadOptions converts the engine settings into download.Options.
// Reporter, Logger and Metrics are left for the caller to set.
func (c Config) DownloadOptions() download.Options {
	httpOpts := rghttp.DefaultOptions()
	httpOpts.RetryAttempts = c.Retry.Attempts
	if c.Retry.Backoff > 0 {
		httpOpts.RetryBackoff = c.Retry.Backoff
	}
	if c.Retry.MaxBackoff > 0 {
		httpOpts.RetryMaxBackoff = c.Retry.MaxBackoff
	}

	return download.Options{
		Workers:          c.Workers,
		PartSize:         c.PartSize,
		StreamIncrement:  int(c.StreamIncrement),
		QueueDepth:       c.QueueDepth,
		MaxRetries:       c.MaxRetries,
		ExpiryBuffer:     c.ExpiryBuffer,
		ParallelRequests: c.ParallelRequests,
		HTTPOptions:      httpOpts,
	}
}

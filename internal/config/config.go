// Package config provides configuration loading and management for the movies ETL.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/retry"
	"github.com/stacklok/movies-etl/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the ETL
const EnvPrefix = "MOVIES_ETL"

const (
	// DefaultPageSize bounds the rows read per stream and cycle
	DefaultPageSize = 100

	// DefaultInterval is the pause between two cycles
	DefaultInterval = "10s"

	// DefaultIndex is the Elasticsearch index documents are published to
	DefaultIndex = "movies"

	// DefaultHealthAddress is where the health server listens when enabled
	DefaultHealthAddress = ":8080"
)

// legacyEnv maps configuration keys to the un-prefixed variable names used by
// existing deployments and .env files
var legacyEnv = map[string]string{
	"postgres.database":         "DB_NAME",
	"postgres.user":             "DB_USER",
	"postgres.password":         "DB_PASSWORD",
	"postgres.host":             "DB_HOST",
	"postgres.port":             "DB_PORT",
	"postgres.options":          "DB_OPTIONS",
	"elasticsearch.host":        "ES_HOST",
	"elasticsearch.port":        "ES_PORT",
	"elasticsearch.index":       "ES_INDEX",
	"elasticsearch.schemaFile":  "ES_SCHEMA",
	"etl.pageSize":              "LIMIT",
	"etl.interval":              "UPLOAD_INTERVAL",
	"checkpoint.path":           "STATE_FILE_NAME",
	"log.level":                 "LOG_LEVEL",
	"log.file":                  "LOG_FILE",
	"postgres.passwordFile":     "DB_PASSWORD_FILE",
	"elasticsearch.url":         "ES_URL",
	"elasticsearch.batchSize":   "ES_BATCH_SIZE",
	"checkpoint.backend":        "STATE_BACKEND",
	"health.address":            "HEALTH_ADDRESS",
	"telemetry.metrics.enabled": "METRICS_ENABLED",
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path    string
	envFile string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnvFile loads environment variables from a dotenv file before reading the
// environment. A missing file is ignored. Variables already set in the process
// environment take precedence over the file.
func WithEnvFile(path string) Option {
	return func(cfg *loaderConfig) error {
		cfg.envFile = path
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	ETL           ETLConfig           `yaml:"etl"`
	Retry         RetryConfig         `yaml:"retry"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Log           LogConfig           `yaml:"log"`
	Health        HealthConfig        `yaml:"health"`
	Telemetry     *telemetry.Config   `yaml:"telemetry,omitempty"`
}

// PostgresConfig defines the source database connection settings
type PostgresConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// Password is the database password. PasswordFile takes precedence.
	Password string `yaml:"password,omitempty"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// Options are libpq startup options, e.g. "-c search_path=content"
	Options string `yaml:"options,omitempty"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of pooled connections
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password, read from PasswordFile when set.
// The password from file will have leading/trailing whitespace trimmed.
func (p *PostgresConfig) GetPassword() (string, error) {
	if p.PasswordFile != "" {
		cleanPath := filepath.Clean(p.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", p.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if p.Password != "" {
		return p.Password, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set postgres.passwordFile, %s_POSTGRES_PASSWORD or DB_PASSWORD",
		EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection URL.
// The password and the startup options are URL-escaped.
func (p *PostgresConfig) GetConnectionString() (string, error) {
	password, err := p.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	if p.Options != "" {
		query.Set("options", p.Options)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// GetConnMaxLifetime parses ConnMaxLifetime; zero means the pool default
func (p *PostgresConfig) GetConnMaxLifetime() (time.Duration, error) {
	if p.ConnMaxLifetime == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.ConnMaxLifetime)
	if err != nil {
		return 0, fmt.Errorf("invalid postgres.connMaxLifetime: %w", err)
	}
	return d, nil
}

// ElasticsearchConfig defines the target cluster settings
type ElasticsearchConfig struct {
	// URL is the full cluster address; when empty it is built from Host and Port
	URL string `yaml:"url,omitempty"`

	// Host is the cluster hostname
	Host string `yaml:"host"`

	// Port is the cluster HTTP port
	Port int `yaml:"port"`

	// Username and Password enable basic authentication when set
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Index is the name of the index documents are published to
	Index string `yaml:"index"`

	// SchemaFile is the path to the index settings and mappings JSON
	SchemaFile string `yaml:"schemaFile"`

	// BatchSize is the number of documents per bulk request; defaults to etl.pageSize
	BatchSize int `yaml:"batchSize,omitempty"`
}

// GetAddress returns the cluster address
func (e *ElasticsearchConfig) GetAddress() string {
	if e.URL != "" {
		return e.URL
	}
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// ETLConfig defines the cycle settings
type ETLConfig struct {
	// PageSize bounds the modified rows read per stream and cycle
	PageSize int `yaml:"pageSize"`

	// Interval is the pause between cycles, a duration ("30s") or a number of seconds
	Interval string `yaml:"interval"`
}

// GetInterval parses Interval. A bare number is read as seconds.
func (e *ETLConfig) GetInterval() (time.Duration, error) {
	return parseSecondsOrDuration(e.Interval)
}

// RetryConfig defines the backoff applied to every external call
type RetryConfig struct {
	InitialInterval string  `yaml:"initialInterval"`
	Multiplier      float64 `yaml:"multiplier"`
	MaxInterval     string  `yaml:"maxInterval"`
	MaxAttempts     uint    `yaml:"maxAttempts"`
}

// Policy builds the retry policy described by the configuration
func (r *RetryConfig) Policy() (*retry.Policy, error) {
	initial, err := parseSecondsOrDuration(r.InitialInterval)
	if err != nil {
		return nil, fmt.Errorf("retry.initialInterval: %w", err)
	}
	ceiling, err := parseSecondsOrDuration(r.MaxInterval)
	if err != nil {
		return nil, fmt.Errorf("retry.maxInterval: %w", err)
	}
	return &retry.Policy{
		InitialInterval: initial,
		Multiplier:      r.Multiplier,
		MaxInterval:     ceiling,
		MaxAttempts:     r.MaxAttempts,
	}, nil
}

// CheckpointConfig defines where watermarks and the run state are persisted
type CheckpointConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `yaml:"backend"`

	// Path is the checkpoint file or database
	Path string `yaml:"path"`
}

// LogConfig defines the logging settings
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`

	// File, when set, receives a copy of every log line
	File string `yaml:"file,omitempty"`
}

// HealthConfig defines the optional health and metrics HTTP server
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoadConfig loads configuration from the defaults, the optional YAML file, the
// optional dotenv file and the environment, in increasing order of precedence.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.envFile != "" {
		if err := godotenv.Load(loaderCfg.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", loaderCfg.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if loaderCfg.path != "" {
		v.SetConfigFile(loaderCfg.path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.passwordFile", "")
	v.SetDefault("postgres.database", "")
	v.SetDefault("postgres.options", "")
	v.SetDefault("postgres.sslMode", "disable")
	v.SetDefault("postgres.maxConns", 4)
	v.SetDefault("postgres.connMaxLifetime", "")

	v.SetDefault("elasticsearch.url", "")
	v.SetDefault("elasticsearch.host", "localhost")
	v.SetDefault("elasticsearch.port", 9200)
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", DefaultIndex)
	v.SetDefault("elasticsearch.schemaFile", "")
	v.SetDefault("elasticsearch.batchSize", 0)

	v.SetDefault("etl.pageSize", DefaultPageSize)
	v.SetDefault("etl.interval", DefaultInterval)

	v.SetDefault("retry.initialInterval", retry.DefaultInitialInterval.String())
	v.SetDefault("retry.multiplier", retry.DefaultMultiplier)
	v.SetDefault("retry.maxInterval", retry.DefaultMaxInterval.String())
	v.SetDefault("retry.maxAttempts", retry.DefaultMaxAttempts)

	v.SetDefault("checkpoint.backend", string(checkpoint.BackendFile))
	v.SetDefault("checkpoint.path", checkpoint.DefaultFileName)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("health.enabled", false)
	v.SetDefault("health.address", DefaultHealthAddress)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.serviceName", telemetry.DefaultServiceName)
	v.SetDefault("telemetry.serviceVersion", "")
	v.SetDefault("telemetry.endpoint", telemetry.DefaultEndpoint)
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.tracing.enabled", false)
	v.SetDefault("telemetry.tracing.sampling", telemetry.DefaultSampling)
	v.SetDefault("telemetry.metrics.enabled", false)
	v.SetDefault("telemetry.metrics.exporter", telemetry.ExporterOTLP)
}

// bindLegacyEnv lets both MOVIES_ETL_<KEY> and the legacy name set a key.
// The prefixed name wins when both are present.
func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return nil
}

// validate performs validation on the configuration and reports every problem found
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Postgres.Host == "" {
		errs = append(errs, fmt.Errorf("postgres.host is required"))
	}
	if c.Postgres.Port <= 0 {
		errs = append(errs, fmt.Errorf("postgres.port must be positive"))
	}
	if c.Postgres.User == "" {
		errs = append(errs, fmt.Errorf("postgres.user is required"))
	}
	if c.Postgres.Database == "" {
		errs = append(errs, fmt.Errorf("postgres.database is required"))
	}
	if _, err := c.Postgres.GetConnMaxLifetime(); err != nil {
		errs = append(errs, err)
	}

	if c.Elasticsearch.URL == "" && (c.Elasticsearch.Host == "" || c.Elasticsearch.Port <= 0) {
		errs = append(errs, fmt.Errorf("elasticsearch.url or elasticsearch.host and elasticsearch.port are required"))
	}
	if c.Elasticsearch.Index == "" {
		errs = append(errs, fmt.Errorf("elasticsearch.index is required"))
	}
	if c.Elasticsearch.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("elasticsearch.batchSize must not be negative"))
	}

	if c.ETL.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("etl.pageSize must be positive"))
	}
	if _, err := c.ETL.GetInterval(); err != nil {
		errs = append(errs, fmt.Errorf("etl.interval: %w", err))
	}

	if policy, err := c.Retry.Policy(); err != nil {
		errs = append(errs, err)
	} else {
		if policy.InitialInterval <= 0 {
			errs = append(errs, fmt.Errorf("retry.initialInterval must be positive"))
		}
		if policy.MaxInterval < policy.InitialInterval {
			errs = append(errs, fmt.Errorf("retry.maxInterval must not be lower than retry.initialInterval"))
		}
		if policy.Multiplier <= 1 {
			errs = append(errs, fmt.Errorf("retry.multiplier must be greater than 1"))
		}
	}

	switch checkpoint.Backend(c.Checkpoint.Backend) {
	case checkpoint.BackendFile, checkpoint.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend must be %q or %q, got %q",
			checkpoint.BackendFile, checkpoint.BackendSQLite, c.Checkpoint.Backend))
	}
	if c.Checkpoint.Path == "" {
		errs = append(errs, fmt.Errorf("checkpoint.path is required"))
	}

	if c.Health.Enabled && c.Health.Address == "" {
		errs = append(errs, fmt.Errorf("health.address is required when health is enabled"))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// GetBatchSize returns the bulk batch size, falling back to the page size
func (c *Config) GetBatchSize() int {
	if c.Elasticsearch.BatchSize > 0 {
		return c.Elasticsearch.BatchSize
	}
	return c.ETL.PageSize
}

func parseSecondsOrDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("duration must not be negative: %s", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("must be a duration (e.g. '30s') or a number of seconds: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}

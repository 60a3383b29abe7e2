// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/formpick/picklist-crawler/internal/crawler"
	"github.com/formpick/picklist-crawler/internal/download"
	"github.com/formpick/picklist-crawler/internal/storage/local"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Listing crawler.ListingConfig `mapstructure:"listing"`
	Window  download.Window       `mapstructure:"window"`
	Crawler CrawlerConfig         `mapstructure:"crawler"`
	HTTP    HTTPConfig            `mapstructure:"http"`
	Storage StorageConfig         `mapstructure:"storage"`
	Output  OutputConfig          `mapstructure:"output"`
	DB      DBConfig              `mapstructure:"db"`
	PubSub  PubSubConfig          `mapstructure:"pubsub"`
	Server  ServerConfig          `mapstructure:"server"`
	Logging LoggingConfig         `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl fan-out.
type CrawlerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects and parameterizes the artifact blob store.
type StorageConfig struct {
	// Backend is one of "local", "gcs", "memory".
	Backend string       `mapstructure:"backend"`
	Local   local.Config `mapstructure:"local"`
	GCS     GCSConfig    `mapstructure:"gcs"`
}

// GCSConfig sets bucket and prefix for GCS artifact storage.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// OutputConfig controls where the aggregated snapshot is written.
type OutputConfig struct {
	// Path receives the JSON snapshot; "-" means stdout.
	Path string `mapstructure:"path"`
}

// DBConfig controls the optional Postgres record sink.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for the optional snapshot publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the observability HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the error audit log.
type LoggingConfig struct {
	Development  bool   `mapstructure:"development"`
	ErrorLogPath string `mapstructure:"error_log_path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PICKLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.base_url", "https://apps.irs.gov/app/picklist/list/priorFormPublication.html")
	v.SetDefault("listing.page_size", 200)
	v.SetDefault("listing.sort_column", "sortOrder")
	v.SetDefault("listing.is_descending", false)
	v.SetDefault("window.min_year", 2018)
	v.SetDefault("window.max_year", 2020)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.user_agent", "picklist-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.base_dir", ".")
	v.SetDefault("output.path", "-")
	v.SetDefault("db.table", "catalog_records")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.error_log_path", "errors.log")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing.base_url is required")
	}
	if c.Listing.PageSize <= 0 {
		return fmt.Errorf("listing.page_size must be > 0")
	}
	if c.Window.MinYear > c.Window.MaxYear {
		return fmt.Errorf("window.min_year must be <= window.max_year")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// HTTPTimeout converts the configured timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the configured initial backoff to a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the configured backoff ceiling to a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// Package config loads crawler configuration from an optional YAML file and
// CRAWLER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/crawler"
	"github.com/Sternrassler/ozon-catalog-crawler/internal/store"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/client"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CRAWLER_DATABASE_URL.
const EnvPrefix = "CRAWLER"

// Upper bounds accepted by the seller API.
const (
	maxAttributeBatchSize  = 20
	maxDictionaryPageLimit = 5000
)

// Config represents the root configuration structure.
type Config struct {
	Database    DatabaseConfig     `mapstructure:"database"`
	Redis       RedisConfig        `mapstructure:"redis"`
	API         APIConfig          `mapstructure:"api"`
	Crawl       CrawlConfig        `mapstructure:"crawl"`
	Log         LogConfig          `mapstructure:"log"`
	MetricsAddr string             `mapstructure:"metrics_addr"`
	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// DatabaseConfig configures the PostgreSQL store.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig configures the shared cooldown and response cache.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIConfig configures the seller API client.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Language          string        `mapstructure:"language"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// CrawlConfig configures the crawl itself.
type CrawlConfig struct {
	DictionaryPageLimit int    `mapstructure:"dictionary_page_limit"`
	AttributeBatchSize  int    `mapstructure:"attribute_batch_size"`
	MarketplaceID       int    `mapstructure:"marketplace_id"`
	CredentialsQuery    string `mapstructure:"credentials_query"`
	CategoryIDsQuery    string `mapstructure:"category_ids_query"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// CredentialConfig is a seller credential given inline instead of loaded
// from the database.
type CredentialConfig struct {
	ClientID string `mapstructure:"client_id"`
	APIKey   string `mapstructure:"api_key"`
}

// setDefaults registers every key so environment overrides are picked up.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.language", "RU")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.requests_per_second", 5.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.cache_ttl", 6*time.Hour)

	v.SetDefault("crawl.dictionary_page_limit", maxDictionaryPageLimit)
	v.SetDefault("crawl.attribute_batch_size", maxAttributeBatchSize)
	v.SetDefault("crawl.marketplace_id", 1)
	v.SetDefault("crawl.credentials_query", store.DefaultCredentialsQuery)
	v.SetDefault("crawl.category_ids_query", store.DefaultCategoryIDsQuery)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics_addr", "")
}

// Load reads configuration from path (optional) and the environment, then
// validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_conns must be >= 0 (got %d)", c.Database.MaxConns))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be > 0 (got %s)", c.API.Timeout))
	}
	if c.API.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_second must be > 0 (got %g)", c.API.RequestsPerSecond))
	}
	if c.API.Burst < 1 {
		errs = append(errs, fmt.Errorf("api.burst must be >= 1 (got %d)", c.API.Burst))
	}
	if c.API.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("api.max_retries must be >= 1 (got %d)", c.API.MaxRetries))
	}
	if c.Redis.Enabled && c.API.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("api.cache_ttl must be > 0 (got %s)", c.API.CacheTTL))
	}

	if p := c.Crawl.DictionaryPageLimit; p < 1 || p > maxDictionaryPageLimit {
		errs = append(errs, fmt.Errorf("crawl.dictionary_page_limit must be in [1, %d] (got %d)", maxDictionaryPageLimit, p))
	}
	if b := c.Crawl.AttributeBatchSize; b < 1 || b > maxAttributeBatchSize {
		errs = append(errs, fmt.Errorf("crawl.attribute_batch_size must be in [1, %d] (got %d)", maxAttributeBatchSize, b))
	}
	if len(c.Credentials) == 0 && c.Crawl.CredentialsQuery == "" {
		errs = append(errs, errors.New("crawl.credentials_query is required when no credentials are configured"))
	}
	if c.Crawl.CategoryIDsQuery == "" {
		errs = append(errs, errors.New("crawl.category_ids_query is required"))
	}

	for i, cred := range c.Credentials {
		if cred.ClientID == "" || cred.APIKey == "" {
			errs = append(errs, fmt.Errorf("credentials[%d]: client_id and api_key are required", i))
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// InlineCredentials returns the credentials given in the configuration file.
func (c *Config) InlineCredentials() []crawler.Credential {
	out := make([]crawler.Credential, len(c.Credentials))
	for i, cred := range c.Credentials {
		out[i] = crawler.Credential{ClientID: cred.ClientID, APIKey: cred.APIKey}
	}
	return out
}

// WorkerConfig returns the crawl settings for the orchestrator.
func (c *Config) WorkerConfig() crawler.WorkerConfig {
	return crawler.WorkerConfig{
		MarketplaceID:       c.Crawl.MarketplaceID,
		AttributeBatchSize:  c.Crawl.AttributeBatchSize,
		DictionaryPageLimit: c.Crawl.DictionaryPageLimit,
	}
}

// RetryPolicy returns the client retry policy capped at api.max_retries attempts.
func (c *Config) RetryPolicy() client.RetryPolicy {
	return client.DefaultRetryPolicy().WithMaxAttempts(c.API.MaxRetries)
}

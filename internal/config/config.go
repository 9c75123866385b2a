// Package config loads the monitor configuration from a YAML file with
// environment variable overrides. Structural parsing happens here; semantic
// validation (schemas, scopes, filter syntax) happens in the resolver and
// runner when the loaded values are turned into domain objects.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/marketplace"
)

type Config struct {
	Monitor      MonitorConfig       `mapstructure:"monitor"`
	Log          LogConfig           `mapstructure:"log"`
	Cache        CacheConfig         `mapstructure:"cache"`
	AI           AIConfig            `mapstructure:"ai"`
	Notify       NotifyConfig        `mapstructure:"notify"`
	Server       ServerConfig        `mapstructure:"server"`
	Marketplaces []MarketplaceConfig `mapstructure:"marketplaces"`
	Items        []ItemConfig        `mapstructure:"items"`
}

type MonitorConfig struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	AdapterTimeout  time.Duration `mapstructure:"adapter_timeout"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	File     string `mapstructure:"file"`
	FileOnly bool   `mapstructure:"file_only"`
}

type CacheConfig struct {
	// Backend is sqlite, postgres, redis or memory.
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"` // sqlite file
	DSN     string      `mapstructure:"dsn"`  // postgres DSN
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type MarkdownConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	OutputDir          string `mapstructure:"output_dir"`
	FilenameFormat     string `mapstructure:"filename_format"`
	IncludeFrontmatter bool   `mapstructure:"include_frontmatter"`
	OverwriteExisting  bool   `mapstructure:"overwrite_existing"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

// MarketplaceConfig is one marketplace instance entry.
type MarketplaceConfig struct {
	Name          string         `mapstructure:"name"`
	Type          string         `mapstructure:"type"`
	Interval      time.Duration  `mapstructure:"interval"`
	Enabled       bool           `mapstructure:"enabled"`
	AllowParallel bool           `mapstructure:"allow_parallel"`
	Fields        map[string]any `mapstructure:"fields"`
}

// ItemConfig is one item entry.
type ItemConfig struct {
	Name                    string                    `mapstructure:"name"`
	Enabled                 bool                      `mapstructure:"enabled"`
	SearchPhrases           []string                  `mapstructure:"search_phrases"`
	Keywords                string                    `mapstructure:"keywords"`
	Antikeywords            string                    `mapstructure:"antikeywords"`
	MinPrice                *float64                  `mapstructure:"min_price"`
	MaxPrice                *float64                  `mapstructure:"max_price"`
	Marketplaces            []string                  `mapstructure:"marketplaces"`
	SearchDescription       bool                      `mapstructure:"search_description"`
	CacheIgnorePriceChanges bool                      `mapstructure:"cache_ignore_price_changes"`
	Fields                  map[string]any            `mapstructure:"fields"`
	Overrides               map[string]map[string]any `mapstructure:"overrides"`
}

// Load reads configuration from the given path, falling back to
// ./configs/config.yaml and ./config.yaml.
// Parameters:
//   - configPath: explicit config file path; empty uses the search path.
// Returns:
//   - *Config: loaded configuration.
//   - error: non-nil when reading or decoding fails.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("monitor.max_concurrency", 4)
	v.SetDefault("monitor.backoff_max", "1h")
	v.SetDefault("monitor.default_interval", "10m")
	v.SetDefault("monitor.adapter_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "./data/listings.db")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.prefix", "listingcache")
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("notify.markdown.filename_format", "{marketplace}_{id}")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("notify.telegram.token", "TELEGRAM_TOKEN")
	v.BindEnv("notify.telegram.chat_id", "TELEGRAM_CHAT_ID")
	v.BindEnv("cache.redis.addr", "REDIS_ADDR")
	v.BindEnv("cache.redis.password", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// InstanceConfigs converts the marketplace entries to registry input,
// applying the default polling interval where an entry sets none.
func (c *Config) InstanceConfigs() []marketplace.InstanceConfig {
	entries := make([]marketplace.InstanceConfig, 0, len(c.Marketplaces))
	for _, m := range c.Marketplaces {
		interval := m.Interval
		if interval <= 0 {
			interval = c.Monitor.DefaultInterval
		}
		entries = append(entries, marketplace.InstanceConfig{
			Name:          m.Name,
			Type:          m.Type,
			Interval:      interval,
			Enabled:       m.Enabled,
			AllowParallel: m.AllowParallel,
			Fields:        m.Fields,
		})
	}
	return entries
}

// ItemSpecs converts the item entries to domain specs.
func (c *Config) ItemSpecs() []domain.ItemSpec {
	specs := make([]domain.ItemSpec, 0, len(c.Items))
	for _, it := range c.Items {
		specs = append(specs, domain.ItemSpec{
			Name:                    it.Name,
			Enabled:                 it.Enabled,
			SearchPhrases:           it.SearchPhrases,
			Keywords:                it.Keywords,
			Antikeywords:            it.Antikeywords,
			MinPrice:                it.MinPrice,
			MaxPrice:                it.MaxPrice,
			Marketplaces:            it.Marketplaces,
			SearchDescription:       it.SearchDescription,
			CacheIgnorePriceChanges: it.CacheIgnorePriceChanges,
			Common:                  it.Fields,
			Overrides:               it.Overrides,
		})
	}
	return specs
}

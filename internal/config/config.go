package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for a scrape run.
type Config struct {
	BaseURL           string  `mapstructure:"CURR_URL"`
	SiteProfile       string  `mapstructure:"SITE_PROFILE"`
	GraphQLURL        string  `mapstructure:"GRAPHQL_URL"`
	Workers           int     `mapstructure:"MAX_WORKERS"`
	RequestDelay      float64 `mapstructure:"REQUEST_DELAY"`
	HTTPTimeout       int     `mapstructure:"HTTP_TIMEOUT"`
	SitemapOffset     int     `mapstructure:"SITEMAP_OFFSET"`
	MaxSitemaps       int     `mapstructure:"MAX_SITEMAPS"`
	MaxURLsPerSitemap int     `mapstructure:"MAX_URLS_PER_SITEMAP"`
	MaxProducts       int     `mapstructure:"MAX_PRODUCTS"`
	CategoryURLs      string  `mapstructure:"CATEGORY_URLS"`
	OutputCSV         string  `mapstructure:"OUTPUT_CSV"`
	URLsFile          string  `mapstructure:"URLS_FILE"`
	PostgresURL       string  `mapstructure:"POSTGRES_URL"`
	MetricsAddr       string  `mapstructure:"METRICS_ADDR"`
	UseBrowser        bool    `mapstructure:"USE_BROWSER"`
	LongPauseEvery    int     `mapstructure:"LONG_PAUSE_EVERY"`
}

// envKeys lists every key Unmarshal should see. Viper only materializes
// keys it knows from a read config file or a default, so keys supplied
// purely through the environment must be bound explicitly.
var envKeys = []string{
	"CURR_URL",
	"SITE_PROFILE",
	"GRAPHQL_URL",
	"MAX_WORKERS",
	"REQUEST_DELAY",
	"HTTP_TIMEOUT",
	"SITEMAP_OFFSET",
	"MAX_SITEMAPS",
	"MAX_URLS_PER_SITEMAP",
	"MAX_PRODUCTS",
	"CATEGORY_URLS",
	"OUTPUT_CSV",
	"URLS_FILE",
	"POSTGRES_URL",
	"METRICS_ADDR",
	"USE_BROWSER",
	"LONG_PAUSE_EVERY",
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	// Attempt to read the .env file, but don't fail if it's not present.
	// CI runs configure everything through environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("SITE_PROFILE", "cymax")
	viper.SetDefault("MAX_WORKERS", 4)
	viper.SetDefault("REQUEST_DELAY", 1.0) // in seconds
	viper.SetDefault("HTTP_TIMEOUT", 45)   // in seconds
	viper.SetDefault("SITEMAP_OFFSET", 0)
	viper.SetDefault("MAX_SITEMAPS", 0)
	viper.SetDefault("MAX_URLS_PER_SITEMAP", 0)
	viper.SetDefault("MAX_PRODUCTS", 0)
	viper.SetDefault("LONG_PAUSE_EVERY", 20)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("CURR_URL is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.OutputCSV == "" {
		cfg.OutputCSV = fmt.Sprintf("products_chunk_%d.csv", cfg.SitemapOffset)
	}
	return &cfg, nil
}

// Categories returns the configured category page URLs, used as a discovery
// fallback when the sitemaps yield nothing.
func (c *Config) Categories() []string {
	if c.CategoryURLs == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(c.CategoryURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Package config loads catalogsync settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/catalogsync/internal/fingerprint"
	"github.com/FranksOps/catalogsync/internal/scraper"
	"github.com/FranksOps/catalogsync/pkg/useragent"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CATALOGSYNC_SCRAPE_PAGE_DELAY=2s.
const EnvPrefix = "CATALOGSYNC"

// Config is the full runtime configuration.
type Config struct {
	Category    string            `mapstructure:"category"`
	BaseURL     string            `mapstructure:"base_url"`
	CatalogPath string            `mapstructure:"catalog_path"`
	Interval    time.Duration     `mapstructure:"interval"`
	Store       string            `mapstructure:"store"`
	Listen      string            `mapstructure:"listen"`
	Scrape      Scrape            `mapstructure:"scrape"`
	Selectors   scraper.Selectors `mapstructure:"selectors"`
	Log         Log               `mapstructure:"log"`
}

// Scrape tunes how catalog pages are requested.
type Scrape struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	PageDelay     time.Duration `mapstructure:"page_delay"`
	Jitter        float64       `mapstructure:"jitter"`
	MaxPages      int           `mapstructure:"max_pages"`
	UserAgents    []string      `mapstructure:"user_agents"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	// ProxiesFile lists one proxy per line; empty means direct requests.
	ProxiesFile   string        `mapstructure:"proxies_file"`
	ProxyFailures int           `mapstructure:"proxy_failures"`
	ProxyCooldown time.Duration `mapstructure:"proxy_cooldown"`
}

// Log selects the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("category", "elki-elovye-vetki-girlyandy")
	v.SetDefault("base_url", "https://www.maxidom.ru")
	v.SetDefault("catalog_path", "/catalog/%s/")
	v.SetDefault("interval", 500*time.Second)
	v.SetDefault("store", "sqlite://catalog.db")
	v.SetDefault("listen", ":8000")

	v.SetDefault("scrape.timeout", 30*time.Second)
	v.SetDefault("scrape.page_delay", time.Second)
	v.SetDefault("scrape.jitter", 0.0)
	v.SetDefault("scrape.max_pages", 200)
	v.SetDefault("scrape.user_agents", useragent.Default)
	v.SetDefault("scrape.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("scrape.respect_robots", false)
	v.SetDefault("scrape.proxies_file", "")
	v.SetDefault("scrape.proxy_failures", 3)
	v.SetDefault("scrape.proxy_cooldown", 5*time.Minute)

	v.SetDefault("selectors.product", scraper.DefaultSelectors.Product)
	v.SetDefault("selectors.name", scraper.DefaultSelectors.Name)
	v.SetDefault("selectors.price", scraper.DefaultSelectors.Price)
	v.SetDefault("selectors.next", scraper.DefaultSelectors.Next)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewViper returns a viper instance with defaults and environment binding,
// reading configFile when it is not empty.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Category) == "" {
		errs = append(errs, errors.New("category must not be empty"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute http(s) url", c.BaseURL))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Store == "" {
		errs = append(errs, errors.New("store must not be empty"))
	}
	if c.Scrape.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("scrape.timeout must be positive, got %s", c.Scrape.Timeout))
	}
	if c.Scrape.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("scrape.page_delay must not be negative, got %s", c.Scrape.PageDelay))
	}
	if c.Scrape.Jitter < 0 || c.Scrape.Jitter > 1 {
		errs = append(errs, fmt.Errorf("scrape.jitter must be within 0..1, got %g", c.Scrape.Jitter))
	}
	if c.Scrape.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("scrape.max_pages must be at least 1, got %d", c.Scrape.MaxPages))
	}
	if profile, err := fingerprint.ParseProfile(c.Scrape.Fingerprint); err != nil {
		errs = append(errs, err)
	} else if c.Scrape.ProxiesFile != "" && profile != fingerprint.ProfileGo {
		errs = append(errs, fmt.Errorf("scrape.proxies_file needs scrape.fingerprint %q, got %q",
			fingerprint.ProfileGo, c.Scrape.Fingerprint))
	}
	if c.Scrape.ProxyFailures < 1 {
		errs = append(errs, fmt.Errorf("scrape.proxy_failures must be at least 1, got %d", c.Scrape.ProxyFailures))
	}
	if c.Scrape.ProxyCooldown <= 0 {
		errs = append(errs, fmt.Errorf("scrape.proxy_cooldown must be positive, got %s", c.Scrape.ProxyCooldown))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// StartURL is the first catalog page: base_url joined with catalog_path,
// where a %s in catalog_path is replaced by the category.
func (c *Config) StartURL() string {
	path := c.CatalogPath
	if strings.Contains(path, "%s") {
		path = fmt.Sprintf(path, c.Category)
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

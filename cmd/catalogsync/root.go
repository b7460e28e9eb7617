package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/FranksOps/catalogsync/internal/catalog"
	"github.com/FranksOps/catalogsync/internal/config"
	"github.com/FranksOps/catalogsync/internal/fingerprint"
	"github.com/FranksOps/catalogsync/internal/scraper"
	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/FranksOps/catalogsync/pkg/proxy"
	"github.com/FranksOps/catalogsync/pkg/useragent"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"store":      "store",
	"category":   "category",
	"listen":     "listen",
	"interval":   "interval",
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "catalogsync",
		Short:         "Periodically scrape a paginated product catalog into a local store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("store", "", "store dsn: sqlite://path, postgres://..., json://path, memory://")
	pf.String("category", "", "catalog category slug")

	root.AddCommand(newServeCmd(a), newScrapeCmd(a), newExportCmd(a))
	return root
}

// load reads configuration with flag overrides and installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	v, err := config.NewViper(a.configFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger builds the process logger. level and format are already validated.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newSyncer assembles the scrape pipeline. store and notifier may be nil when
// only Collect is used.
func newSyncer(cfg *config.Config, store storage.Backend, notifier catalog.Broadcaster, logger *slog.Logger) (*catalog.Syncer, error) {
	profile, err := fingerprint.ParseProfile(cfg.Scrape.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.Scrape.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{
			MaxFailures: cfg.Scrape.ProxyFailures,
			Cooldown:    cfg.Scrape.ProxyCooldown,
		})
		if err := proxies.LoadFile(cfg.Scrape.ProxiesFile); err != nil {
			return nil, err
		}
		logger.Info("routing requests through proxies", "count", proxies.Len())
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     cfg.Scrape.Timeout,
		Fingerprint: profile,
		Proxies:     proxies,
	})
	if err != nil {
		return nil, err
	}

	extractor, err := scraper.NewExtractor(cfg.Selectors)
	if err != nil {
		return nil, err
	}

	paginator, err := scraper.NewPaginator(scraper.PaginatorConfig{
		BaseURL:       cfg.BaseURL,
		MaxPages:      cfg.Scrape.MaxPages,
		PageDelay:     cfg.Scrape.PageDelay,
		Jitter:        cfg.Scrape.Jitter,
		UserAgents:    useragent.NewPool(cfg.Scrape.UserAgents),
		RespectRobots: cfg.Scrape.RespectRobots,
	}, fetcher, extractor, logger)
	if err != nil {
		return nil, err
	}

	replacer := catalog.NewReplacer(store, notifier, logger)
	return catalog.NewSyncer(paginator, replacer, cfg.StartURL(), logger), nil
}

package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ListingsAggregator/internal/config"
	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/infrastructure/feed"
	"ListingsAggregator/internal/infrastructure/partner"
	"ListingsAggregator/internal/infrastructure/scrape"
	"ListingsAggregator/internal/source"
)

const defaultSourceTimeout = 30 * time.Second

// buildRegistry turns the configured sources into adapters, in declaration
// order. Disabled sources are registered too; the aggregator skips them.
func buildRegistry(cfg config.Config, log *slog.Logger) (*source.Registry, error) {
	reg := source.NewRegistry()
	for _, src := range cfg.Sources {
		adapter, err := buildAdapter(cfg, src, log.With("component", "source."+src.Name))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		reg.Register(adapter)
	}
	return reg, nil
}

func buildAdapter(cfg config.Config, src config.SourceConfig, log *slog.Logger) (source.Adapter, error) {
	name := domain.Source(src.Name)
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	switch source.Kind(src.Kind) {
	case source.KindFeed:
		return feed.NewAdapter(name, feed.Options{
			BaseURL: src.BaseURL,
			Client:  &http.Client{Timeout: timeout},
			Logger:  log,
		}), nil

	case source.KindPartner:
		maxPages, err := intOption(src.Options, "maxPages")
		if err != nil {
			return nil, err
		}
		return partner.NewAdzunaAdapter(name, partner.AdzunaOptions{
			BaseURL:  src.BaseURL,
			AppID:    cfg.Partners.Adzuna.AppID,
			AppKey:   cfg.Partners.Adzuna.AppKey,
			Country:  cfg.Partners.Adzuna.Country,
			MaxPages: maxPages,
			Client:   &http.Client{Timeout: timeout},
			Logger:   log,
		}), nil

	case source.KindScrape:
		renderer, err := buildRenderer(src, timeout, log)
		if err != nil {
			return nil, err
		}
		return scrape.NewAdapter(name, scrape.Options{
			BaseURL:   src.BaseURL,
			Renderer:  renderer,
			Selectors: scrape.SelectorsFromOptions(src.Options),
			Timeout:   timeout,
			Logger:    log,
		}), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", src.Kind)
}

func buildRenderer(src config.SourceConfig, timeout time.Duration, log *slog.Logger) (scrape.Renderer, error) {
	switch src.Options["renderer"] {
	case "", "chrome":
		sessions, err := intOption(src.Options, "maxSessions")
		if err != nil {
			return nil, err
		}
		return scrape.NewChromeRenderer(scrape.ChromeOptions{
			ExecPath:    src.Options["execPath"],
			WaitFor:     src.Options["waitFor"],
			MaxSessions: sessions,
			Logger:      log,
		}), nil
	case "http":
		return scrape.NewHTTPRenderer(&http.Client{Timeout: timeout}), nil
	}
	return nil, fmt.Errorf("unknown renderer %q", src.Options["renderer"])
}

func intOption(opts map[string]string, key string) (int, error) {
	raw, ok := opts[key]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("option %s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

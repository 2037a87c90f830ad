package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"QuoteKeeper/internal/collector"
	"QuoteKeeper/internal/config"
	"QuoteKeeper/internal/ingest"
	"QuoteKeeper/internal/notifier"
	"QuoteKeeper/internal/recorder"
	"QuoteKeeper/internal/resolver"
	"QuoteKeeper/internal/store"
)

// app is everything a command needs, built from the configuration.
type app struct {
	cfg      *config.Config
	pipeline *ingest.Pipeline
	telegram *notifier.TelegramNotifier // nil when disabled
	recorder recorder.Recorder
}

func loadConfig() (*config.Config, error) {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	if *configPath != "" {
		cfgPath = *configPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// newApp wires the pipeline. withRecorder opens the SQLite history.
func newApp(withRecorder bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, recorder: recorder.NewNoopRecorder()}

	// Init fetcher and sources
	var fetcher collector.Fetcher
	var sources []collector.Source
	if cfg.Source.File != "" {
		fetcher = collector.FileFetcher{}
		sources = []collector.Source{{Exchange: collector.NotSpecified, URL: cfg.Source.File}}
	} else {
		hf := collector.NewHTTPFetcher(cfg.Proxy, cfg.FetchTimeout())
		if cfg.Source.UserAgent != "" {
			hf.UserAgent = cfg.Source.UserAgent
		}
		fetcher = hf
		sources = append(sources, cfg.Source.Pages...)
		if cfg.Source.LinksFile != "" {
			links, err := collector.LoadLinks(cfg.Source.LinksFile)
			switch {
			case err == nil:
				sources = append(sources, links...)
			case errors.Is(err, os.ErrNotExist) && len(sources) > 0:
				log.Printf("[WARN] links file %s not found, using configured pages", cfg.Source.LinksFile)
			default:
				return nil, err
			}
		}
	}
	log.Printf("[INFO] data source: %s, %d page(s)", fetcher.Name(), len(sources))

	// Init resolver
	res, err := resolver.Load(cfg.Data.NamesFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] names file %s not found, every name is stored as is", cfg.Data.NamesFile)
		res, err = resolver.New(nil), nil
	}
	if err != nil {
		return nil, err
	}

	series := store.NewCSVFile(cfg.Data.MarketDataFile)
	series.DateFormat = cfg.Data.DateFormat
	series.TimeFormat = cfg.Data.TimeFormat

	// Init recorder
	if withRecorder && cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		} else {
			a.recorder = sr
		}
	}

	// Init notifier
	var n notifier.Notifier = notifier.NoopNotifier{}
	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = a.telegram
	}

	a.pipeline = &ingest.Pipeline{
		Collector:    collector.NewCollector(fetcher),
		Sources:      sources,
		Resolver:     res,
		Series:       series,
		Recorder:     a.recorder,
		Notifier:     n,
		RegistryFile: cfg.Data.RegistryFile,
		DateFormat:   cfg.Data.DateFormat,
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}

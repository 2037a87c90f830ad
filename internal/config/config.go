package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"QuoteKeeper/internal/collector"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Source struct {
		// Pages listed inline; LinksFile adds more.
		Pages     []collector.Source `yaml:"pages"`
		LinksFile string             `yaml:"links_file"`
		// A saved page read instead of the network when set.
		File      string `yaml:"file"`
		UserAgent string `yaml:"user_agent"`
		Timeout   int    `yaml:"timeout_seconds"`
	} `yaml:"source"`
	Data struct {
		NamesFile      string `yaml:"names_file"`
		RegistryFile   string `yaml:"registry_file"`
		MarketDataFile string `yaml:"market_data_file"`
		DateFormat     string `yaml:"date_format"`
		TimeFormat     string `yaml:"time_format"`
	} `yaml:"data"`
	Schedule struct {
		IngestCron   string `yaml:"ingest_cron"`
		RegistryCron string `yaml:"registry_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LINKS_FILE"); v != "" {
		cfg.Source.LinksFile = v
	}
	if v := os.Getenv("SOURCE_FILE"); v != "" {
		cfg.Source.File = v
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.Timeout = n
		}
	}
	if v := os.Getenv("MARKET_DATA_FILE"); v != "" {
		cfg.Data.MarketDataFile = v
	}
	if v := os.Getenv("CRON_INGEST"); v != "" {
		cfg.Schedule.IngestCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	// Defaults
	if cfg.Source.LinksFile == "" && len(cfg.Source.Pages) == 0 && cfg.Source.File == "" {
		cfg.Source.LinksFile = "data/teletrader-links.csv"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30
	}
	if cfg.Data.NamesFile == "" {
		cfg.Data.NamesFile = "data/teletrader-names.csv"
	}
	if cfg.Data.RegistryFile == "" {
		cfg.Data.RegistryFile = "data/isin-registry.csv"
	}
	if cfg.Data.MarketDataFile == "" {
		cfg.Data.MarketDataFile = "data/market-data.csv"
	}
	if cfg.Data.DateFormat == "" {
		cfg.Data.DateFormat = "2006.01.02"
	}
	if cfg.Data.TimeFormat == "" {
		cfg.Data.TimeFormat = "15:04:05"
	}
	if cfg.Schedule.IngestCron == "" {
		cfg.Schedule.IngestCron = "0 30 18 * * 1-5"
	}
	if cfg.Schedule.RegistryCron == "" {
		cfg.Schedule.RegistryCron = "0 0 8 * * 1"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/quotekeeper.db"
	}

	return cfg, nil
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.Timeout) * time.Second
}

// TelegramEnabled reports whether notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Source.File == "" && c.Source.LinksFile == "" && len(c.Source.Pages) == 0 {
		return errors.New("source: one of pages, links_file or file is required")
	}
	for i, p := range c.Source.Pages {
		if p.URL == "" {
			return fmt.Errorf("source.pages[%d].url is required", i)
		}
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout_seconds must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Data.MarketDataFile == "" {
		return fmt.Errorf("data.market_data_file is required")
	}
	if err := checkLayout(c.Data.DateFormat); err != nil {
		return fmt.Errorf("data.date_format: %w", err)
	}
	if err := checkLayout(c.Data.TimeFormat); err != nil {
		return fmt.Errorf("data.time_format: %w", err)
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.IngestCron); err != nil {
		return fmt.Errorf("schedule.ingest_cron: %w", err)
	}
	if _, err := parser.Parse(c.Schedule.RegistryCron); err != nil {
		return fmt.Errorf("schedule.registry_cron: %w", err)
	}
	return nil
}

// checkLayout rejects layouts that do not survive a format/parse round trip.
func checkLayout(layout string) error {
	ref := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)
	if _, err := time.Parse(layout, ref.Format(layout)); err != nil {
		return err
	}
	return nil
}

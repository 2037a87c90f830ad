package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuoteKeeper/internal/collector"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data/teletrader-links.csv", cfg.Source.LinksFile)
	assert.Equal(t, "data/market-data.csv", cfg.Data.MarketDataFile)
	assert.Equal(t, "2006.01.02", cfg.Data.DateFormat)
	assert.Equal(t, "15:04:05", cfg.Data.TimeFormat)
	assert.Equal(t, 30, cfg.Source.Timeout)
	assert.False(t, cfg.TelegramEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
source:
  pages:
    - exchange: Budapest
      url: https://example.com/bet
  timeout_seconds: 10
data:
  market_data_file: /tmp/quotes.csv
schedule:
  ingest_cron: "0 0 19 * * 1-5"
telegram:
  bot_token: token
  chat_id: "42"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Source.Pages, 1)
	assert.Equal(t, "Budapest", cfg.Source.Pages[0].Exchange)
	assert.Empty(t, cfg.Source.LinksFile, "links file is only defaulted without pages")
	assert.Equal(t, "/tmp/quotes.csv", cfg.Data.MarketDataFile)
	assert.Equal(t, "0 0 19 * * 1-5", cfg.Schedule.IngestCron)
	assert.Equal(t, int64(10), int64(cfg.FetchTimeout().Seconds()))
	assert.True(t, cfg.TelegramEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MARKET_DATA_FILE", "/data/market.csv")
	t.Setenv("SOURCE_FILE", "page.html")
	t.Setenv("FETCH_TIMEOUT", "5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_ID", "c")

	cfg, err := Load(writeConfig(t, "data:\n  market_data_file: ignored.csv\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/market.csv", cfg.Data.MarketDataFile)
	assert.Equal(t, "page.html", cfg.Source.File)
	assert.Equal(t, 5, cfg.Source.Timeout)
	assert.Empty(t, cfg.Source.LinksFile)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "source: [unclosed"))
	require.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		return cfg
	}

	cfg := base(t)
	cfg.Telegram.BotToken = "only-token"
	assert.ErrorContains(t, cfg.Validate(), "telegram")

	cfg = base(t)
	cfg.Schedule.IngestCron = "every day"
	assert.ErrorContains(t, cfg.Validate(), "schedule.ingest_cron")

	cfg = base(t)
	cfg.Source.LinksFile = ""
	assert.ErrorContains(t, cfg.Validate(), "source")

	cfg = base(t)
	cfg.Source.Pages = []collector.Source{{Exchange: "Budapest"}}
	assert.ErrorContains(t, cfg.Validate(), "source.pages[0].url")
}

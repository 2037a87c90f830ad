package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuoteKeeper/internal/csvfile"
	"QuoteKeeper/internal/model"
	"QuoteKeeper/internal/registry"
)

func testNotifier(srv *httptest.Server) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken:   "token",
		ChatID:     "42",
		Client:     srv.Client(),
		APIBase:    srv.URL,
		Backoff:    time.Millisecond,
		MaxRetries: 2,
	}
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv).Send(testContext(t), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestNotify_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flood wait", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv).Notify(testContext(t), "report"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotify_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testNotifier(srv).Notify(testContext(t), "report")
	require.ErrorContains(t, err, "all 3 retries exhausted")
	assert.ErrorContains(t, err, "status 401")
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	assert.NoError(t, n.Notify(testContext(t), "ignored"))
}

func TestStartPolling_OnlyConfiguredChat(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/getUpdates", r.URL.Path)
		if polls.Add(1) > 1 {
			w.Write([]byte(`{"ok":true,"result":[]}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":1,"message":{"text":"/run","chat":{"id":7}}},
			{"update_id":2,"message":{"text":" /status ","chat":{"id":42}}}
		]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(testContext(t), 5*time.Second)
	defer cancel()
	var handled []string
	testNotifier(srv).StartPolling(ctx, func(command string) string {
		handled = append(handled, command)
		cancel()
		return ""
	})

	assert.Equal(t, []string{"/status"}, handled)
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(&model.Report{
		Started:       time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC),
		Duration:      1234567 * time.Microsecond,
		SourcesOK:     1,
		SourcesFailed: []string{"Prague"},
		RowsExtracted: 12,
		RowsConverted: 11,
		RowsFailed:    1,
		Misses:        []string{"Rába <Nyrt>"},
		Added:         11,
		Pruned:        2,
		Persisted:     true,
		Securities:    10,
		Quotes:        2400,
	})

	assert.Contains(t, msg, "2024-01-10 18:30")
	assert.Contains(t, msg, "1 failed (Prague)")
	assert.Contains(t, msg, "12 extracted, 11 converted, 1 dropped")
	assert.Contains(t, msg, "+11 added, -2 pruned")
	assert.Contains(t, msg, "market data saved")
	assert.Contains(t, msg, "Rába &lt;Nyrt&gt;")
	assert.Contains(t, msg, "1.235s")
}

func TestFormatReport_LongMissList(t *testing.T) {
	misses := make([]string, maxListed+5)
	for i := range misses {
		misses[i] = "name"
	}
	msg := FormatReport(&model.Report{Misses: misses})
	assert.Equal(t, maxListed, strings.Count(msg, "• name"))
	assert.Contains(t, msg, "and 5 more")
	assert.Contains(t, msg, "market data unchanged")
}

func TestFormatReport_StaleFile(t *testing.T) {
	msg := FormatReport(&model.Report{Pruned: 3, Stale: true})
	assert.Contains(t, msg, "every quote expired")
	assert.NotContains(t, msg, "market data unchanged")
}

func TestFormatRegistryCheck(t *testing.T) {
	reg := registry.Build([]csvfile.Record{
		{registry.ColISIN: "HU0000061726", registry.ColName: "OTP", registry.ColMonths: "12"},
		{registry.ColISIN: "HU0000153937", registry.ColName: "", registry.ColMonths: "12"},
	}, "2006.01.02")

	msg := FormatRegistryCheck(reg.Len(), reg.Report(), []string{"HU0000123096"})
	assert.Contains(t, msg, "2 ISIN(s)")
	assert.Contains(t, msg, "missing names: HU0000153937")
	assert.Contains(t, msg, "• HU0000123096")
}

func TestFormatError(t *testing.T) {
	msg := FormatError("ingest", errors.New("all sources failed: <timeout>"))
	assert.Equal(t, "❌ <b>ingest failed</b>\n\nall sources failed: &lt;timeout&gt;", msg)
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

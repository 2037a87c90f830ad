package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"QuoteKeeper/internal/model"
	"QuoteKeeper/internal/registry"
)

// maxListed caps the names printed per list so messages stay below Telegram's limit.
const maxListed = 20

// FormatReport formats an ingest run into a Telegram message.
func FormatReport(r *model.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>QuoteKeeper</b> | %s\n\n", r.Started.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Sources: %d ok", r.SourcesOK))
	if len(r.SourcesFailed) > 0 {
		b.WriteString(fmt.Sprintf(", %d failed (%s)", len(r.SourcesFailed), html.EscapeString(strings.Join(r.SourcesFailed, ", "))))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Rows: %d extracted, %d converted", r.RowsExtracted, r.RowsConverted))
	if r.RowsFailed > 0 {
		b.WriteString(fmt.Sprintf(", %d dropped", r.RowsFailed))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Quotes: +%d added, -%d pruned\n", r.Added, r.Pruned))
	b.WriteString(fmt.Sprintf("Store: %d securities, %d quotes\n", r.Securities, r.Quotes))
	switch {
	case r.Persisted:
		b.WriteString("💾 market data saved\n")
	case r.Stale:
		b.WriteString("⚠️ every quote expired, market data file not rewritten\n")
	default:
		b.WriteString("market data unchanged\n")
	}

	if len(r.Misses) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ <b>%d name(s) without ISIN:</b>\n", len(r.Misses)))
		writeList(&b, r.Misses)
	}

	b.WriteString(fmt.Sprintf("\n⏱ %s", r.Duration.Round(time.Millisecond)))
	return b.String()
}

// FormatRegistryCheck formats the registry validation result.
func FormatRegistryCheck(loaded int, rep *registry.Report, unknown []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>Registry check</b> | %d ISIN(s)\n\n", loaded))
	if rep.HasErrors() {
		b.WriteString(html.EscapeString(rep.String()))
		b.WriteString("\n")
	} else {
		b.WriteString("no errors found\n")
	}
	if len(unknown) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ <b>%d stored ISIN(s) missing from the registry:</b>\n", len(unknown)))
		writeList(&b, unknown)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatError formats a failed task.
func FormatError(task string, err error) string {
	return fmt.Sprintf("❌ <b>%s failed</b>\n\n%s", html.EscapeString(task), html.EscapeString(err.Error()))
}

func writeList(b *strings.Builder, items []string) {
	for i, item := range items {
		if i == maxListed {
			b.WriteString(fmt.Sprintf("  … and %d more\n", len(items)-maxListed))
			return
		}
		b.WriteString("  • " + html.EscapeString(item) + "\n")
	}
}

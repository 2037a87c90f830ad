// Package ingest runs one fetch, merge and persist cycle over the quote store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"QuoteKeeper/internal/calculator"
	"QuoteKeeper/internal/collector"
	"QuoteKeeper/internal/extract"
	"QuoteKeeper/internal/metrics"
	"QuoteKeeper/internal/model"
	"QuoteKeeper/internal/notifier"
	"QuoteKeeper/internal/recorder"
	"QuoteKeeper/internal/registry"
	"QuoteKeeper/internal/resolver"
	"QuoteKeeper/internal/store"
)

// Series is where the store is loaded from and persisted to.
type Series interface {
	store.Reader
	store.Writer
}

// Pipeline wires the collaborators of an ingest run. Recorder, Notifier,
// Metrics and Health are optional.
type Pipeline struct {
	Collector *collector.Collector
	Sources   []collector.Source
	Resolver  *resolver.Resolver
	Series    Series
	Recorder  recorder.Recorder
	Notifier  notifier.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus

	RegistryFile string
	DateFormat   string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) load() (*store.Store, error) {
	st := store.New()
	misses, err := st.Load(p.Series, p.Resolver)
	if err != nil {
		return nil, err
	}
	for _, name := range misses {
		log.Printf("[WARN] ingest: stored rows of %q have no ISIN, kept under the name", name)
	}
	return st, nil
}

// Run loads the store, prunes it, merges freshly collected quotes, prunes
// again and persists when anything changed. A persistence error is returned;
// when every source failed the store is still pruned and persisted and the
// collection error is returned with the report.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	started := p.now()
	rep := &model.Report{Started: started}
	log.Println("[INFO] ingest: run started")

	rep, err := p.run(ctx, rep)
	rep.Duration = p.now().Sub(started)

	if err != nil {
		log.Printf("[ERROR] ingest: %v", err)
	} else {
		log.Printf("[INFO] ingest: run finished in %s, %d added, %d pruned", rep.Duration, rep.Added, rep.Pruned)
	}
	p.record(rep, err)
	p.observe(rep, err)
	p.notify(ctx, rep, err)
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, rep *model.Report) (*model.Report, error) {
	st, err := p.load()
	if err != nil {
		return rep, err
	}
	rep.Pruned += st.Prune(rep.Started)

	var collectErr error
	var rows []model.RawRow
	res, err := p.Collector.Collect(ctx, p.Sources)
	if res != nil {
		rep.SourcesOK = res.OK
		rep.SourcesFailed = res.Failed
		rows = res.Rows
	}
	if err != nil {
		if ctx.Err() != nil {
			return rep, err
		}
		collectErr = fmt.Errorf("collect: %w", err)
	}

	p.Resolver.ResetMisses()
	batch, stats := extract.ToBatch(rows, p.Resolver, rep.Started)
	rep.RowsExtracted = stats.Rows
	rep.RowsConverted = stats.Converted
	rep.RowsFailed = stats.Failed
	rep.Misses = p.Resolver.Misses()
	for _, name := range rep.Misses {
		log.Printf("[WARN] ingest: no ISIN for %q, stored under its name", name)
	}

	rep.Added = st.Merge(batch)
	rep.Pruned += st.Prune(rep.Started)

	persisted, err := st.Persist(p.Series)
	rep.Persisted = persisted
	rep.Stale = staleFile(st, persisted, err)
	rep.Securities = st.Len()
	rep.Quotes = st.Count()
	if err != nil {
		return rep, errors.Join(err, collectErr)
	}
	p.recordLatest(st)
	return rep, collectErr
}

// Prune loads the store, applies the retention window and persists when
// quotes were removed. stale reports that every quote expired and the file
// was left as it was.
func (p *Pipeline) Prune() (removed int, persisted, stale bool, err error) {
	st, err := p.load()
	if err != nil {
		return 0, false, false, err
	}
	removed = st.Prune(p.now())
	persisted, err = st.Persist(p.Series)
	return removed, persisted, staleFile(st, persisted, err), err
}

// staleFile reports a store emptied by pruning, which is never written, so
// the file keeps the expired quotes until new ones arrive.
func staleFile(st *store.Store, persisted bool, err error) bool {
	if persisted || err != nil || !st.Dirty() || st.Len() > 0 {
		return false
	}
	log.Println("[WARN] ingest: every stored quote expired, market data file left as it was")
	return true
}

// CheckRegistry loads the registry and lists the stored identifiers it does not know.
func (p *Pipeline) CheckRegistry() (*registry.Registry, []string, error) {
	reg, err := registry.Load(p.RegistryFile, p.DateFormat)
	if err != nil {
		return nil, nil, err
	}
	st, err := p.load()
	if err != nil {
		return reg, nil, err
	}
	unknown := reg.Unknown(st.IDs())
	if len(unknown) > 0 {
		log.Printf("[WARN] registry: %d stored ISIN(s) not in registry", len(unknown))
	}
	return reg, unknown, nil
}

func (p *Pipeline) record(rep *model.Report, runErr error) {
	if p.Recorder == nil {
		return
	}
	evt := &recorder.RunEvent{
		Started:       rep.Started,
		Duration:      rep.Duration,
		SourcesOK:     rep.SourcesOK,
		SourcesFailed: len(rep.SourcesFailed),
		RowsExtracted: rep.RowsExtracted,
		RowsConverted: rep.RowsConverted,
		RowsFailed:    rep.RowsFailed,
		Misses:        len(rep.Misses),
		Added:         rep.Added,
		Pruned:        rep.Pruned,
		Persisted:     rep.Persisted,
	}
	if runErr != nil {
		evt.Error = runErr.Error()
	}
	if err := p.Recorder.RecordRun(evt); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
}

func (p *Pipeline) recordLatest(st *store.Store) {
	if p.Recorder == nil {
		return
	}
	latest := st.Latest()
	closes := make([]recorder.LatestClose, 0, len(latest))
	for _, r := range latest {
		c := recorder.LatestClose{
			ISIN:     r.ID,
			Name:     r.DisplayName,
			Exchange: r.Exchange,
			Time:     r.Time,
		}
		c.Close = nullDecimal(r.Quote.CloseDecimal())
		c.Volume = nullDecimal(r.Quote.VolumeDecimal())
		if e, ok := st.Get(r.ID); ok {
			if high, low, err := calculator.Range(calculator.Closes(e.Quotes)); err == nil {
				c.High52w = decimal.NewNullDecimal(high)
				c.Low52w = decimal.NewNullDecimal(low)
				if c.Close.Valid {
					c.Position = nullDecimal(calculator.Position(c.Close.Decimal, high, low))
				}
			}
		}
		closes = append(closes, c)
	}
	if err := p.Recorder.RecordLatest(closes); err != nil {
		log.Printf("[ERROR] record latest closes: %v", err)
	}
}

func nullDecimal(d decimal.Decimal, err error) decimal.NullDecimal {
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (p *Pipeline) observe(rep *model.Report, err error) {
	if p.Metrics != nil {
		p.Metrics.Observe(rep, err)
	}
	if p.Health != nil {
		p.Health.SetRun(rep.Started.Add(rep.Duration), err)
	}
}

func (p *Pipeline) notify(ctx context.Context, rep *model.Report, runErr error) {
	if p.Notifier == nil {
		return
	}
	text := notifier.FormatReport(rep)
	if runErr != nil {
		text = notifier.FormatError("ingest", runErr) + "\n\n" + text
	}
	if err := p.Notifier.Notify(ctx, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

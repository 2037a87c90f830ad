package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"QuoteKeeper/internal/extract"
	"QuoteKeeper/internal/model"
)

// ErrNoSources is returned by Collect when it is given nothing to fetch.
var ErrNoSources = errors.New("no sources configured")

// Result is the outcome of one collection.
type Result struct {
	Rows   []model.RawRow
	OK     int
	Failed []string
}

// Collector fetches every source and runs the extractor over it.
type Collector struct {
	Fetcher   Fetcher
	Extractor *extract.Extractor
}

// NewCollector creates a Collector with the TeleTrader extractor.
func NewCollector(fetcher Fetcher) *Collector {
	ex, _ := extract.NewExtractor(extract.TeleTrader)
	return &Collector{Fetcher: fetcher, Extractor: ex}
}

// Collect fetches sources in exchange order. A failing source is logged and
// skipped; an error is returned only when no source succeeded.
func (c *Collector) Collect(ctx context.Context, sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Exchange < ordered[j].Exchange })

	res := &Result{}
	var errs []error
	for _, src := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		markup, err := c.Fetcher.Fetch(ctx, src)
		if err != nil {
			log.Printf("[ERROR] collector: %s via %s: %v", src.Exchange, c.Fetcher.Name(), err)
			res.Failed = append(res.Failed, src.Exchange)
			errs = append(errs, fmt.Errorf("%s: %w", src.Exchange, err))
			continue
		}
		rows, err := c.Extractor.Read(strings.NewReader(markup), src.Exchange)
		if err != nil {
			log.Printf("[WARN] collector: %s: %v", src.Exchange, err)
		}
		if len(rows) == 0 {
			log.Printf("[WARN] collector: %s: no row extracted", src.Exchange)
		} else {
			log.Printf("[INFO] collector: %s: %d row(s) extracted", src.Exchange, len(rows))
		}
		res.OK++
		res.Rows = append(res.Rows, rows...)
	}
	if res.OK == 0 {
		return res, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}
	return res, nil
}

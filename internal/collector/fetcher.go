package collector

import (
	"context"
	"fmt"
	"os"
	"strings"

	"QuoteKeeper/internal/csvfile"
)

// NotSpecified is the exchange label of markup read from a local file.
const NotSpecified = "Not specified"

// Source is one page of quotes and the exchange it belongs to.
// URL is a file path for the FileFetcher.
type Source struct {
	Exchange string `yaml:"exchange"`
	URL      string `yaml:"url"`
}

// Fetcher defines the interface for fetching the markup of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (string, error)
	Name() string
}

// FileFetcher reads markup saved to disk.
type FileFetcher struct{}

func (FileFetcher) Name() string { return "file" }

func (FileFetcher) Fetch(ctx context.Context, src Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(src.URL)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(b), nil
}

// Columns of the links file.
const (
	ColExchange = "Stock Exchange"
	ColURL      = "URL"
)

// LoadLinks reads the exchange pages listed in path. Lines without a URL are skipped.
func LoadLinks(path string) ([]Source, error) {
	recs, err := csvfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	var out []Source
	for _, rec := range recs {
		u := strings.TrimSpace(rec[ColURL])
		if u == "" {
			continue
		}
		out = append(out, Source{Exchange: strings.TrimSpace(rec[ColExchange]), URL: u})
	}
	return out, nil
}

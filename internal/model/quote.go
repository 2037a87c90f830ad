package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one closing price and volume, both kept as the text the source published.
type Quote struct {
	Close  string
	Volume string
}

// CloseDecimal parses the closing price. Spaces are treated as thousands
// separators and a comma as the decimal separator.
func (q Quote) CloseDecimal() (decimal.Decimal, error) {
	return parseDecimalText(q.Close)
}

// VolumeDecimal parses the volume with the same rules as CloseDecimal.
func (q Quote) VolumeDecimal() (decimal.Decimal, error) {
	return parseDecimalText(q.Volume)
}

func parseDecimalText(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// Entry is the per-security series with the metadata it was published under.
// At most one timestamp per calendar day is kept, enforced by the store on merge.
type Entry struct {
	DisplayName string
	Exchange    string
	Quotes      map[time.Time]Quote
}

// NewEntry creates an Entry with an empty series.
func NewEntry(displayName, exchange string) *Entry {
	return &Entry{
		DisplayName: displayName,
		Exchange:    exchange,
		Quotes:      make(map[time.Time]Quote),
	}
}

// Batch maps canonical identifiers to freshly extracted entries.
type Batch map[string]*Entry

// Count returns the number of quotes in the batch.
func (b Batch) Count() int {
	n := 0
	for _, e := range b {
		n += len(e.Quotes)
	}
	return n
}

// Day truncates t to its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

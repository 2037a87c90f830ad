package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"QuoteKeeper/internal/model"
)

// Extractor recovers table rows from markup with a fixed pattern. It only
// consumes tokenizer events; no document tree is built.
type Extractor struct {
	pattern Pattern
}

// NewExtractor creates an Extractor for the given pattern.
func NewExtractor(p Pattern) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{pattern: p}, nil
}

// Extract returns the TeleTrader rows of markup, each stamped with exchange.
// Malformed rows are skipped.
func Extract(markup, exchange string) []model.RawRow {
	rows, _ := teleTrader.Read(strings.NewReader(markup), exchange)
	return rows
}

// ExtractReader is Extract over a reader.
func ExtractReader(r io.Reader, exchange string) ([]model.RawRow, error) {
	return teleTrader.Read(r, exchange)
}

var teleTrader = &Extractor{pattern: TeleTrader}

// Read feeds every token of r through the automaton. Only read errors are
// returned; rows found before the error are returned with it.
func (e *Extractor) Read(r io.Reader, exchange string) ([]model.RawRow, error) {
	m := &machine{pattern: &e.pattern, exchange: exchange}
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return m.rows, fmt.Errorf("read markup: %w", err)
			}
			return m.rows, nil
		case html.StartTagToken:
			name, _ := z.TagName()
			m.open(string(name))
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			m.open(string(name))
			m.close(string(name))
		case html.EndTagToken:
			name, _ := z.TagName()
			m.close(string(name))
		case html.TextToken:
			m.text(string(z.Text()))
		}
	}
}

// machine is the automaton state: a cursor into the pattern and the fields
// captured for the row in progress. A blank text seen on a capture step is
// held as pending until real text replaces it or the cell closes.
type machine struct {
	pattern  *Pattern
	cursor   int
	fields   []string
	pending  bool
	exchange string
	rows     []model.RawRow
}

func (m *machine) expect() Step { return m.pattern.Steps[m.cursor] }

func (m *machine) open(tag string) {
	if s := m.expect(); s.Kind == Open && s.Tag == tag {
		m.cursor++
	}
}

func (m *machine) text(data string) {
	if m.expect().Kind != Capture {
		return
	}
	data = strings.TrimSpace(data)
	if data == "" {
		m.pending = true
		return
	}
	m.capture(data)
}

func (m *machine) capture(data string) {
	m.fields = append(m.fields, data)
	m.pending = false
	m.cursor++
}

func (m *machine) close(tag string) {
	if m.pending && m.expect().Kind == Capture {
		if next := m.pattern.Steps[m.cursor+1]; next.Kind == Close && next.Tag == tag {
			m.capture("")
		}
	}
	if s := m.expect(); s.Kind == Close && s.Tag == tag {
		if tag == m.pattern.RowTag {
			m.finish()
			return
		}
		m.cursor++
		return
	}
	if tag == m.pattern.RowTag || tag == m.pattern.CellTag {
		m.reset()
	}
}

func (m *machine) finish() {
	row := make(model.RawRow, 0, len(m.fields)+1)
	row = append(row, m.fields...)
	row = append(row, m.exchange)
	m.rows = append(m.rows, row)
	m.reset()
}

func (m *machine) reset() {
	m.cursor = 0
	m.fields = m.fields[:0]
	m.pending = false
}

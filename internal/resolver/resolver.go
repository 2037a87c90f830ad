// Package resolver maps the display names used by quote pages to ISINs.
package resolver

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"QuoteKeeper/internal/csvfile"
)

// Column names of the name table.
const (
	ColName = "TeleTrader Name"
	ColISIN = "ISIN"
)

// Resolver looks up canonical identifiers by display name. Unknown names
// resolve to themselves and are remembered as misses.
type Resolver struct {
	ids    map[string]string
	misses map[string]struct{}
}

// New creates a Resolver from a name -> identifier table.
func New(ids map[string]string) *Resolver {
	r := &Resolver{
		ids:    make(map[string]string, len(ids)),
		misses: make(map[string]struct{}),
	}
	for name, id := range ids {
		r.ids[name] = id
	}
	return r
}

// Load reads the name table from a csv file.
func Load(path string) (*Resolver, error) {
	recs, err := csvfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load name table: %w", err)
	}
	ids := make(map[string]string, len(recs))
	for _, rec := range recs {
		name, id := strings.TrimSpace(rec[ColName]), strings.TrimSpace(rec[ColISIN])
		if name == "" || id == "" {
			continue
		}
		ids[name] = id
	}
	log.Printf("[INFO] resolver: %d name(s) loaded from %s", len(ids), path)
	return New(ids), nil
}

// Resolve returns the identifier for name, or name itself when unknown.
func (r *Resolver) Resolve(name string) string {
	if id, ok := r.ids[name]; ok {
		return id
	}
	r.misses[name] = struct{}{}
	return name
}

// Lookup returns the identifier for name without recording a miss.
func (r *Resolver) Lookup(name string) (string, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Len returns the number of known names.
func (r *Resolver) Len() int { return len(r.ids) }

// Misses returns the unresolved names seen so far, sorted.
func (r *Resolver) Misses() []string {
	out := make([]string, 0, len(r.misses))
	for name := range r.misses {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResetMisses forgets the recorded misses.
func (r *Resolver) ResetMisses() {
	clear(r.misses)
}

// Package store keeps the per-security quote series in memory and decides
// when they need to be written back.
package store

import (
	"fmt"
	"log"
	"sort"
	"time"

	"QuoteKeeper/internal/model"
)

// RetentionDays is how many calendar days back quotes are kept.
const RetentionDays = 365

// Cutoff returns the oldest quote time kept at now. It counts calendar days
// on now's wall clock, so a daylight saving change in between does not move it.
func Cutoff(now time.Time) time.Time { return now.AddDate(0, 0, -RetentionDays) }

// Row is one persisted quote with the metadata of its security.
// ID may be blank in rows read from disk.
type Row struct {
	ID          string
	DisplayName string
	Exchange    string
	Time        time.Time
	Quote       model.Quote
}

// Reader supplies persisted rows.
type Reader interface {
	ReadRows() ([]Row, error)
}

// Writer receives the full, sorted store on persist.
type Writer interface {
	WriteRows(rows []Row) error
}

// Resolver finds the identifier of a display name.
type Resolver interface {
	Lookup(name string) (string, bool)
}

// Store maps identifiers to their series. It tracks whether anything changed
// since it was loaded or persisted. A Store is not safe for concurrent use.
type Store struct {
	entries map[string]*model.Entry
	dirty   bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*model.Entry)}
}

// Dirty reports whether the store differs from what was last loaded or persisted.
func (s *Store) Dirty() bool { return s.dirty }

// Len returns the number of securities.
func (s *Store) Len() int { return len(s.entries) }

// Count returns the number of quotes over all securities.
func (s *Store) Count() int {
	n := 0
	for _, e := range s.entries {
		n += len(e.Quotes)
	}
	return n
}

// Get returns the entry of id. The entry is owned by the store.
func (s *Store) Get(id string) (*model.Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// IDs returns the identifiers in ascending order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load adds persisted rows to the store. Rows without an identifier are
// resolved by display name; a name that cannot be resolved becomes the
// identifier itself and is returned as a miss. A blank row time has already
// been defaulted by the reader. Load leaves the store clean.
func (s *Store) Load(r Reader, res Resolver) ([]string, error) {
	rows, err := r.ReadRows()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}

	missing := make(map[string]struct{})
	for _, row := range rows {
		id := row.ID
		if id == "" && res != nil {
			id, _ = res.Lookup(row.DisplayName)
		}
		if id == "" {
			if row.DisplayName == "" {
				log.Printf("[WARN] store: row at %s has neither identifier nor name, skipped", row.Time.Format(time.DateTime))
				continue
			}
			missing[row.DisplayName] = struct{}{}
			id = row.DisplayName
		}
		e, ok := s.entries[id]
		if !ok {
			e = model.NewEntry(row.DisplayName, row.Exchange)
			s.entries[id] = e
		}
		e.Quotes[stamp(row.Time)] = row.Quote
	}
	s.dirty = false

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(s.entries) > 0 {
		log.Printf("[INFO] store: %d security(s) loaded with %d quote(s)", len(s.entries), s.Count())
	} else {
		log.Println("[INFO] store: no security loaded")
	}
	if len(names) > 0 {
		log.Printf("[WARN] store: %d row name(s) without identifier kept under the name", len(names))
	}
	return names, nil
}

// Merge reconciles batch into the store and returns the number of quotes
// inserted or updated. Per security and calendar day only the latest quote is
// kept: an incoming quote replaces an older one of the same day and is
// discarded when the existing one is as late or later. A new security counts
// the quotes it ends up with.
func (s *Store) Merge(batch model.Batch) int {
	added := 0
	for id, in := range batch {
		cur, ok := s.entries[id]
		if !ok {
			if len(in.Quotes) == 0 {
				continue
			}
			cur = model.NewEntry(in.DisplayName, in.Exchange)
			s.entries[id] = cur
			for _, t := range ascending(in.Quotes) {
				mergeQuote(cur, stamp(t), in.Quotes[t])
			}
			added += len(cur.Quotes)
			log.Printf("[INFO] store: new security %s (%s)", id, in.DisplayName)
			continue
		}
		for _, t := range ascending(in.Quotes) {
			if mergeQuote(cur, stamp(t), in.Quotes[t]) {
				added++
			}
		}
	}
	if added > 0 {
		s.dirty = true
		log.Printf("[INFO] store: %d quote(s) added", added)
	} else {
		log.Println("[INFO] store: no quote added")
	}
	return added
}

// mergeQuote applies the same-day latest-wins rule for one incoming quote.
// Existing quotes are scanned from the newest; the scan stops at the first
// quote of an earlier day.
func mergeQuote(e *model.Entry, t time.Time, q model.Quote) bool {
	day := model.Day(t)
	for _, old := range descending(e.Quotes) {
		if old.Before(day) {
			break
		}
		if !model.SameDay(old, t) {
			continue
		}
		if !old.Before(t) {
			return false
		}
		delete(e.Quotes, old)
		e.Quotes[t] = q
		return true
	}
	e.Quotes[t] = q
	return true
}

// Prune removes quotes older than Cutoff(now) and securities left without
// quotes. It returns the number of quotes removed.
func (s *Store) Prune(now time.Time) int {
	cutoff := Cutoff(now)
	removed := 0
	for id, e := range s.entries {
		for t := range e.Quotes {
			if t.Before(cutoff) {
				delete(e.Quotes, t)
				removed++
			}
		}
		if len(e.Quotes) == 0 {
			delete(s.entries, id)
		}
	}
	if removed > 0 {
		s.dirty = true
		log.Printf("[INFO] store: %d old quote(s) deleted", removed)
	} else {
		log.Println("[INFO] store: no old quote deleted")
	}
	return removed
}

// Rows returns every quote sorted by identifier, then by time.
func (s *Store) Rows() []Row {
	rows := make([]Row, 0, s.Count())
	for _, id := range s.IDs() {
		e := s.entries[id]
		for _, t := range ascending(e.Quotes) {
			rows = append(rows, Row{
				ID:          id,
				DisplayName: e.DisplayName,
				Exchange:    e.Exchange,
				Time:        t,
				Quote:       e.Quotes[t],
			})
		}
	}
	return rows
}

// Latest returns the newest quote of every security, sorted by identifier.
func (s *Store) Latest() []Row {
	rows := make([]Row, 0, len(s.entries))
	for _, id := range s.IDs() {
		e := s.entries[id]
		ts := descending(e.Quotes)
		if len(ts) == 0 {
			continue
		}
		rows = append(rows, Row{
			ID:          id,
			DisplayName: e.DisplayName,
			Exchange:    e.Exchange,
			Time:        ts[0],
			Quote:       e.Quotes[ts[0]],
		})
	}
	return rows
}

// Persist writes the store to w if it is dirty and reports whether it wrote.
// A failed write keeps the store dirty. An empty store is never written.
func (s *Store) Persist(w Writer) (bool, error) {
	if !s.dirty {
		log.Println("[INFO] store: unchanged, nothing to persist")
		return false, nil
	}
	rows := s.Rows()
	if len(rows) == 0 {
		log.Println("[WARN] store: empty, nothing to persist")
		return false, nil
	}
	if err := w.WriteRows(rows); err != nil {
		return false, fmt.Errorf("persist store: %w", err)
	}
	s.dirty = false
	log.Printf("[INFO] store: %d row(s) persisted", len(rows))
	return true, nil
}

// stamp drops sub-second precision and the monotonic clock reading so equal
// instants compare equal as map keys.
func stamp(t time.Time) time.Time { return t.Truncate(time.Second) }

func ascending(quotes map[time.Time]model.Quote) []time.Time {
	ts := make([]time.Time, 0, len(quotes))
	for t := range quotes {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	return ts
}

func descending(quotes map[time.Time]model.Quote) []time.Time {
	ts := ascending(quotes)
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
	return ts
}

package extract

import (
	"fmt"
	"log"
	"strings"
	"time"

	"QuoteKeeper/internal/model"
)

// RowTimeLayout is the date/time cell format of the source pages, e.g. 07.14./17:35.
// The year is not published.
const RowTimeLayout = "01.02./15:04"

// Resolver maps a display name to a canonical identifier.
type Resolver interface {
	Resolve(name string) string
}

// Stats counts what happened to the rows handed to ToBatch.
type Stats struct {
	Rows      int
	Converted int
	Failed    int
}

// ParseRowTime parses a date/time cell in now's location. The year is taken
// from now; a result more than a day ahead of now belongs to the previous year.
// A day that does not exist in that year, such as 02.29. outside leap years,
// is an error.
func ParseRowTime(text string, now time.Time) (time.Time, error) {
	t, err := time.Parse(RowTimeLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse row time %q: %w", text, err)
	}
	year := now.Year()
	if onDay(year, t, now.Location()).After(now.AddDate(0, 0, 1)) {
		year--
	}
	ts := onDay(year, t, now.Location())
	if ts.Month() != t.Month() || ts.Day() != t.Day() {
		return time.Time{}, fmt.Errorf("parse row time %q: no such day in %d", text, year)
	}
	return ts, nil
}

func onDay(year int, t time.Time, loc *time.Location) time.Time {
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// ToBatch resolves and timestamps rows. Rows that are short or whose time
// does not parse are dropped and counted as failed.
func ToBatch(rows []model.RawRow, res Resolver, now time.Time) (model.Batch, Stats) {
	batch := make(model.Batch)
	st := Stats{Rows: len(rows)}
	for _, row := range rows {
		if len(row) < model.RowFields {
			log.Printf("[WARN] skipping short row %q", []string(row))
			st.Failed++
			continue
		}
		ts, err := ParseRowTime(row.DateTime(), now)
		if err != nil {
			log.Printf("[WARN] skipping row %q: %v", row.Name(), err)
			st.Failed++
			continue
		}
		id := res.Resolve(row.Name())
		e, ok := batch[id]
		if !ok {
			e = model.NewEntry(row.Name(), row.Exchange())
			batch[id] = e
		}
		e.Quotes[ts] = model.Quote{Close: row.Close(), Volume: row.Volume()}
		st.Converted++
	}
	return batch, st
}

package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"QuoteKeeper/internal/csvfile"
	"QuoteKeeper/internal/model"
)

// Header lists the columns of the persisted series in file order.
var Header = []string{
	"Name",
	"ISIN",
	"Date",
	"Time",
	"Closing Price",
	"Volume",
	"TeleTrader Name",
	"Stock Exchange",
}

// Default formats of the date and time columns.
const (
	DefaultDateFormat = "2006.01.02"
	DefaultTimeFormat = "15:04:05"
)

// CSVFile persists the store as a semicolon separated file.
type CSVFile struct {
	Path       string
	DateFormat string
	TimeFormat string
	// Location of the persisted timestamps. Nil means time.Local.
	Location *time.Location
}

// NewCSVFile creates a CSVFile with the default formats.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{Path: path, DateFormat: DefaultDateFormat, TimeFormat: DefaultTimeFormat}
}

func (f *CSVFile) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// ReadRows reads the file. A missing file is an empty series.
func (f *CSVFile) ReadRows() ([]Row, error) {
	recs, err := csvfile.Read(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(recs))
	for i, rec := range recs {
		ts, err := f.parseTime(rec["Date"], rec["Time"])
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("%s:%d: %w", f.Path, i+2, err)
		}
		rows = append(rows, Row{
			ID:          strings.TrimSpace(rec["ISIN"]),
			DisplayName: rec["TeleTrader Name"],
			Exchange:    rec["Stock Exchange"],
			Time:        ts,
			Quote:       model.Quote{Close: rec["Closing Price"], Volume: rec["Volume"]},
		})
	}
	return rows, nil
}

// parseTime combines the date and time columns. A blank time is 00:00:01.
func (f *CSVFile) parseTime(date, clock string) (time.Time, error) {
	d, err := time.ParseInLocation(f.DateFormat, strings.TrimSpace(date), f.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	h, m, sec := 0, 0, 1
	if clock = strings.TrimSpace(clock); clock != "" {
		c, err := time.Parse(f.TimeFormat, clock)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", clock, err)
		}
		h, m, sec = c.Clock()
	}
	y, mo, day := d.Date()
	return time.Date(y, mo, day, h, m, sec, 0, f.loc()), nil
}

// WriteRows replaces the file with rows.
func (f *CSVFile) WriteRows(rows []Row) error {
	lines := make([][]string, 0, len(rows))
	for _, r := range rows {
		t := r.Time.In(f.loc())
		lines = append(lines, []string{
			"",
			r.ID,
			t.Format(f.DateFormat),
			t.Format(f.TimeFormat),
			r.Quote.Close,
			r.Quote.Volume,
			r.DisplayName,
			r.Exchange,
		})
	}
	return csvfile.Write(f.Path, Header, lines)
}

package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunEvent holds the outcome of one ingest run.
type RunEvent struct {
	Started       time.Time
	Duration      time.Duration
	SourcesOK     int
	SourcesFailed int
	RowsExtracted int
	RowsConverted int
	RowsFailed    int
	Misses        int
	Added         int
	Pruned        int
	Persisted     bool
	Error         string // empty on success
}

// LatestClose is the newest stored quote of one security with the range of
// its stored closes.
type LatestClose struct {
	ISIN     string
	Name     string
	Exchange string
	Time     time.Time
	Close    decimal.NullDecimal
	Volume   decimal.NullDecimal
	High52w  decimal.NullDecimal
	Low52w   decimal.NullDecimal
	Position decimal.NullDecimal // of Close within the range, 0~1
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordRun(evt *RunEvent) error
	RecordLatest(closes []LatestClose) error
	Close() error
}

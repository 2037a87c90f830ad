package model

import "time"

// Report summarises one ingest run.
type Report struct {
	Started       time.Time
	Duration      time.Duration
	SourcesOK     int
	SourcesFailed []string
	RowsExtracted int
	RowsConverted int
	RowsFailed    int
	// Display names that had no identifier and were stored under their own name.
	Misses    []string
	Added     int
	Pruned    int
	Persisted bool
	// Every quote expired; the store is empty and the file on disk, which
	// still holds the expired quotes, was left as it was.
	Stale bool
	// Size of the store after the run.
	Securities int
	Quotes     int
}

package recorder

import "time"

// FetchEvent is the outcome of one symbol's download, after retries.
type FetchEvent struct {
	Symbol   string
	Source   string
	Kind     string // "daily" or "intraday"
	Interval string
	Records  int
	Err      string // empty on success
}

// AnomalyEvent holds the validation findings for one downloaded series.
type AnomalyEvent struct {
	Symbol         string
	Kind           string
	NullFields     int
	NegativePrices int
	SubMinimum     int
	ExtremeMoves   int
}

// RunSummary describes one bulk download or update run.
type RunSummary struct {
	Kind      string // "daily", "intraday", "daily-update", "intraday-update"
	Requested int
	Succeeded int
	Duration  time.Duration
}

// Recorder persists the download audit trail for later analysis.
type Recorder interface {
	RecordFetch(evt *FetchEvent) error
	RecordAnomalies(evt *AnomalyEvent) error
	RecordRun(sum *RunSummary) error
	Close() error
}

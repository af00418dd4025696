package model

import "time"

// Kind distinguishes the two storage granularities.
type Kind string

const (
	Daily    Kind = "daily"
	Intraday Kind = "intraday"
)

// Valid reports whether k is a known granularity.
func (k Kind) Valid() bool { return k == Daily || k == Intraday }

// RawTable is a provider response before column normalization: one row
// per timestamp, columns named whatever the provider calls them.
// Cells[i][j] holds row i, column j; NaN marks a null cell.
type RawTable struct {
	Columns []string
	Times   []time.Time
	Cells   [][]float64
}

// Rows returns the number of rows.
func (t *RawTable) Rows() int {
	if t == nil {
		return 0
	}
	return len(t.Times)
}

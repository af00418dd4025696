package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is a single OHLCV record. Numeric fields the provider left empty
// are NaN; AdjClose is nil when the source carries no adjusted close.
type Bar struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	AdjClose *float64
}

// Series is an ordered sequence of bars for one symbol at one granularity.
// Canonical storage order is strictly increasing timestamps with no
// duplicate keys.
type Series struct {
	Symbol string
	Bars   []Bar
}

// Empty reports whether the series has no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Sort orders bars ascending by timestamp.
func (s *Series) Sort() {
	sort.SliceStable(s.Bars, func(i, j int) bool {
		return s.Bars[i].Time.Before(s.Bars[j].Time)
	})
}

// DedupeKeepLast removes duplicate timestamps, keeping the bar that
// appears later in the slice, then sorts ascending.
func (s *Series) DedupeKeepLast() {
	if len(s.Bars) < 2 {
		s.Sort()
		return
	}
	last := make(map[int64]int, len(s.Bars))
	for i, b := range s.Bars {
		last[b.Time.Unix()] = i
	}
	kept := s.Bars[:0]
	for i, b := range s.Bars {
		if last[b.Time.Unix()] == i {
			kept = append(kept, b)
		}
	}
	s.Bars = kept
	s.Sort()
}

// Clone returns a deep copy. Callers of storage and merge operations get
// independent series, never views into shared backing arrays.
func (s Series) Clone() Series {
	out := Series{Symbol: s.Symbol, Bars: make([]Bar, len(s.Bars))}
	copy(out.Bars, s.Bars)
	for i := range out.Bars {
		if s.Bars[i].AdjClose != nil {
			v := *s.Bars[i].AdjClose
			out.Bars[i].AdjClose = &v
		}
	}
	return out
}

// Range returns the first and last timestamps. ok is false for an empty
// series. Assumes canonical order.
func (s Series) Range() (start, end time.Time, ok bool) {
	if s.Empty() {
		return time.Time{}, time.Time{}, false
	}
	return s.Bars[0].Time, s.Bars[len(s.Bars)-1].Time, true
}

// Filter returns a copy restricted to [start, end], inclusive at both
// bounds. A zero time leaves that bound open.
func (s Series) Filter(start, end time.Time) Series {
	out := Series{Symbol: s.Symbol}
	for _, b := range s.Bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out.Clone()
}

// HasAdjClose reports whether any bar carries an adjusted close.
func (s Series) HasAdjClose() bool {
	for _, b := range s.Bars {
		if b.AdjClose != nil {
			return true
		}
	}
	return false
}

// RangeString renders a human-readable summary like
// "2020-01-02 to 2023-12-29 (1006 records, 1457 days)".
func (s Series) RangeString() string {
	start, end, ok := s.Range()
	if !ok {
		return "no data"
	}
	days := int(end.Sub(start).Hours() / 24)
	return fmt.Sprintf("%s to %s (%d records, %d days)",
		start.Format("2006-01-02"), end.Format("2006-01-02"), len(s.Bars), days)
}

// IsNull reports whether v marks a missing value.
func IsNull(v float64) bool { return math.IsNaN(v) }

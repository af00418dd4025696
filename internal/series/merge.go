// Package series holds pure operations over model.Series: merging
// incremental updates into stored history and gap detection.
package series

import (
	"time"

	"MarketArchive/internal/model"
)

// Merge combines an existing series with newly fetched records. If
// either side is empty the other's records come back alone, still in
// canonical order.
// Duplicate timestamps resolve in favor of the incoming side, and the
// result is sorted ascending. Merge is idempotent:
// Merge(s, s) == s and Merge(Merge(a, b), b) == Merge(a, b).
func Merge(existing, incoming model.Series) model.Series {
	if existing.Empty() {
		return canonical(incoming)
	}
	if incoming.Empty() {
		return canonical(existing)
	}
	out := model.Series{Symbol: incoming.Symbol}
	if out.Symbol == "" {
		out.Symbol = existing.Symbol
	}
	out.Bars = make([]model.Bar, 0, len(existing.Bars)+len(incoming.Bars))
	out.Bars = append(out.Bars, existing.Bars...)
	out.Bars = append(out.Bars, incoming.Bars...)
	out.DedupeKeepLast()
	return out.Clone()
}

// canonical returns an independent copy in storage order.
func canonical(s model.Series) model.Series {
	out := s.Clone()
	out.DedupeKeepLast()
	return out
}

// MissingStamps returns the timestamps expected between the first and
// last bar at the given step but absent from the series. When
// skipWeekends is set, Saturdays and Sundays are not expected (business
// day frequency for daily data).
func MissingStamps(s model.Series, step time.Duration, skipWeekends bool) []time.Time {
	start, end, ok := s.Range()
	if !ok || step <= 0 {
		return nil
	}
	have := make(map[int64]struct{}, len(s.Bars))
	for _, b := range s.Bars {
		have[b.Time.Unix()] = struct{}{}
	}
	var missing []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		if skipWeekends {
			if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		if _, ok := have[t.Unix()]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

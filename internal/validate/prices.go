package validate

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"MarketArchive/internal/model"
)

// Report summarizes anomalies found by AuditPrices.
type Report struct {
	NullFields     int
	NegativePrices map[string]int
	SubMinimum     int
	ExtremeMoves   []time.Time
}

// Clean reports whether the audit found nothing.
func (r Report) Clean() bool {
	return r.NullFields == 0 && len(r.NegativePrices) == 0 &&
		r.SubMinimum == 0 && len(r.ExtremeMoves) == 0
}

// NegativeTotal sums negative-price findings across fields.
func (r Report) NegativeTotal() int {
	n := 0
	for _, c := range r.NegativePrices {
		n += c
	}
	return n
}

// AuditPrices scans a series for null fields, negative or sub-minimum
// prices, and single-step close moves beyond maxChangePct percent.
// Findings are logged and reported; the series is never modified, so a
// stored series always round-trips exactly.
func AuditPrices(s model.Series, minPrice, maxChangePct float64, log zerolog.Logger) Report {
	rep := Report{NegativePrices: map[string]int{}}
	if s.Empty() {
		return rep
	}

	for _, b := range s.Bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if model.IsNull(v) {
				rep.NullFields++
			}
		}
		for field, v := range map[string]float64{
			"Open": b.Open, "High": b.High, "Low": b.Low, "Close": b.Close,
		} {
			if v < 0 && !model.IsNull(v) {
				rep.NegativePrices[field]++
			}
			if v >= 0 && v < minPrice && !model.IsNull(v) {
				rep.SubMinimum++
			}
		}
	}

	prev := math.NaN()
	for _, b := range s.Bars {
		if !model.IsNull(prev) && prev != 0 && !model.IsNull(b.Close) {
			pct := (b.Close - prev) / prev * 100
			if math.Abs(pct) > maxChangePct {
				rep.ExtremeMoves = append(rep.ExtremeMoves, b.Time)
			}
		}
		if !model.IsNull(b.Close) {
			prev = b.Close
		}
	}

	if rep.NullFields > 0 {
		log.Warn().Str("symbol", s.Symbol).Int("count", rep.NullFields).
			Msg("null values in price data")
	}
	for field, count := range rep.NegativePrices {
		log.Error().Str("symbol", s.Symbol).Str("field", field).Int("count", count).
			Msg("negative prices in data")
	}
	if rep.SubMinimum > 0 {
		log.Warn().Str("symbol", s.Symbol).Int("count", rep.SubMinimum).
			Float64("min_price", minPrice).Msg("prices below minimum")
	}
	if len(rep.ExtremeMoves) > 0 {
		stamps := make([]string, len(rep.ExtremeMoves))
		for i, t := range rep.ExtremeMoves {
			stamps[i] = t.Format("2006-01-02 15:04:05")
		}
		log.Warn().Str("symbol", s.Symbol).Float64("threshold_pct", maxChangePct).
			Strs("timestamps", stamps).Msg("extreme price changes")
	}

	return rep
}

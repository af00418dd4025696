package collector

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"MarketArchive/internal/model"
)

func nan() float64 { return math.NaN() }

// Canonical field names for normalized series columns.
const (
	colOpen     = "Open"
	colHigh     = "High"
	colLow      = "Low"
	colClose    = "Close"
	colVolume   = "Volume"
	colAdjClose = "AdjClose"
)

// columnAliases maps known provider column spellings to canonical
// fields. Lookup is case-insensitive after trimming.
var columnAliases = map[string]string{
	"open":      colOpen,
	"high":      colHigh,
	"low":       colLow,
	"close":     colClose,
	"volume":    colVolume,
	"adj close": colAdjClose,
	"adjclose":  colAdjClose,
	"adj_close": colAdjClose,
}

// Normalize maps provider columns onto the canonical schema and returns
// a sorted series with duplicate timestamps collapsed (keep-last). Rows
// whose OHLC values are all null are dropped (market holidays come back
// that way from some providers). Columns with no canonical mapping are
// dropped with a debug log.
func Normalize(raw *model.RawTable, symbol string, log zerolog.Logger) model.Series {
	s := model.Series{Symbol: strings.ToUpper(symbol)}
	if raw.Rows() == 0 {
		return s
	}

	index := map[string]int{}
	for i, name := range raw.Columns {
		canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			log.Debug().Str("symbol", symbol).Str("column", name).Msg("unrecognized column dropped")
			continue
		}
		index[canonical] = i
	}

	cell := func(row []float64, field string) float64 {
		if i, ok := index[field]; ok && i < len(row) {
			return row[i]
		}
		return nan()
	}

	_, hasAdj := index[colAdjClose]
	for i, ts := range raw.Times {
		row := raw.Cells[i]
		b := model.Bar{
			Time:   ts,
			Open:   cell(row, colOpen),
			High:   cell(row, colHigh),
			Low:    cell(row, colLow),
			Close:  cell(row, colClose),
			Volume: cell(row, colVolume),
		}
		if model.IsNull(b.Open) && model.IsNull(b.High) && model.IsNull(b.Low) && model.IsNull(b.Close) {
			continue
		}
		if hasAdj {
			if v := cell(row, colAdjClose); !model.IsNull(v) {
				b.AdjClose = &v
			}
		}
		s.Bars = append(s.Bars, b)
	}

	s.DedupeKeepLast()
	return s
}

package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"MarketArchive/internal/model"
)

// columnDoc is the on-disk layout: one msgpack document of column
// arrays, gzip-compressed. The adjclose column is present only when the
// series carries adjusted closes; NaN marks per-row holes.
type columnDoc struct {
	Symbol   string    `msgpack:"symbol"`
	Times    []int64   `msgpack:"times"`
	Open     []float64 `msgpack:"open"`
	High     []float64 `msgpack:"high"`
	Low      []float64 `msgpack:"low"`
	Close    []float64 `msgpack:"close"`
	Volume   []float64 `msgpack:"volume"`
	AdjClose []float64 `msgpack:"adjclose,omitempty"`
}

func encodeSeries(w io.Writer, s model.Series) error {
	n := s.Len()
	doc := columnDoc{
		Symbol: s.Symbol,
		Times:  make([]int64, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	if s.HasAdjClose() {
		doc.AdjClose = make([]float64, n)
	}
	for i, b := range s.Bars {
		doc.Times[i] = b.Time.Unix()
		doc.Open[i] = b.Open
		doc.High[i] = b.High
		doc.Low[i] = b.Low
		doc.Close[i] = b.Close
		doc.Volume[i] = b.Volume
		if doc.AdjClose != nil {
			doc.AdjClose[i] = math.NaN()
			if b.AdjClose != nil {
				doc.AdjClose[i] = *b.AdjClose
			}
		}
	}

	gz := gzip.NewWriter(w)
	if err := msgpack.NewEncoder(gz).Encode(&doc); err != nil {
		gz.Close()
		return fmt.Errorf("encode series: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush gzip: %w", err)
	}
	return nil
}

func decodeSeries(r io.Reader) (model.Series, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return model.Series{}, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	var doc columnDoc
	if err := msgpack.NewDecoder(gz).Decode(&doc); err != nil {
		return model.Series{}, fmt.Errorf("decode series: %w", err)
	}

	n := len(doc.Times)
	for _, col := range [][]float64{doc.Open, doc.High, doc.Low, doc.Close, doc.Volume} {
		if len(col) != n {
			return model.Series{}, fmt.Errorf("decode series: column length mismatch")
		}
	}

	s := model.Series{Symbol: doc.Symbol, Bars: make([]model.Bar, n)}
	for i := 0; i < n; i++ {
		b := model.Bar{
			Time:   time.Unix(doc.Times[i], 0).UTC(),
			Open:   doc.Open[i],
			High:   doc.High[i],
			Low:    doc.Low[i],
			Close:  doc.Close[i],
			Volume: doc.Volume[i],
		}
		if len(doc.AdjClose) == n && !math.IsNaN(doc.AdjClose[i]) {
			v := doc.AdjClose[i]
			b.AdjClose = &v
		}
		s.Bars[i] = b
	}
	return s, nil
}

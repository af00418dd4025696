package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketArchive/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, filepath.Join(dir, "exports"), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func stamp(d int) time.Time {
	return time.Date(2023, 5, d, 0, 0, 0, 0, time.UTC)
}

func testSeries(symbol string, days ...int) model.Series {
	s := model.Series{Symbol: symbol}
	for _, d := range days {
		adj := float64(d) * 0.99
		s.Bars = append(s.Bars, model.Bar{
			Time: stamp(d), Open: float64(d), High: float64(d) + 1,
			Low: float64(d) - 1, Close: float64(d), Volume: float64(d) * 100,
			AdjClose: &adj,
		})
	}
	return s
}

func TestSaveLoadDaily_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	orig := testSeries("AAPL", 1, 2, 3)

	require.NoError(t, st.SaveDaily("AAPL", orig, false))

	got, ok, err := st.LoadDaily("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orig, got)
}

func TestSaveLoadIntraday_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	orig := model.Series{Symbol: "MSFT", Bars: []model.Bar{
		{Time: time.Date(2023, 5, 1, 9, 30, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: time.Date(2023, 5, 1, 10, 30, 0, 0, time.UTC), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}}

	require.NoError(t, st.SaveIntraday("MSFT", "1h", orig, false))

	got, ok, err := st.LoadIntraday("MSFT", "1h", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orig, got)
}

func TestLoad_MissingFile(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.LoadDaily("NOPE", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_InclusiveDateFilter(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1, 2, 3, 4, 5), false))

	got, ok, err := st.LoadDaily("AAPL", stamp(2), stamp(4))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, stamp(2), got.Bars[0].Time, "record at start bound retained")
	assert.Equal(t, stamp(4), got.Bars[2].Time, "record at end bound retained")
}

func TestSave_EmptySeriesNoop(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", model.Series{Symbol: "AAPL"}, true))

	_, ok, err := st.LoadDaily("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, ok, "empty save must not create a file")
}

func TestSave_MergeOnSave(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1, 2), false))

	incoming := testSeries("AAPL", 2, 3)
	incoming.Bars[0].Close = 999 // collides with stored day 2
	require.NoError(t, st.SaveDaily("AAPL", incoming, true))

	got, ok, err := st.LoadDaily("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, 999.0, got.Bars[1].Close, "incoming wins on collision")
}

func TestSave_OverwriteWithoutMerge(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1, 2, 3), false))
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 4), false))

	got, _, err := st.LoadDaily("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, stamp(4), got.Bars[0].Time)
}

func TestListSymbols(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("MSFT", testSeries("MSFT", 1), false))
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1), false))
	require.NoError(t, st.SaveIntraday("TSLA", "1h", testSeries("TSLA", 1), false))
	require.NoError(t, st.SaveIntraday("TSLA", "30m", testSeries("TSLA", 1), false))

	daily, err := st.ListSymbols(model.Daily)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, daily)

	intraday, err := st.ListSymbols(model.Intraday)
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA"}, intraday, "interval variants deduplicate")
}

func TestDateRange(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 3, 1, 2), false))

	first, last, ok, err := st.DateRange(model.Daily, "AAPL", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stamp(1), first)
	assert.Equal(t, stamp(3), last)

	_, _, ok, err = st.DateRange(model.Daily, "NOPE", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_Daily(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1), false))

	removed, err := st.Delete(model.Daily, "AAPL")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = st.Delete(model.Daily, "AAPL")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDelete_IntradayAllIntervals(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveIntraday("TSLA", "1h", testSeries("TSLA", 1), false))
	require.NoError(t, st.SaveIntraday("TSLA", "30m", testSeries("TSLA", 1), false))

	removed, err := st.Delete(model.Intraday, "TSLA")
	require.NoError(t, err)
	assert.True(t, removed)

	symbols, err := st.ListSymbols(model.Intraday)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestExportCSV(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1, 2), false))

	path, ok, err := st.ExportCSV(model.Daily, "AAPL", "", "")
	require.NoError(t, err)
	require.True(t, ok)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Open", "High", "Low", "Close", "Volume", "AdjClose", "Symbol"}, rows[0])
	assert.Equal(t, "2023-05-01", rows[1][0])
	assert.Equal(t, "AAPL", rows[1][7])
}

func TestExportCSV_NoData(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.ExportCSV(model.Daily, "NOPE", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSize(t *testing.T) {
	st := newTestStore(t)

	size, err := st.Size(model.Daily)
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1, 2, 3), false))
	size, err = st.Size(model.Daily)
	require.NoError(t, err)
	assert.Positive(t, size)

	intradaySize, err := st.Size(model.Intraday)
	require.NoError(t, err)
	assert.Zero(t, intradaySize, "granularities account separately")
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveDaily("AAPL", testSeries("AAPL", 1), false))

	matches, err := filepath.Glob(filepath.Join(st.dailyDir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
)

// fakeProvider serves canned tables per symbol and can fail a number of
// initial attempts.
type fakeProvider struct {
	tables   map[string]*model.RawTable
	failures int
	calls    int
}

func (f *fakeProvider) fetch(symbol string) (*model.RawTable, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	t, ok := f.tables[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return t, nil
}

func (f *fakeProvider) FetchRange(_ context.Context, symbol string, _, _ time.Time, _ string) (*model.RawTable, error) {
	return f.fetch(symbol)
}

func (f *fakeProvider) FetchPeriod(_ context.Context, symbol, _, _ string) (*model.RawTable, error) {
	return f.fetch(symbol)
}

func (f *fakeProvider) Name() string { return "fake" }

// memRecorder captures audit events for assertions.
type memRecorder struct {
	fetches   []recorder.FetchEvent
	anomalies []recorder.AnomalyEvent
	runs      []recorder.RunSummary
}

func (m *memRecorder) RecordFetch(e *recorder.FetchEvent) error {
	m.fetches = append(m.fetches, *e)
	return nil
}

func (m *memRecorder) RecordAnomalies(e *recorder.AnomalyEvent) error {
	m.anomalies = append(m.anomalies, *e)
	return nil
}

func (m *memRecorder) RecordRun(s *recorder.RunSummary) error {
	m.runs = append(m.runs, *s)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func table(closes ...float64) *model.RawTable {
	t := &model.RawTable{Columns: []string{"open", "high", "low", "close", "volume"}}
	for i, c := range closes {
		t.Times = append(t.Times, time.Date(2023, 1, 1+i, 0, 0, 0, 0, time.UTC))
		t.Cells = append(t.Cells, []float64{c, c, c, c, 1000})
	}
	return t
}

func newTestDownloader(p Provider, rec recorder.Recorder) (*Downloader, *[]time.Duration) {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	d := NewDownloader(p, rec, Options{MaxRetries: 3, RetryDelay: 5 * time.Second}, zerolog.Nop())
	delays := &[]time.Duration{}
	d.sleep = func(_ context.Context, dur time.Duration) error {
		*delays = append(*delays, dur)
		return nil
	}
	return d, delays
}

func TestDownloadDaily_Success(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": table(100, 101, 102)}}
	d, _ := newTestDownloader(p, nil)

	results, err := d.DownloadDaily(context.Background(), []string{"aapl"}, "", "")
	require.NoError(t, err)
	require.Contains(t, results, "AAPL")
	assert.Equal(t, 3, results["AAPL"].Len())
}

func TestDownloadDaily_RetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{
		tables:   map[string]*model.RawTable{"AAPL": table(100)},
		failures: 2,
	}
	d, delays := newTestDownloader(p, nil)

	results, err := d.DownloadDaily(context.Background(), []string{"AAPL"}, "", "")
	require.NoError(t, err)
	assert.Contains(t, results, "AAPL")
	assert.Equal(t, 3, p.calls)
	require.Len(t, *delays, 2)
	for _, dur := range *delays {
		assert.Equal(t, 5*time.Second, dur)
	}
}

func TestDownloadDaily_RetriesExhausted(t *testing.T) {
	p := &fakeProvider{
		tables:   map[string]*model.RawTable{"AAPL": table(100)},
		failures: 10,
	}
	rec := &memRecorder{}
	d, delays := newTestDownloader(p, rec)

	results, err := d.DownloadDaily(context.Background(), []string{"AAPL"}, "", "")
	require.NoError(t, err, "per-symbol failure must not fail the batch")
	assert.NotContains(t, results, "AAPL")
	assert.Equal(t, 3, p.calls)
	assert.Len(t, *delays, 2)
	require.Len(t, rec.fetches, 1)
	assert.NotEmpty(t, rec.fetches[0].Err)
}

func TestDownloadDaily_EmptyResultIsTerminal(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": {}}}
	d, delays := newTestDownloader(p, nil)

	results, err := d.DownloadDaily(context.Background(), []string{"AAPL"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, p.calls, "empty responses are not retried")
	assert.Empty(t, *delays)
}

func TestDownloadDaily_InvalidSymbolSkipped(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": table(100)}}
	rec := &memRecorder{}
	d, _ := newTestDownloader(p, rec)

	results, err := d.DownloadDaily(context.Background(), []string{"AAPL", "NOTATICKER"}, "", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Contains(t, results, "AAPL")
}

func TestDownloadDaily_AllInvalid(t *testing.T) {
	p := &fakeProvider{}
	d, _ := newTestDownloader(p, nil)

	_, err := d.DownloadDaily(context.Background(), []string{"NOTATICKER", "123"}, "", "")
	assert.ErrorIs(t, err, ErrNoValidSymbols)
	assert.Zero(t, p.calls)
}

func TestDownloadDaily_EmptySymbolList(t *testing.T) {
	d, _ := newTestDownloader(&fakeProvider{}, nil)
	_, err := d.DownloadDaily(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, ErrNoValidSymbols)
}

func TestDownloadDaily_BadDatesFatal(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": table(100)}}
	d, _ := newTestDownloader(p, nil)

	_, err := d.DownloadDaily(context.Background(), []string{"AAPL"}, "2023-06-01", "2023-01-01")
	assert.Error(t, err)
	assert.Zero(t, p.calls)
}

func TestDownloadDaily_RecordsAnomalies(t *testing.T) {
	raw := table(100, 300) // +200% move
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": raw}}
	rec := &memRecorder{}
	d, _ := newTestDownloader(p, rec)

	_, err := d.DownloadDaily(context.Background(), []string{"AAPL"}, "", "")
	require.NoError(t, err)
	require.Len(t, rec.anomalies, 1)
	assert.Equal(t, 1, rec.anomalies[0].ExtremeMoves)
}

func TestDownloadIntraday_Success(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"MSFT": table(310, 311)}}
	rec := &memRecorder{}
	d, _ := newTestDownloader(p, rec)

	results, err := d.DownloadIntraday(context.Background(), []string{"MSFT"}, "730d", "1h")
	require.NoError(t, err)
	require.Contains(t, results, "MSFT")
	require.Len(t, rec.fetches, 1)
	assert.Equal(t, "intraday", rec.fetches[0].Kind)
	assert.Equal(t, "1h", rec.fetches[0].Interval)
}

func TestDownloadIntraday_AllInvalid(t *testing.T) {
	d, _ := newTestDownloader(&fakeProvider{}, nil)
	_, err := d.DownloadIntraday(context.Background(), []string{"bad ticker"}, "730d", "1h")
	assert.ErrorIs(t, err, ErrNoValidSymbols)
}

func TestDownloadDaily_ContextCancelled(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": table(100)}}
	d, _ := newTestDownloader(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := d.DownloadDaily(ctx, []string{"AAPL"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, p.calls)
}

func TestLatestPrice(t *testing.T) {
	p := &fakeProvider{tables: map[string]*model.RawTable{"AAPL": table(100, 105, 110)}}
	d, _ := newTestDownloader(p, nil)

	price, err := d.LatestPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)
}

func TestLatestPrice_InvalidSymbol(t *testing.T) {
	d, _ := newTestDownloader(&fakeProvider{}, nil)
	_, err := d.LatestPrice(context.Background(), "not a ticker")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

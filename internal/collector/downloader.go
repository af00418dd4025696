package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/validate"
)

var (
	// ErrNoValidSymbols means every symbol in a batch request failed
	// ticker validation.
	ErrNoValidSymbols = errors.New("no valid symbols to download")
	// ErrInvalidSymbol marks a single-symbol call with a malformed ticker.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// errEmptyResult is terminal within a retry chain: a provider that
	// answers with nothing is not retried.
	errEmptyResult = errors.New("no data returned")
)

// Options tunes the Downloader. Zero values fall back to defaults
// matching the configuration surface (3 retries, 5s delay, 0.01 min
// price, 50% move threshold).
type Options struct {
	MaxRetries   int
	RetryDelay   time.Duration
	MinPrice     float64
	MaxChangePct float64
}

// Downloader turns provider responses into validated canonical series,
// one symbol at a time. Batch calls are best-effort: a symbol that
// fails after retries is logged, recorded, and omitted from the result
// mapping, never raised to the caller.
type Downloader struct {
	provider Provider
	rec      recorder.Recorder
	log      zerolog.Logger

	maxRetries   int
	retryDelay   time.Duration
	minPrice     float64
	maxChangePct float64

	// sleep is swappable in tests to observe inter-attempt delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDownloader creates a Downloader over the given provider. rec may
// be a NoopRecorder.
func NewDownloader(p Provider, rec recorder.Recorder, opts Options, log zerolog.Logger) *Downloader {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.MinPrice <= 0 {
		opts.MinPrice = 0.01
	}
	if opts.MaxChangePct <= 0 {
		opts.MaxChangePct = 50
	}
	return &Downloader{
		provider:     p,
		rec:          rec,
		log:          log.With().Str("component", "downloader").Str("source", p.Name()).Logger(),
		maxRetries:   opts.MaxRetries,
		retryDelay:   opts.RetryDelay,
		minPrice:     opts.MinPrice,
		maxChangePct: opts.MaxChangePct,
		sleep:        waitFor,
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// DownloadDaily fetches daily bars for each valid symbol between
// startDate and endDate (YYYY-MM-DD, either may be empty for an open
// bound). Invalid symbols are skipped with a warning; bad dates or an
// all-invalid symbol list are fatal to the call.
func (d *Downloader) DownloadDaily(ctx context.Context, symbols []string, startDate, endDate string) (map[string]model.Series, error) {
	valid, err := d.screenSymbols(symbols)
	if err != nil {
		return nil, err
	}

	start, end, err := validate.DateRange(startDate, endDate, d.log)
	if err != nil {
		return nil, err
	}

	d.log.Info().Int("symbols", len(valid)).
		Str("start", orMax(startDate)).Str("end", orToday(endDate)).
		Msg("downloading daily data")

	results := make(map[string]model.Series, len(valid))
	for _, sym := range valid {
		if ctx.Err() != nil {
			break
		}
		s, ok := d.fetchOne(ctx, sym, string(model.Daily), "1d", func(c context.Context) (*model.RawTable, error) {
			return d.provider.FetchRange(c, sym, start, end, "1d")
		})
		if ok {
			results[sym] = s
		}
	}

	d.log.Info().Int("succeeded", len(results)).Int("requested", len(valid)).
		Msg("download complete")
	return results, nil
}

// DownloadIntraday fetches sub-daily bars over a relative lookback
// period (e.g. "730d") at the given interval. Contract matches
// DownloadDaily. Hourly-or-coarser intervals with a period beyond the
// upstream retention emit a warning; the provider returns what it has.
func (d *Downloader) DownloadIntraday(ctx context.Context, symbols []string, period, interval string) (map[string]model.Series, error) {
	valid, err := d.screenSymbols(symbols)
	if err != nil {
		return nil, err
	}

	d.log.Info().Int("symbols", len(valid)).
		Str("period", period).Str("interval", interval).
		Msg("downloading intraday data")

	if days, ok := periodDays(period); ok && hourlyOrCoarser(interval) && days > intradayRetentionDays {
		d.log.Warn().Str("period", period).Str("interval", interval).
			Int("retention_days", intradayRetentionDays).
			Msg("period exceeds upstream retention for this interval, results may be truncated")
	}

	results := make(map[string]model.Series, len(valid))
	for _, sym := range valid {
		if ctx.Err() != nil {
			break
		}
		s, ok := d.fetchOne(ctx, sym, string(model.Intraday), interval, func(c context.Context) (*model.RawTable, error) {
			return d.provider.FetchPeriod(c, sym, period, interval)
		})
		if ok {
			results[sym] = s
		}
	}

	d.log.Info().Int("succeeded", len(results)).Int("requested", len(valid)).
		Msg("download complete")
	return results, nil
}

// LatestPrice returns the most recent close for a symbol.
func (d *Downloader) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if !validate.Symbol(symbol) {
		return 0, fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	sym := strings.ToUpper(symbol)
	raw, err := d.fetchWithRetry(ctx, func(c context.Context) (*model.RawTable, error) {
		return d.provider.FetchPeriod(c, sym, "1d", "1d")
	})
	if err != nil {
		return 0, fmt.Errorf("latest price for %s: %w", sym, err)
	}
	s := Normalize(raw, sym, d.log)
	if s.Empty() {
		return 0, fmt.Errorf("latest price for %s: %w", sym, errEmptyResult)
	}
	return s.Bars[len(s.Bars)-1].Close, nil
}

// screenSymbols uppercases and filters the request, warning about
// rejects. All-invalid input is fatal.
func (d *Downloader) screenSymbols(symbols []string) ([]string, error) {
	var valid, invalid []string
	for _, s := range symbols {
		up := strings.ToUpper(strings.TrimSpace(s))
		if up == "" {
			continue
		}
		if validate.Symbol(up) {
			valid = append(valid, up)
		} else {
			invalid = append(invalid, up)
		}
	}
	if len(invalid) > 0 {
		d.log.Warn().Strs("symbols", invalid).Msg("invalid symbols will be skipped")
	}
	if len(valid) == 0 {
		return nil, ErrNoValidSymbols
	}
	return valid, nil
}

// fetchOne runs the retry chain, normalization, and the price audit for
// a single symbol. Failures are logged and recorded; ok=false omits the
// symbol from the batch result.
func (d *Downloader) fetchOne(ctx context.Context, sym, kind, interval string, fetch func(context.Context) (*model.RawTable, error)) (model.Series, bool) {
	evt := &recorder.FetchEvent{Symbol: sym, Source: d.provider.Name(), Kind: kind, Interval: interval}

	raw, err := d.fetchWithRetry(ctx, fetch)
	if err != nil {
		d.log.Error().Str("symbol", sym).Err(err).Msg("download failed")
		evt.Err = err.Error()
		d.record(evt)
		return model.Series{}, false
	}

	s := Normalize(raw, sym, d.log)
	if s.Empty() {
		d.log.Warn().Str("symbol", sym).Msg("no usable rows after normalization")
		evt.Err = errEmptyResult.Error()
		d.record(evt)
		return model.Series{}, false
	}

	rep := validate.AuditPrices(s, d.minPrice, d.maxChangePct, d.log)
	if !rep.Clean() {
		if err := d.rec.RecordAnomalies(&recorder.AnomalyEvent{
			Symbol:         sym,
			Kind:           kind,
			NullFields:     rep.NullFields,
			NegativePrices: rep.NegativeTotal(),
			SubMinimum:     rep.SubMinimum,
			ExtremeMoves:   len(rep.ExtremeMoves),
		}); err != nil {
			d.log.Error().Err(err).Msg("record anomalies")
		}
	}

	evt.Records = s.Len()
	d.record(evt)
	d.log.Info().Str("symbol", sym).Int("records", s.Len()).Msg("downloaded")
	return s, true
}

// fetchWithRetry attempts a fetch up to maxRetries times with a fixed
// delay between attempts. An empty-but-successful response is terminal:
// the provider has nothing for this query and asking again will not
// change that.
func (d *Downloader) fetchWithRetry(ctx context.Context, fetch func(context.Context) (*model.RawTable, error)) (*model.RawTable, error) {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		raw, err := fetch(ctx)
		if err == nil {
			if raw.Rows() == 0 {
				return nil, errEmptyResult
			}
			return raw, nil
		}
		lastErr = err
		if attempt < d.maxRetries {
			d.log.Warn().Int("attempt", attempt).Int("max", d.maxRetries).Err(err).
				Dur("delay", d.retryDelay).Msg("fetch failed, retrying")
			if werr := d.sleep(ctx, d.retryDelay); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", d.maxRetries, lastErr)
}

func (d *Downloader) record(evt *recorder.FetchEvent) {
	if err := d.rec.RecordFetch(evt); err != nil {
		d.log.Error().Err(err).Msg("record fetch event")
	}
}

func orMax(s string) string {
	if s == "" {
		return "max available"
	}
	return s
}

func orToday(s string) string {
	if s == "" {
		return "today"
	}
	return s
}

// Package scheduler drives the periodic update workflow: refresh every
// stored symbol from its last stored date on a cron cadence.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"MarketArchive/internal/collector"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// For intraday updates a short overlapping period is refetched and
// merged; the merge keeps the incoming side on overlap.
const intradayUpdatePeriod = "5d"

// Scheduler manages the cron-driven update tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Downloader *collector.Downloader
	Store      *store.Store
	Recorder   recorder.Recorder
	Interval   string // intraday interval used by scheduled updates
	Ctx        context.Context

	log zerolog.Logger
}

// New creates a Scheduler. interval is the intraday granularity the
// scheduled update job refreshes.
func New(ctx context.Context, dl *collector.Downloader, st *store.Store, rec recorder.Recorder, interval string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Downloader: dl,
		Store:      st,
		Recorder:   rec,
		Interval:   interval,
		Ctx:        ctx,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the daily and intraday update tasks.
func (s *Scheduler) RegisterAll(dailyCron, intradayCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, func() { s.UpdateDaily(nil) }); err != nil {
		return fmt.Errorf("register daily update: %w", err)
	}
	if _, err := s.Cron.AddFunc(intradayCron, func() { s.UpdateIntraday(nil, s.Interval) }); err != nil {
		return fmt.Errorf("register intraday update: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// UpdateDaily refreshes stored daily data from each symbol's last
// stored date through today. A nil symbol list means every symbol with
// stored daily data. Returns (updated, failed) counts; per-symbol
// failures never abort the run.
func (s *Scheduler) UpdateDaily(symbols []string) (updated, failed int) {
	start := time.Now()
	symbols = s.targets(model.Daily, symbols)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, sym := range symbols {
		_, last, ok, err := s.Store.DateRange(model.Daily, sym, "")
		if err != nil {
			s.log.Error().Str("symbol", sym).Err(err).Msg("read stored range")
			failed++
			continue
		}
		if !ok {
			s.log.Warn().Str("symbol", sym).Msg("no existing daily data, skipping")
			continue
		}
		if !last.Before(today) {
			s.log.Info().Str("symbol", sym).Msg("already up to date")
			continue
		}

		results, err := s.Downloader.DownloadDaily(s.Ctx, []string{sym}, last.Format("2006-01-02"), "")
		if err != nil {
			s.log.Error().Str("symbol", sym).Err(err).Msg("update fetch failed")
			failed++
			continue
		}
		sr, ok := results[sym]
		if !ok {
			failed++
			continue
		}
		if err := s.Store.SaveDaily(sym, sr, true); err != nil {
			s.log.Error().Str("symbol", sym).Err(err).Msg("save updated series")
			failed++
			continue
		}
		updated++
	}

	s.finishRun("daily-update", len(symbols), updated, time.Since(start))
	return updated, failed
}

// UpdateIntraday refreshes stored intraday data by refetching a short
// overlapping period and merging. Contract matches UpdateDaily.
func (s *Scheduler) UpdateIntraday(symbols []string, interval string) (updated, failed int) {
	start := time.Now()
	symbols = s.targets(model.Intraday, symbols)

	for _, sym := range symbols {
		results, err := s.Downloader.DownloadIntraday(s.Ctx, []string{sym}, intradayUpdatePeriod, interval)
		if err != nil {
			s.log.Error().Str("symbol", sym).Err(err).Msg("update fetch failed")
			failed++
			continue
		}
		sr, ok := results[sym]
		if !ok {
			failed++
			continue
		}
		if err := s.Store.SaveIntraday(sym, interval, sr, true); err != nil {
			s.log.Error().Str("symbol", sym).Err(err).Msg("save updated series")
			failed++
			continue
		}
		updated++
	}

	s.finishRun("intraday-update", len(symbols), updated, time.Since(start))
	return updated, failed
}

func (s *Scheduler) targets(kind model.Kind, symbols []string) []string {
	if len(symbols) > 0 {
		return symbols
	}
	stored, err := s.Store.ListSymbols(kind)
	if err != nil {
		s.log.Error().Err(err).Msg("list stored symbols")
		return nil
	}
	if len(stored) == 0 {
		s.log.Warn().Str("kind", string(kind)).Msg("no stored data to update")
	}
	return stored
}

func (s *Scheduler) finishRun(kind string, requested, succeeded int, dur time.Duration) {
	s.log.Info().Str("kind", kind).Int("requested", requested).
		Int("succeeded", succeeded).Dur("duration", dur).Msg("update run complete")
	if err := s.Recorder.RecordRun(&recorder.RunSummary{
		Kind:      kind,
		Requested: requested,
		Succeeded: succeeded,
		Duration:  dur,
	}); err != nil {
		s.log.Error().Err(err).Msg("record run summary")
	}
}

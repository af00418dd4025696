package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"MarketArchive/internal/collector"
	"MarketArchive/internal/config"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/scheduler"
	"MarketArchive/internal/series"
	"MarketArchive/internal/store"
)

func main() {
	var (
		cfgPath  = flag.String("config", "configs/config.yaml", "path to YAML config")
		mode     = flag.String("mode", "download", "download | intraday | update | list | info | export | delete | latest | serve")
		symbols  = flag.String("symbols", "", "comma-separated ticker symbols (default: config symbols)")
		start    = flag.String("start", "", "start date YYYY-MM-DD (download mode)")
		end      = flag.String("end", "", "end date YYYY-MM-DD (download mode)")
		period   = flag.String("period", "", "lookback period for intraday, e.g. 730d")
		interval = flag.String("interval", "", "intraday interval, e.g. 1h, 30m")
		dataType = flag.String("type", "daily", "daily | intraday (update/list/info/export/delete modes)")
		outDir   = flag.String("out", "", "output directory for CSV export")
	)
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && *cfgPath == "configs/config.yaml" {
		*cfgPath = v
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info().Str("mode", *mode).Msg("MarketArchive starting")

	st, err := store.New(cfg.Data.Dir, cfg.Data.ExportDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init store")
	}

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	var provider collector.Provider
	if cfg.Provider.Name == "stooq" {
		provider = collector.NewStooqProvider(cfg.Provider.BaseURL, cfg.Proxy, cfg.Timeout())
	} else {
		provider = collector.NewYahooProvider(cfg.Proxy, cfg.Timeout())
	}
	logger.Info().Str("source", provider.Name()).Msg("data source selected")

	dl := collector.NewDownloader(provider, rec, collector.Options{
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryDelay:   cfg.RetryDelay(),
		MinPrice:     cfg.Fetch.MinPrice,
		MaxChangePct: cfg.Fetch.MaxPriceChangePct,
	}, logger)

	syms := cfg.Symbols
	if *symbols != "" {
		syms = splitList(*symbols)
	}
	if *interval == "" {
		*interval = cfg.Fetch.DefaultInterval
	}
	if *period == "" {
		*period = cfg.Fetch.DefaultPeriod
	}
	kind := model.Kind(*dataType)
	if !kind.Valid() {
		logger.Fatal().Str("type", *dataType).Msg("unknown data type, use daily or intraday")
	}

	ctx := context.Background()

	switch *mode {
	case "download":
		if *start == "" {
			*start = cfg.Fetch.DefaultStartDate
		}
		runDownload(ctx, dl, st, rec, syms, *start, *end, logger)
	case "intraday":
		runIntraday(ctx, dl, st, rec, syms, *period, *interval, logger)
	case "update":
		sched := scheduler.New(ctx, dl, st, rec, *interval, logger)
		var explicit []string
		if *symbols != "" {
			explicit = syms
		}
		var updated, failed int
		if kind == model.Daily {
			updated, failed = sched.UpdateDaily(explicit)
		} else {
			updated, failed = sched.UpdateIntraday(explicit, *interval)
		}
		logger.Info().Int("updated", updated).Int("failed", failed).Msg("update finished")
	case "list":
		runList(st, kind, *interval, logger)
	case "info":
		runInfo(st, kind, syms, *interval, logger)
	case "export":
		for _, sym := range syms {
			path, ok, err := st.ExportCSV(kind, sym, *interval, *outDir)
			if err != nil {
				logger.Error().Str("symbol", sym).Err(err).Msg("export failed")
			} else if ok {
				fmt.Println(path)
			}
		}
	case "delete":
		for _, sym := range syms {
			removed, err := st.Delete(kind, sym)
			if err != nil {
				logger.Error().Str("symbol", sym).Err(err).Msg("delete failed")
			} else if !removed {
				logger.Warn().Str("symbol", sym).Msg("nothing to delete")
			}
		}
	case "latest":
		for _, sym := range syms {
			price, err := dl.LatestPrice(ctx, sym)
			if err != nil {
				logger.Error().Str("symbol", sym).Err(err).Msg("latest price failed")
				continue
			}
			fmt.Printf("%s\t%.4f\n", strings.ToUpper(sym), price)
		}
	case "serve":
		runServe(ctx, dl, st, rec, cfg, *interval, logger)
	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func runDownload(ctx context.Context, dl *collector.Downloader, st *store.Store, rec recorder.Recorder, syms []string, start, end string, logger zerolog.Logger) {
	began := time.Now()
	results, err := dl.DownloadDaily(ctx, syms, start, end)
	if err != nil {
		logger.Fatal().Err(err).Msg("download failed")
	}
	saved := 0
	for sym, sr := range results {
		if err := st.SaveDaily(sym, sr, true); err != nil {
			logger.Error().Str("symbol", sym).Err(err).Msg("save failed")
			continue
		}
		saved++
	}
	recordRun(rec, "daily", len(syms), saved, time.Since(began), logger)
}

func runIntraday(ctx context.Context, dl *collector.Downloader, st *store.Store, rec recorder.Recorder, syms []string, period, interval string, logger zerolog.Logger) {
	began := time.Now()
	results, err := dl.DownloadIntraday(ctx, syms, period, interval)
	if err != nil {
		logger.Fatal().Err(err).Msg("download failed")
	}
	saved := 0
	for sym, sr := range results {
		if err := st.SaveIntraday(sym, interval, sr, true); err != nil {
			logger.Error().Str("symbol", sym).Err(err).Msg("save failed")
			continue
		}
		saved++
	}
	recordRun(rec, "intraday", len(syms), saved, time.Since(began), logger)
}

func runList(st *store.Store, kind model.Kind, interval string, logger zerolog.Logger) {
	stored, err := st.ListSymbols(kind)
	if err != nil {
		logger.Fatal().Err(err).Msg("list symbols")
	}
	for _, sym := range stored {
		first, last, ok, err := st.DateRange(kind, sym, interval)
		if err != nil || !ok {
			fmt.Printf("%s\t(no data)\n", sym)
			continue
		}
		fmt.Printf("%s\t%s to %s\n", sym, first.Format("2006-01-02"), last.Format("2006-01-02"))
	}
	size, err := st.Size(kind)
	if err == nil {
		fmt.Printf("total: %d symbols, %.2f MB\n", len(stored), float64(size)/(1024*1024))
	}
}

func runInfo(st *store.Store, kind model.Kind, syms []string, interval string, logger zerolog.Logger) {
	for _, sym := range syms {
		var (
			sr  model.Series
			ok  bool
			err error
		)
		if kind == model.Daily {
			sr, ok, err = st.LoadDaily(sym, time.Time{}, time.Time{})
		} else {
			sr, ok, err = st.LoadIntraday(sym, interval, time.Time{}, time.Time{})
		}
		if err != nil {
			logger.Error().Str("symbol", sym).Err(err).Msg("load failed")
			continue
		}
		if !ok {
			fmt.Printf("%s: no stored data\n", strings.ToUpper(sym))
			continue
		}
		step := 24 * time.Hour
		skipWeekends := true
		if kind == model.Intraday {
			step = time.Hour
			skipWeekends = false
		}
		missing := series.MissingStamps(sr, step, skipWeekends)
		fmt.Printf("%s: %s, %d gaps\n", sr.Symbol, sr.RangeString(), len(missing))
	}
}

func runServe(ctx context.Context, dl *collector.Downloader, st *store.Store, rec recorder.Recorder, cfg *config.Config, interval string, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(ctx, dl, st, rec, interval, logger)
	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.IntradayCron); err != nil {
		logger.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info().Msg("RUN_ON_START enabled, executing daily update now")
		go sched.UpdateDaily(nil)
	}

	logger.Info().Msg("MarketArchive is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received, stopping")
	cancel()
	logger.Info().Msg("MarketArchive stopped")
}

func recordRun(rec recorder.Recorder, kind string, requested, succeeded int, dur time.Duration, logger zerolog.Logger) {
	logger.Info().Str("kind", kind).Int("requested", requested).
		Int("succeeded", succeeded).Dur("duration", dur).Msg("run complete")
	if err := rec.RecordRun(&recorder.RunSummary{
		Kind: kind, Requested: requested, Succeeded: succeeded, Duration: dur,
	}); err != nil {
		logger.Error().Err(err).Msg("record run summary")
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Package store owns the on-disk representation of downloaded series:
// one columnar file per symbol for daily data, one per (symbol,
// interval) for intraday. Nothing outside this package touches the
// layout.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"MarketArchive/internal/model"
	"MarketArchive/internal/series"
)

const fileExt = ".mpk.gz"

// Store persists per-symbol time series under a base data directory.
type Store struct {
	dailyDir    string
	intradayDir string
	exportDir   string
	log         zerolog.Logger
}

// New creates a Store rooted at dataDir, creating the granularity
// directories if needed.
func New(dataDir, exportDir string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		dailyDir:    filepath.Join(dataDir, "daily"),
		intradayDir: filepath.Join(dataDir, "intraday"),
		exportDir:   exportDir,
		log:         log.With().Str("component", "store").Logger(),
	}
	for _, dir := range []string{s.dailyDir, s.intradayDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return s, nil
}

// pathFor is the single key→path mapping: daily series live at
// daily/SYMBOL.mpk.gz, intraday at intraday/SYMBOL_INTERVAL.mpk.gz.
func (s *Store) pathFor(kind model.Kind, symbol, interval string) string {
	symbol = strings.ToUpper(symbol)
	if kind == model.Daily {
		return filepath.Join(s.dailyDir, symbol+fileExt)
	}
	return filepath.Join(s.intradayDir, symbol+"_"+interval+fileExt)
}

func (s *Store) dirFor(kind model.Kind) string {
	if kind == model.Daily {
		return s.dailyDir
	}
	return s.intradayDir
}

// SaveDaily persists a daily series. With merge set, prior data for the
// symbol is loaded and merged (incoming wins on duplicate timestamps)
// before the whole file is replaced. Saving an empty series is a no-op
// with a warning.
func (s *Store) SaveDaily(symbol string, sr model.Series, merge bool) error {
	return s.save(model.Daily, symbol, "", sr, merge)
}

// SaveIntraday persists an intraday series under (symbol, interval).
func (s *Store) SaveIntraday(symbol, interval string, sr model.Series, merge bool) error {
	return s.save(model.Intraday, symbol, interval, sr, merge)
}

func (s *Store) save(kind model.Kind, symbol, interval string, sr model.Series, merge bool) error {
	if sr.Empty() {
		s.log.Warn().Str("symbol", symbol).Msg("cannot save empty series")
		return nil
	}
	path := s.pathFor(kind, symbol, interval)

	if merge {
		if existing, ok, err := s.load(path, time.Time{}, time.Time{}); err != nil {
			return fmt.Errorf("load existing for merge: %w", err)
		} else if ok {
			sr = series.Merge(existing, sr)
			s.log.Info().Str("symbol", symbol).Msg("merged with existing data")
		}
	}

	// Whole-file replace via temp file and rename, so readers never see
	// a partially written file.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := encodeSeries(f, sr); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}

	s.log.Info().Str("symbol", symbol).Str("path", path).
		Str("range", sr.RangeString()).Msg("saved series")
	return nil
}

// LoadDaily reads a daily series, optionally restricted to
// [start, end] inclusive (zero times leave a bound open). ok is false
// when no file exists for the symbol.
func (s *Store) LoadDaily(symbol string, start, end time.Time) (model.Series, bool, error) {
	return s.load(s.pathFor(model.Daily, symbol, ""), start, end)
}

// LoadIntraday reads an intraday series for (symbol, interval).
func (s *Store) LoadIntraday(symbol, interval string, start, end time.Time) (model.Series, bool, error) {
	return s.load(s.pathFor(model.Intraday, symbol, interval), start, end)
}

func (s *Store) load(path string, start, end time.Time) (model.Series, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return model.Series{}, false, nil
	}
	if err != nil {
		return model.Series{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sr, err := decodeSeries(f)
	if err != nil {
		return model.Series{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	if !start.IsZero() || !end.IsZero() {
		sr = sr.Filter(start, end)
	}
	return sr, true, nil
}

// ListSymbols enumerates symbols with stored data for a granularity,
// deduplicated (intraday may hold several intervals per symbol) and
// sorted.
func (s *Store) ListSymbols(kind model.Kind) ([]string, error) {
	entries, err := os.ReadDir(s.dirFor(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s dir: %w", kind, err)
	}
	seen := map[string]struct{}{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		stem := strings.TrimSuffix(name, fileExt)
		if kind == model.Intraday {
			if i := strings.LastIndex(stem, "_"); i > 0 {
				stem = stem[:i]
			}
		}
		seen[stem] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// DateRange returns the key bounds of a stored series. ok is false when
// there is no data. interval is ignored for daily.
func (s *Store) DateRange(kind model.Kind, symbol, interval string) (time.Time, time.Time, bool, error) {
	sr, ok, err := s.load(s.pathFor(kind, symbol, interval), time.Time{}, time.Time{})
	if err != nil || !ok {
		return time.Time{}, time.Time{}, false, err
	}
	start, end, ok := sr.Range()
	return start, end, ok, nil
}

// Delete removes the backing file for a daily symbol, or every interval
// variant for an intraday symbol. Returns whether anything was removed.
func (s *Store) Delete(kind model.Kind, symbol string) (bool, error) {
	symbol = strings.ToUpper(symbol)
	if kind == model.Daily {
		path := s.pathFor(model.Daily, symbol, "")
		err := os.Remove(path)
		if os.IsNotExist(err) {
			s.log.Warn().Str("symbol", symbol).Msg("no daily data to delete")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("delete %s: %w", path, err)
		}
		s.log.Info().Str("path", path).Msg("deleted")
		return true, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.intradayDir, symbol+"_*"+fileExt))
	if err != nil {
		return false, fmt.Errorf("glob intraday files: %w", err)
	}
	if len(matches) == 0 {
		s.log.Warn().Str("symbol", symbol).Msg("no intraday data to delete")
		return false, nil
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return false, fmt.Errorf("delete %s: %w", path, err)
		}
		s.log.Info().Str("path", path).Msg("deleted")
	}
	return true, nil
}

// ExportCSV writes a stored series as CSV, one row per timestamp with
// the timestamp first and canonical column names in the header. ok is
// false when there is no data to export. outputDir overrides the
// configured export directory when non-empty.
func (s *Store) ExportCSV(kind model.Kind, symbol, interval, outputDir string) (string, bool, error) {
	sr, ok, err := s.load(s.pathFor(kind, symbol, interval), time.Time{}, time.Time{})
	if err != nil {
		return "", false, err
	}
	if !ok || sr.Empty() {
		s.log.Error().Str("symbol", symbol).Msg("no data to export")
		return "", false, nil
	}

	if outputDir == "" {
		outputDir = s.exportDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create export dir: %w", err)
	}

	suffix := string(model.Daily)
	timeLayout := "2006-01-02"
	if kind == model.Intraday {
		suffix = interval
		timeLayout = "2006-01-02 15:04:05"
	}
	outPath := filepath.Join(outputDir, strings.ToUpper(symbol)+"_"+suffix+".csv")

	f, err := os.Create(outPath)
	if err != nil {
		return "", false, fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Date", "Open", "High", "Low", "Close", "Volume"}
	hasAdj := sr.HasAdjClose()
	if hasAdj {
		header = append(header, "AdjClose")
	}
	header = append(header, "Symbol")
	if err := w.Write(header); err != nil {
		return "", false, fmt.Errorf("write header: %w", err)
	}
	for _, b := range sr.Bars {
		row := []string{
			b.Time.Format(timeLayout),
			formatCell(b.Open),
			formatCell(b.High),
			formatCell(b.Low),
			formatCell(b.Close),
			formatCell(b.Volume),
		}
		if hasAdj {
			cell := ""
			if b.AdjClose != nil {
				cell = formatCell(*b.AdjClose)
			}
			row = append(row, cell)
		}
		row = append(row, sr.Symbol)
		if err := w.Write(row); err != nil {
			return "", false, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", false, fmt.Errorf("flush csv: %w", err)
	}

	s.log.Info().Str("symbol", symbol).Str("path", outPath).Msg("exported csv")
	return outPath, true, nil
}

func formatCell(v float64) string {
	if model.IsNull(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Size returns the total backing-file bytes for a granularity.
func (s *Store) Size(kind model.Kind) (int64, error) {
	entries, err := os.ReadDir(s.dirFor(kind))
	if err != nil {
		return 0, fmt.Errorf("list %s dir: %w", kind, err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		total += info.Size()
	}
	return total, nil
}

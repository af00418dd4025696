package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketArchive/internal/model"
)

// StooqProvider fetches daily OHLCV data from the Stooq CSV endpoint.
// Stooq serves daily bars only, so intraday intervals fail fast.
type StooqProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewStooqProvider creates a Stooq provider. baseURL overrides the
// public endpoint, mostly for tests and mirrors.
func NewStooqProvider(baseURL, proxyURL string, timeout time.Duration) *StooqProvider {
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &StooqProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (p *StooqProvider) Name() string { return "stooq" }

// stooqSymbol maps a plain US ticker to Stooq's naming (aapl.us).
// Symbols that already carry a market suffix pass through lowercased.
func stooqSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".us"
}

func (p *StooqProvider) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval string) (*model.RawTable, error) {
	if interval != "" && interval != "1d" {
		return nil, fmt.Errorf("stooq: interval %q not available, daily only", interval)
	}
	q := url.Values{}
	q.Set("s", stooqSymbol(symbol))
	q.Set("i", "d")
	if !start.IsZero() {
		q.Set("d1", start.Format("20060102"))
	}
	if !end.IsZero() {
		q.Set("d2", end.Format("20060102"))
	}
	return p.fetchCSV(ctx, q)
}

func (p *StooqProvider) FetchPeriod(ctx context.Context, symbol, period, interval string) (*model.RawTable, error) {
	days, ok := periodDays(period)
	if !ok {
		return nil, fmt.Errorf("stooq: unrecognized period %q", period)
	}
	start := time.Now().UTC().AddDate(0, 0, -days)
	return p.FetchRange(ctx, symbol, start, time.Time{}, interval)
}

func (p *StooqProvider) fetchCSV(ctx context.Context, q url.Values) (*model.RawTable, error) {
	u := fmt.Sprintf("%s/q/d/l/?%s", p.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stooq fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq: status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("stooq: no data returned")
	}

	header := records[0]
	dateCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "date") {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return nil, fmt.Errorf("stooq: response has no date column")
	}

	// Value columns keep Stooq's own header naming; normalization maps
	// them onto the canonical schema later.
	var columns []string
	var valueCols []int
	for i, name := range header {
		if i == dateCol {
			continue
		}
		columns = append(columns, strings.TrimSpace(name))
		valueCols = append(valueCols, i)
	}

	table := &model.RawTable{Columns: columns}
	for _, rec := range records[1:] {
		if dateCol >= len(rec) {
			continue
		}
		ts, err := time.Parse("2006-01-02", rec[dateCol])
		if err != nil {
			continue
		}
		row := make([]float64, len(valueCols))
		for j, col := range valueCols {
			row[j] = nan()
			if col < len(rec) {
				if v, err := strconv.ParseFloat(rec[col], 64); err == nil {
					row[j] = v
				}
			}
		}
		table.Times = append(table.Times, ts.UTC())
		table.Cells = append(table.Cells, row)
	}
	if table.Rows() == 0 {
		return nil, fmt.Errorf("stooq: no data returned")
	}
	return table, nil
}

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"MarketArchive/internal/model"
)

// YahooProvider fetches OHLCV data from the Yahoo Finance chart API.
type YahooProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooProvider creates a Yahoo Finance provider with optional proxy
// support.
func NewYahooProvider(proxyURL string, timeout time.Duration) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooProvider{
		BaseURL: "https://query1.finance.yahoo.com",
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
				Adjclose []struct {
					Adjclose []interface{} `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return nan()
	}
}

func (p *YahooProvider) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval string) (*model.RawTable, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("includeAdjustedClose", "true")
	if start.IsZero() {
		q.Set("period1", "0")
	} else {
		q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	}
	if end.IsZero() {
		q.Set("period2", fmt.Sprintf("%d", time.Now().Unix()))
	} else {
		// period2 is exclusive upstream; push it past the end date so
		// the last requested day is included.
		q.Set("period2", fmt.Sprintf("%d", end.Add(24*time.Hour).Unix()))
	}
	return p.fetchChart(ctx, symbol, q)
}

func (p *YahooProvider) FetchPeriod(ctx context.Context, symbol, period, interval string) (*model.RawTable, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", period)
	q.Set("includeAdjustedClose", "true")
	return p.fetchChart(ctx, symbol, q)
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol string, q url.Values) (*model.RawTable, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.BaseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	columns := []string{"open", "high", "low", "close", "volume"}
	var adj []interface{}
	if len(result.Indicators.Adjclose) > 0 {
		adj = result.Indicators.Adjclose[0].Adjclose
		columns = append(columns, "adjclose")
	}

	table := &model.RawTable{Columns: columns}
	for i, ts := range result.Timestamp {
		row := []float64{
			asFloat(pick(quote.Open, i)),
			asFloat(pick(quote.High, i)),
			asFloat(pick(quote.Low, i)),
			asFloat(pick(quote.Close, i)),
			asFloat(pick(quote.Volume, i)),
		}
		if adj != nil {
			row = append(row, asFloat(pick(adj, i)))
		}
		table.Times = append(table.Times, time.Unix(ts, 0).UTC())
		table.Cells = append(table.Cells, row)
	}
	return table, nil
}

func pick(vs []interface{}, i int) interface{} {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

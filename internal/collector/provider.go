package collector

import (
	"context"
	"time"

	"MarketArchive/internal/model"
)

// Provider fetches raw tabular OHLCV data from one market-data source.
// Responses keep the provider's own column naming; the Downloader
// normalizes them into the canonical schema.
type Provider interface {
	// FetchRange retrieves bars between start and end. A zero time
	// leaves that bound open.
	FetchRange(ctx context.Context, symbol string, start, end time.Time, interval string) (*model.RawTable, error)
	// FetchPeriod retrieves bars over a relative lookback period such
	// as "730d" or "1y".
	FetchPeriod(ctx context.Context, symbol, period, interval string) (*model.RawTable, error)
	Name() string
}

// Package futures fetches forward-looking candle data from futures
// exchanges. Providers return bars in ascending time order; the audit
// layer validates the invariant before replaying against them.
package futures

import (
	"context"
	"time"

	"github.com/tranmd/whaleaudit/internal/core"
)

// Provider defines the interface for futures market-data sources.
type Provider interface {
	// Name returns the provider identifier (e.g., "binance", "okx")
	Name() string

	// FetchKlines fetches closed bars for symbol (normalized format,
	// e.g. "BTCUSDT") between start and end at the given interval
	// ("1m", "5m", "15m", "1h", "4h", "1d"), at most limit bars.
	FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) (core.Series, error)
}

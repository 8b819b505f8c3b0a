package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tranmd/whaleaudit/internal/core"
)

const baseURL = "https://fapi.binance.com"

// Binance implements the futures Provider interface for Binance USDT-M
// perpetual futures.
type Binance struct {
	client  *http.Client
	baseURL string
}

// New creates a new Binance futures provider.
func New() *Binance {
	return &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing).
func NewWithBaseURL(u string) *Binance {
	b := New()
	b.baseURL = u
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchKlines fetches closed futures bars from /fapi/v1/klines.
func (b *Binance) FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) (core.Series, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", toInterval(interval))
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/fapi/v1/klines?%s", b.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	// Klines arrive as mixed-type arrays: open time in ms, then OHLCV as
	// strings.
	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	series := make(core.Series, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		openStr, _ := k[1].(string)
		highStr, _ := k[2].(string)
		lowStr, _ := k[3].(string)
		closeStr, _ := k[4].(string)
		volumeStr, _ := k[5].(string)

		open, _ := strconv.ParseFloat(openStr, 64)
		high, _ := strconv.ParseFloat(highStr, 64)
		low, _ := strconv.ParseFloat(lowStr, 64)
		close, _ := strconv.ParseFloat(closeStr, 64)
		volume, _ := strconv.ParseFloat(volumeStr, 64)

		series = append(series, core.Candle{
			Time:   time.UnixMilli(int64(openTime)),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	return series, nil
}

func toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w":
		return interval
	default:
		return "1h"
	}
}

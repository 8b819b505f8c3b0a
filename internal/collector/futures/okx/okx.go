package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tranmd/whaleaudit/internal/core"
)

const baseURL = "https://www.okx.com"

// OKX implements the futures Provider interface for OKX perpetual swaps.
type OKX struct {
	client  *http.Client
	baseURL string
}

// New creates a new OKX provider.
func New() *OKX {
	return &OKX{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates an OKX provider with custom base URL (for testing).
func NewWithBaseURL(u string) *OKX {
	o := New()
	o.baseURL = u
	return o
}

func (o *OKX) Name() string {
	return "okx"
}

// toInstID converts a normalized symbol to an OKX swap instrument ID.
// BTCUSDT -> BTC-USDT-SWAP
func toInstID(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			base := strings.TrimSuffix(symbol, quote)
			return base + "-" + quote + "-SWAP"
		}
	}
	return symbol + "-SWAP"
}

func toBar(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h":
		return "1H"
	case "2h":
		return "2H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	default:
		return "1H"
	}
}

type candlesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// FetchKlines fetches closed swap bars from /api/v5/market/history-candles.
// OKX returns newest first; the result is re-sorted ascending to satisfy
// the Series invariant.
func (o *OKX) FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) (core.Series, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("instId", toInstID(symbol))
	q.Set("bar", toBar(interval))
	q.Set("before", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("after", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v5/market/history-candles?%s", o.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Code != "0" {
		return nil, fmt.Errorf("okx error: %s", result.Msg)
	}

	series := make(core.Series, 0, len(result.Data))
	for _, row := range result.Data {
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		close, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		series = append(series, core.Candle{
			Time:   time.UnixMilli(ts),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})

	return series, nil
}

package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Errorf("path = %s, want /fapi/v1/klines", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s, want BTCUSDT", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval = %s, want 1h", got)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %s, want 100", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1700000000000, "37000.1", "37500.5", "36800.0", "37200.0", "1234.5", 1700003599999, "0", 0, "0", "0", "0"],
			[1700003600000, "37200.0", "37900.0", "37100.0", "37800.0", "987.6", 1700007199999, "0", 0, "0", "0", "0"]
		]`))
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	end := time.Now()
	series, err := b.FetchKlines(context.Background(), "BTCUSDT", "1h", end.Add(-2*time.Hour), end, 100)
	if err != nil {
		t.Fatalf("FetchKlines() error = %v", err)
	}

	if len(series) != 2 {
		t.Fatalf("len = %d, want 2", len(series))
	}
	if series[0].Open != 37000.1 || series[0].High != 37500.5 || series[0].Low != 36800.0 {
		t.Errorf("first bar = %+v", series[0])
	}
	if series[0].Time.UnixMilli() != 1700000000000 {
		t.Errorf("first bar time = %d", series[0].Time.UnixMilli())
	}
	if err := series.Validate(); err != nil {
		t.Errorf("series failed ordering validation: %v", err)
	}
}

func TestFetchKlines_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	_, err := b.FetchKlines(context.Background(), "BTCUSDT", "1h", time.Now().Add(-time.Hour), time.Now(), 100)
	if err == nil {
		t.Error("expected error on 502")
	}
}

func TestFetchKlines_SkipsMalformedRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000, "1.0"], [1700003600000, "1", "2", "0.5", "1.5", "10"]]`))
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	series, err := b.FetchKlines(context.Background(), "ETHUSDT", "1h", time.Now().Add(-time.Hour), time.Now(), 100)
	if err != nil {
		t.Fatalf("FetchKlines() error = %v", err)
	}
	if len(series) != 1 {
		t.Errorf("len = %d, want 1 (short row skipped)", len(series))
	}
}

func TestToInterval_UnknownFallsBack(t *testing.T) {
	if got := toInterval("3h"); got != "1h" {
		t.Errorf("toInterval(3h) = %s, want 1h", got)
	}
	if got := toInterval("15m"); got != "15m" {
		t.Errorf("toInterval(15m) = %s, want 15m", got)
	}
}

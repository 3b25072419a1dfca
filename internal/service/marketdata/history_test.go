package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func TestHistoryCandles(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"s":"ok","c":[10.5,11,11.5],"v":[1,2,3],"t":[1700000040,1700000100,1700000160]}`)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, "secret", 5*time.Second, testLogger(t))
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700000160, 0)
	series, err := c.Candles(context.Background(), "BINANCE:BTCUSDT", "1", from, to)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 10.5, series[0].Price)
	assert.Equal(t, time.Unix(1700000040, 0).UTC(), series[0].Timestamp)

	assert.Equal(t, "BINANCE:BTCUSDT", gotQuery.Get("symbol"))
	assert.Equal(t, "1", gotQuery.Get("resolution"))
	assert.Equal(t, "secret", gotQuery.Get("token"))
	// range aligned down to the minute boundary
	assert.Equal(t, "1699999980", gotQuery.Get("from"))
}

func TestHistoryCandlesNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"s":"no_data"}`)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, "", time.Second, testLogger(t))
	_, err := c.Candles(context.Background(), "BINANCE:BTCUSDT", "60", time.Now().Add(-time.Hour), time.Now())
	require.ErrorIs(t, err, domrepo.ErrNotAvailable)
}

func TestHistoryCandlesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, "", time.Second, testLogger(t))
	_, err := c.Candles(context.Background(), "BINANCE:BTCUSDT", "60", time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
}

func TestHistoryCandlesColumnMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"s":"ok","c":[1,2,3],"t":[1700000040]}`)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, "", time.Second, testLogger(t))
	_, err := c.Candles(context.Background(), "BINANCE:BTCUSDT", "60", time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
}

package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
	xutil "FinCast/pkg/util"
)

// HistoryClient fetches historical candles over the provider REST API.
type HistoryClient struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
	l       *applogger.Logger
}

func NewHistoryClient(baseURL, apiKey string, timeout time.Duration, l *applogger.Logger) *HistoryClient {
	return &HistoryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l:       l,
	}
}

// candleResponse is the provider's column-oriented candle payload.
type candleResponse struct {
	Status  string    `json:"s"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
	Times   []int64   `json:"t"`
}

// Candles fetches close prices for symbol between from and to at the given
// resolution ("1", "5", "60", "D"). The range is aligned to resolution
// boundaries before the request.
func (c *HistoryClient) Candles(ctx context.Context, symbol, resolution string, from, to time.Time) (models.PriceSeries, error) {
	from, to = xutil.AlignFromTo(from, to, resolutionTimeframe(resolution))

	var resp candleResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {resolution},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("candles %s: %w", symbol, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("candles %s: provider status %q: %w",
			symbol, resp.Status, drepo.ErrNotAvailable)
	}
	if len(resp.Times) != len(resp.Closes) {
		return nil, fmt.Errorf("candles %s: %d timestamps for %d closes",
			symbol, len(resp.Times), len(resp.Closes))
	}

	series := make(models.PriceSeries, len(resp.Closes))
	for i := range resp.Closes {
		series[i] = models.SeriesPoint{
			Timestamp: time.Unix(resp.Times[i], 0).UTC(),
			Price:     resp.Closes[i],
		}
	}
	c.l.Debug("marketdata: candles fetched",
		applogger.String("symbol", symbol),
		applogger.Int("points", len(series)))
	return series, nil
}

func resolutionTimeframe(resolution string) string {
	switch resolution {
	case "1":
		return "1m"
	case "5":
		return "5m"
	default:
		return "1m"
	}
}

var _ drepo.HistoryFetcher = (*HistoryClient)(nil)

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	models "FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const summaryCacheTTL = 30 * time.Second

// ForecastEchoHandler exposes the forecasting core over HTTP.
type ForecastEchoHandler struct {
	logger       *xlogger.Logger
	orchestrator *usecase.Orchestrator
	monitor      *usecase.Monitor
	registry     domrepo.VersionRegistry
	ticks        domrepo.TickStorage
	cache        icache.BytesCache
	rl           *ratelimit.Limiter
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	orchestrator *usecase.Orchestrator,
	monitor *usecase.Monitor,
	registry domrepo.VersionRegistry,
	ticks domrepo.TickStorage,
) *ForecastEchoHandler {
	return &ForecastEchoHandler{
		logger:       logger,
		orchestrator: orchestrator,
		monitor:      monitor,
		registry:     registry,
		ticks:        ticks,
		cache:        icache.NewTTLCache(),
		rl:           ratelimit.New(),
	}
}

// SetCache swaps the summary cache (e.g. for a Redis-backed one).
func (h *ForecastEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/forecast", h.Forecast)
	g.GET("/performance/:symbol", h.PerformanceSummary)
	g.GET("/alerts", h.Alerts)
	g.POST("/alerts/:id/resolve", h.ResolveAlert)
	g.GET("/models/:symbol", h.ListVersions)
}

// Forecast runs one adaptive forecast. The price series comes from the
// request body when supplied, otherwise the most recent stored ticks.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":forecast", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	ctx := c.Request().Context()

	series, err := h.loadSeries(c, req)
	if err != nil {
		h.logger.Error("forecast series load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if len(series) == 0 {
		return xhttp.NotFoundResponse(c, map[string]string{
			"message": "no price data for symbol " + req.Symbol,
		})
	}

	var fc *models.Forecast
	if req.Ensemble != nil {
		fc, err = h.orchestrator.ForecastMode(ctx, req.Symbol, series, req.Horizon, *req.Ensemble)
	} else {
		fc, err = h.orchestrator.AdaptiveForecast(ctx, req.Symbol, series, req.Horizon)
	}
	if err != nil {
		h.logger.Error("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":    fc.Symbol,
		"forecast":  fc.Values,
		"strategy":  fc.Strategy,
		"weights":   fc.Weights,
		"timestamp": fc.Timestamp,
		"warnings":  fc.Warnings,
	})
}

func (h *ForecastEchoHandler) loadSeries(c echo.Context, req *models.ForecastRequest) (models.PriceSeries, error) {
	if len(req.Prices) > 0 {
		// caller-supplied series: synthesize hourly timestamps ending now
		now := time.Now().UTC().Truncate(time.Hour)
		series := make(models.PriceSeries, len(req.Prices))
		for i, p := range req.Prices {
			series[i] = models.SeriesPoint{
				Timestamp: now.Add(-time.Duration(len(req.Prices)-1-i) * time.Hour),
				Price:     p,
			}
		}
		return series, nil
	}
	now := time.Now()
	return h.ticks.Series(c.Request().Context(), req.Symbol, now.AddDate(0, 0, -30), now, req.N)
}

// PerformanceSummary reports recent metrics, counts, and trend per model.
func (h *ForecastEchoHandler) PerformanceSummary(c echo.Context) error {
	req := &models.PerformanceSummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cacheKey := "perf:" + req.Symbol + ":" + strconv.Itoa(req.Days)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("performance summary cache_get_error", xlogger.Error(err))
		} else if ok {
			var cached map[models.ModelKind]*models.ModelSummary
			if err := json.Unmarshal(b, &cached); err == nil {
				h.logger.Debug("performance summary cache_hit", xlogger.String("key", cacheKey))
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	summary, err := h.monitor.GetPerformanceSummary(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		h.logger.Error("performance summary error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(summary); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, summaryCacheTTL); err != nil {
				h.logger.Warn("performance summary cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, summary)
}

// Alerts lists unresolved alerts.
func (h *ForecastEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	alerts, err := h.monitor.GetActiveAlerts(c.Request().Context(), req.Symbol, req.Severity)
	if err != nil {
		h.logger.Error("alerts list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, alerts)
}

// ResolveAlert marks one alert resolved.
func (h *ForecastEchoHandler) ResolveAlert(c echo.Context) error {
	req := &models.ResolveAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ok, err := h.monitor.ResolveAlert(c.Request().Context(), req.ID)
	if err != nil {
		h.logger.Error("resolve alert error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !ok {
		return xhttp.NotFoundResponse(c, map[string]string{
			"message": "alert not found: " + req.ID,
		})
	}
	return xhttp.SuccessResponse(c, map[string]bool{"resolved": true})
}

// ListVersions returns all model versions for a symbol, newest first.
func (h *ForecastEchoHandler) ListVersions(c echo.Context) error {
	req := &models.ListVersionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	versions, err := h.registry.ListVersions(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("list versions error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(versions) {
		versions = versions[:limit]
	}
	return xhttp.SuccessResponse(c, versions)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	apimetrics "github.com/vpnsgde/gold-quant/internal/service/metrics"
	"github.com/vpnsgde/gold-quant/internal/service/ratelimit"
	"github.com/vpnsgde/gold-quant/internal/services/selector"
	xhttp "github.com/vpnsgde/gold-quant/pkg/http"
	xlogger "github.com/vpnsgde/gold-quant/pkg/logger"
)

// Forecaster is the use case behind the forecast endpoints.
type Forecaster interface {
	Run(ctx context.Context, req models.ForecastRequest) (*models.ForecastTable, error)
}

// HealthChecker reports readiness of a backing service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ForecastEchoHandler serves forecasts over HTTP.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	uc      Forecaster
	limiter *ratelimit.Limiter
	health  map[string]HealthChecker
}

func NewForecastEchoHandler(logger *xlogger.Logger, uc Forecaster, limiter *ratelimit.Limiter) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, uc: uc, limiter: limiter, health: map[string]HealthChecker{}}
}

// AddHealthCheck registers a dependency reported by /healthz.
func (h *ForecastEchoHandler) AddHealthCheck(name string, hc HealthChecker) {
	if hc != nil {
		h.health[name] = hc
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.POST("/forecast", h.Forecast)
	e.GET("/healthz", h.Healthz)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	const endpoint = "forecast"
	start := time.Now()
	defer func() {
		apimetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		apimetrics.RateLimited.WithLabelValues(endpoint).Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
	}

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		apimetrics.APIErrors.WithLabelValues(endpoint, "400").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.uc.Run(c.Request().Context(), *req)
	if err != nil {
		appErr := toAppError(err)
		apimetrics.APIErrors.WithLabelValues(endpoint, strconv.Itoa(appErr.Status)).Inc()
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("forecast usecase error", xlogger.Error(err))
		} else {
			h.logger.Warn("forecast rejected", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	report := xhttp.HealthReport{Healthy: true, Checks: make(map[string]string, len(h.health))}
	for name, hc := range h.health {
		if err := hc.Health(ctx); err != nil {
			report.Checks[name] = err.Error()
			report.Healthy = false
			continue
		}
		report.Checks[name] = "ok"
	}
	return xhttp.HealthResponse(c, report)
}

// toAppError maps input problems to 400 and an exhausted model grid to 422.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, selector.ErrNoViableModel):
		appErr := xhttp.UnprocessableError(err.Error()).WithError(err)
		var nv *selector.NoViableModelError
		if errors.As(err, &nv) {
			appErr.WithParam("attempts", nv.Attempts)
		}
		return appErr
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	domsvc "MeanRev/internal/domain/service"
	icache "MeanRev/internal/service/cache"
	"MeanRev/internal/service/metrics"
	"MeanRev/internal/service/ratelimit"
	"MeanRev/internal/usecase"
	pkgcache "MeanRev/pkg/cache"
	xhttp "MeanRev/pkg/http"
	applogger "MeanRev/pkg/logger"
	"MeanRev/pkg/queue"

	"github.com/labstack/echo/v4"
)

// DecisionsEchoHandler serves the decision pipeline's REST surface:
// latest state, bar history, the news calendar, pair switching and
// backtest jobs.
type DecisionsEchoHandler struct {
	pipeline *usecase.Pipeline
	prices   domrepo.PriceCache
	store    domrepo.BarStore
	news     domsvc.NewsCalendar
	jobs     queue.QueueService
	status   pkgcache.Service
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
	l        *applogger.Logger
}

func NewDecisionsEchoHandler(
	pipeline *usecase.Pipeline,
	prices domrepo.PriceCache,
	store domrepo.BarStore,
	news domsvc.NewsCalendar,
	jobs queue.QueueService,
	status pkgcache.Service,
	l *applogger.Logger,
) *DecisionsEchoHandler {
	metrics.Register()
	return &DecisionsEchoHandler{
		pipeline: pipeline,
		prices:   prices,
		store:    store,
		news:     news,
		jobs:     jobs,
		status:   status,
		rl:       ratelimit.New(),
		l:        l,
	}
}

// SetCache attaches a response cache for the history endpoint.
func (h *DecisionsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/history", h.History)
	g.GET("/news", h.News)
	g.POST("/pair", h.ChangePair)
	g.POST("/backtest", h.StartBacktest)
	g.GET("/backtest/:id", h.BacktestStatus)
}

// State returns the most recent full decision tuple for a pair.
func (h *DecisionsEchoHandler) State(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("state").Observe(time.Since(start).Seconds()) }()

	req := &models.StateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	d, err := h.prices.GetDecision(c.Request().Context(), req.Pair)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no decision yet for "+req.Pair)
		}
		metrics.APIErrors.WithLabelValues("state").Inc()
		h.l.Error("state read error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("state read failed", err))
	}
	return xhttp.SuccessResponse(c, d)
}

// History returns the latest n bars, cached briefly.
func (h *DecisionsEchoHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		h.l.Warn("history rate_limited", applogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(429, "rate limited")
	}

	if fs := c.QueryParam("from"); fs != "" {
		from, ok := xhttp.ParseTime(fs)
		if !ok {
			return xhttp.BadRequestResponse(c, "invalid from timestamp")
		}
		to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
		bars, err := h.store.Range(c.Request().Context(), req.Pair, from, to)
		if err != nil {
			metrics.APIErrors.WithLabelValues("history").Inc()
			h.l.Error("history range read error", applogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("history read failed", err))
		}
		return xhttp.SuccessResponse(c, bars)
	}

	cacheKey := pkgcache.GenerateKeyWithParams("history", req.Pair, req.N)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			var bars []models.Bar
			if err := json.Unmarshal(b, &bars); err == nil {
				return xhttp.SuccessResponse(c, bars)
			}
		}
	}

	bars, err := h.store.LatestN(c.Request().Context(), req.Pair, req.N)
	if err != nil {
		metrics.APIErrors.WithLabelValues("history").Inc()
		h.l.Error("history read error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history read failed", err))
	}
	if h.cache != nil {
		if b, err := json.Marshal(bars); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 15*time.Second); err != nil {
				h.l.Warn("history cache_set_error", applogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, bars)
}

// News returns the loaded economic calendar.
func (h *DecisionsEchoHandler) News(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.news.Events())
}

// ChangePair switches the pipeline's instrument between ticks.
func (h *DecisionsEchoHandler) ChangePair(c echo.Context) error {
	req := &models.PairRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	prev := h.pipeline.Session().Pair
	h.pipeline.SwitchPair(req.Pair)
	if prev != "" && prev != req.Pair {
		if err := h.prices.InvalidateDecision(c.Request().Context(), prev); err != nil {
			h.l.Warn("decision invalidate failed", applogger.String("pair", prev), applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"pair": req.Pair})
}

// StartBacktest enqueues a validation run and returns the job id.
func (h *DecisionsEchoHandler) StartBacktest(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("backtest").Observe(time.Since(start).Seconds()) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":backtest", 2, 0.2) {
		return echo.NewHTTPError(429, "rate limited")
	}

	payload := models.BacktestJobPayload{
		JobID:   fmt.Sprintf("bt-%d", time.Now().UnixNano()),
		Pair:    req.Pair,
		Bars:    req.Bars,
		Kind:    req.Kind,
		ShockPc: req.ShockPc,
	}
	if err := h.jobs.PublishMessage(c.Request().Context(), usecase.BacktestJobType, payload); err != nil {
		metrics.APIErrors.WithLabelValues("backtest").Inc()
		h.l.Error("enqueue backtest failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("enqueue backtest failed", err))
	}
	if err := h.status.Set(c.Request().Context(), usecase.BacktestStatusKey(payload.JobID),
		models.BacktestStatus{JobID: payload.JobID, Kind: req.Kind, Status: "queued"}, time.Hour); err != nil {
		h.l.Warn("store queued status failed", applogger.Error(err))
	}
	return xhttp.CreatedResponse(c, map[string]string{"job_id": payload.JobID})
}

// BacktestStatus polls a job's status snapshot.
func (h *DecisionsEchoHandler) BacktestStatus(c echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return xhttp.BadRequestResponse(c, "job id required")
	}
	var st models.BacktestStatus
	if err := h.status.Get(c.Request().Context(), usecase.BacktestStatusKey(jobID), &st); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "unknown job "+jobID)
		}
		metrics.APIErrors.WithLabelValues("backtest_status").Inc()
		return xhttp.AppErrorResponse(c, xhttp.InternalError("status read failed", err))
	}
	return xhttp.SuccessResponse(c, st)
}

var _ xhttp.Handler = (*DecisionsEchoHandler)(nil)

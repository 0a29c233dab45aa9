// Package api serves the latest recommendations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/domain"
)

var (
	// ErrRunInProgress is returned by a Trigger while a run is active.
	ErrRunInProgress = errors.New("pipeline run in progress")
	// ErrShuttingDown is returned by a Trigger once the server is stopping.
	ErrShuttingDown = errors.New("server shutting down")
)

// Trigger starts a pipeline run in the background.
type Trigger func(ctx context.Context) error

// Handler implements the recommendation endpoints.
type Handler struct {
	snapshot *Snapshot
	trigger  Trigger
	logger   zerolog.Logger
}

// NewHandler creates a Handler. trigger may be nil.
func NewHandler(snapshot *Snapshot, trigger Trigger, logger zerolog.Logger) *Handler {
	return &Handler{snapshot: snapshot, trigger: trigger, logger: logger}
}

// RegisterRoutes mounts the handler on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/recommendations/market", h.Market)
	g.GET("/recommendations/squad", h.Squad)
	g.GET("/predictions", h.Predictions)
	g.GET("/evaluation", h.Evaluation)
	g.POST("/runs", h.Run)
}

// MarketRequest filters market recommendations.
type MarketRequest struct {
	Limit         int  `query:"limit" default:"50" validate:"gte=1,lte=500"`
	ExpiringToday bool `query:"expiring_today"`
}

// ListRequest limits list endpoints.
type ListRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status    string     `json:"status"`
	RunID     string     `json:"run_id,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// EvaluationResponse is the /evaluation payload.
type EvaluationResponse struct {
	RunID         string            `json:"run_id"`
	EffectiveDate string            `json:"effective_date"`
	SplitDate     string            `json:"split_date"`
	Evaluation    domain.Evaluation `json:"evaluation"`
}

// Health reports whether a result is being served.
func (h *Handler) Health(c echo.Context) error {
	status := HealthStatus{Status: "starting"}
	if at, err := h.snapshot.Status(); !at.IsZero() {
		status.LastRun = &at
		if err != nil {
			status.LastError = err.Error()
		}
	}
	if r := h.snapshot.Get(); r != nil {
		status.Status = "ok"
		status.RunID = r.RunID
	}
	return successResponse(c, status)
}

// Market lists market recommendations.
func (h *Handler) Market(c echo.Context) error {
	req := &MarketRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return dataResponse(c, http.StatusBadRequest, verrs)
	}
	r := h.snapshot.Get()
	if r == nil {
		return notReady(c)
	}

	rows := make([]domain.MarketRecommendation, 0, len(r.Market))
	for _, m := range r.Market {
		if req.ExpiringToday && !m.ExpiringToday {
			continue
		}
		rows = append(rows, m)
	}
	total := len(rows)
	return listResponse(c, limit(rows, req.Limit), total)
}

// Squad lists squad recommendations.
func (h *Handler) Squad(c echo.Context) error {
	req := &ListRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return dataResponse(c, http.StatusBadRequest, verrs)
	}
	r := h.snapshot.Get()
	if r == nil {
		return notReady(c)
	}
	return listResponse(c, limit(r.Squad, req.Limit), len(r.Squad))
}

// Predictions lists live predictions.
func (h *Handler) Predictions(c echo.Context) error {
	req := &ListRequest{}
	if verrs := readAndValidate(c, req); verrs != nil {
		return dataResponse(c, http.StatusBadRequest, verrs)
	}
	r := h.snapshot.Get()
	if r == nil {
		return notReady(c)
	}
	return listResponse(c, limit(r.Predictions, req.Limit), len(r.Predictions))
}

// Evaluation returns the hold-out metrics of the latest model.
func (h *Handler) Evaluation(c echo.Context) error {
	r := h.snapshot.Get()
	if r == nil {
		return notReady(c)
	}
	resp := EvaluationResponse{
		RunID:      r.RunID,
		SplitDate:  r.SplitDate.Format(time.DateOnly),
		Evaluation: r.Evaluation,
	}
	if r.Features != nil {
		resp.EffectiveDate = r.Features.EffectiveDate.Format(time.DateOnly)
	}
	return successResponse(c, resp)
}

// Run starts a pipeline run.
func (h *Handler) Run(c echo.Context) error {
	if h.trigger == nil {
		return dataResponse(c, http.StatusNotImplemented, "manual runs are disabled")
	}
	if err := h.trigger(c.Request().Context()); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return dataResponse(c, http.StatusConflict, err.Error())
		}
		if errors.Is(err, ErrShuttingDown) {
			return dataResponse(c, http.StatusServiceUnavailable, err.Error())
		}
		h.logger.Error().Err(err).Msg("trigger run")
		return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
	return dataResponse(c, http.StatusAccepted, "run started")
}

func notReady(c echo.Context) error {
	return dataResponse(c, http.StatusServiceUnavailable, "no pipeline run completed yet")
}

func limit[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

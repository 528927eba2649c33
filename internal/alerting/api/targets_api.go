package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/healthcheck"
	"github.com/rs/zerolog/log"
)

const (
	defaultLogLimit      = 100
	defaultIncidentLimit = 50
	maxIncidentLimit     = 1000
)

type targetSummary struct {
	Name       string       `json:"name"`
	Alert      *model.Alert `json:"alert"`
	LogEntries int          `json:"logEntries"`
}

type logEntryView struct {
	Timestamp   time.Time      `json:"timestamp"`
	LatencyMs   int64          `json:"latencyMs"`
	FailureRate float64        `json:"failureRate"`
	Severity    model.Severity `json:"severity"`
	Label       string         `json:"label"`
	Line        string         `json:"line"`
}

func (api *Api) ListTargets(c *gin.Context) {
	targets := api.registry.List()
	items := make([]targetSummary, 0, len(targets))
	for _, t := range targets {
		items = append(items, targetSummary{Name: t.Name, Alert: t.Engine.Current(), LogEntries: t.Log.Len()})
	}
	c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (api *Api) GetAlert(c *gin.Context) {
	t, ok := api.lookup(c)
	if !ok {
		return
	}
	a := t.Engine.Current()
	if a == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "no open alert for "+t.Name)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (api *Api) ListLogs(c *gin.Context) {
	t, ok := api.lookup(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, defaultLogLimit, t.Log.Cap())
	if !ok {
		return
	}
	entries := t.Log.Tail(limit)
	items := make([]logEntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, logEntryView{
			Timestamp:   e.Timestamp,
			LatencyMs:   e.Latency.Milliseconds(),
			FailureRate: e.FailureRate,
			Severity:    e.Severity,
			Label:       e.Severity.Label(),
			Line:        e.String(),
		})
	}
	c.JSON(http.StatusOK, map[string]any{"items": items, "total": t.Log.Len()})
}

func (api *Api) ListIncidents(c *gin.Context) {
	t, ok := api.lookup(c)
	if !ok {
		return
	}
	if api.incidents == nil {
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "incident history requires a database")
		return
	}
	limit, ok := parseLimit(c, defaultIncidentLimit, maxIncidentLimit)
	if !ok {
		return
	}
	items, err := api.incidents.List(c.Request.Context(), t.Name, limit)
	if err != nil {
		log.Error().Err(err).Str("target", t.Name).Msg("list incidents failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list incidents")
		return
	}
	c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (api *Api) lookup(c *gin.Context) (*healthcheck.Target, bool) {
	name := c.Param("target")
	t, err := api.registry.Get(name)
	if errors.Is(err, healthcheck.ErrUnknownTarget) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "unknown target "+name)
		return nil, false
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return nil, false
	}
	return t, true
}

// parseLimit reads ?limit=, clamping to ceiling.
func parseLimit(c *gin.Context, def, ceiling int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return min(def, ceiling), true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be a positive integer")
		return 0, false
	}
	return min(n, ceiling), true
}

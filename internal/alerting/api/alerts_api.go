package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/qiniu/cloudmonitor/internal/alerting/database"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

type openAlertView struct {
	Target string      `json:"target"`
	Alert  model.Alert `json:"alert"`
}

// ListOpenAlerts reads the Redis mirror when configured so every instance
// sharing it is covered; otherwise it reports this process's engines.
func (api *Api) ListOpenAlerts(c *gin.Context) {
	if api.alerts == nil {
		items := []openAlertView{}
		for _, t := range api.registry.List() {
			if a := t.Engine.Current(); a != nil {
				items = append(items, openAlertView{Target: t.Name, Alert: *a})
			}
		}
		c.JSON(http.StatusOK, map[string]any{"items": items, "source": "local"})
		return
	}

	ctx := c.Request.Context()
	names, err := api.alerts.OpenTargets(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list open targets failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list open alerts")
		return
	}
	sort.Strings(names)
	items := make([]openAlertView, 0, len(names))
	for _, name := range names {
		e, err := api.alerts.Get(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("target", name).Msg("read cached alert failed")
			writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list open alerts")
			return
		}
		// the index can briefly outlive the entry
		if e == nil || !e.Open {
			continue
		}
		items = append(items, openAlertView{Target: name, Alert: e.Alert})
	}
	c.JSON(http.StatusOK, map[string]any{"items": items, "source": "cache"})
}

func (api *Api) GetIncident(c *gin.Context) {
	if api.incidents == nil {
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "incident history requires a database")
		return
	}
	id := c.Param("id")
	it, err := api.incidents.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrIncidentNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "unknown incident "+id)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("incident", id).Msg("get incident failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get incident")
		return
	}
	c.JSON(http.StatusOK, it)
}

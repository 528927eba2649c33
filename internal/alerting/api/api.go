package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qiniu/cloudmonitor/internal/alerting/database"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/healthcheck"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/statecache"
	"github.com/qiniu/cloudmonitor/internal/middleware"
)

// IncidentLister reads incident history. *database.IncidentStore implements it.
type IncidentLister interface {
	List(ctx context.Context, target string, limit int) ([]database.Incident, error)
	Get(ctx context.Context, id string) (*database.Incident, error)
}

// OpenAlertReader reads the shared alert mirror. *statecache.RedisCache
// implements it.
type OpenAlertReader interface {
	OpenTargets(ctx context.Context) ([]string, error)
	Get(ctx context.Context, target string) (*statecache.Entry, error)
}

type Deps struct {
	Registry  *healthcheck.Registry
	Incidents IncidentLister  // nil without a database
	Alerts    OpenAlertReader // nil without Redis
	Bearer    string
}

type Api struct {
	registry  *healthcheck.Registry
	incidents IncidentLister
	alerts    OpenAlertReader
}

func NewApi(router *gin.Engine, deps Deps) *Api {
	api := &Api{registry: deps.Registry, incidents: deps.Incidents, alerts: deps.Alerts}
	api.setupRouters(router, deps.Bearer)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, bearer string) {
	router.GET("/-/healthy", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", middleware.Bearer(bearer))
	v1.GET("/targets", api.ListTargets)
	v1.GET("/targets/:target/alert", api.GetAlert)
	v1.GET("/targets/:target/logs", api.ListLogs)
	v1.GET("/targets/:target/incidents", api.ListIncidents)
	v1.GET("/incidents/:id", api.GetIncident)
	v1.GET("/alerts/open", api.ListOpenAlerts)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}

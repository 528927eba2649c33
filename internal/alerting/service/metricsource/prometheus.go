package metricsource

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	promModel "github.com/prometheus/common/model"
	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

// Prometheus reads a sample from two instant PromQL queries. The latency query
// must return seconds, the failure-rate query a ratio in [0,1].
type Prometheus struct {
	api              v1.API
	latencyQuery     string
	failureRateQuery string
	timeout          time.Duration
	now              func() time.Time
}

// NewPrometheus connects to the Prometheus HTTP API at address.
func NewPrometheus(address, latencyQuery, failureRateQuery string, timeout time.Duration) (*Prometheus, error) {
	if latencyQuery == "" || failureRateQuery == "" {
		return nil, fmt.Errorf("prometheus source needs both latency and failure rate queries")
	}
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prometheus{
		api:              v1.NewAPI(client),
		latencyQuery:     latencyQuery,
		failureRateQuery: failureRateQuery,
		timeout:          timeout,
		now:              time.Now,
	}, nil
}

func (p *Prometheus) Next(ctx context.Context) (model.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	at := p.now()
	latencySeconds, err := p.scalar(ctx, p.latencyQuery, at)
	if err != nil {
		return model.Sample{}, fmt.Errorf("latency query: %w", err)
	}
	failureRate, err := p.scalar(ctx, p.failureRateQuery, at)
	if err != nil {
		return model.Sample{}, fmt.Errorf("failure rate query: %w", err)
	}
	return model.Sample{
		Latency:     time.Duration(latencySeconds * float64(time.Second)),
		FailureRate: failureRate,
	}, nil
}

// scalar runs an instant query and returns the first series value.
func (p *Prometheus) scalar(ctx context.Context, query string, at time.Time) (float64, error) {
	result, warnings, err := p.api.Query(ctx, query, at)
	if err != nil {
		return 0, fmt.Errorf("failed to query prometheus: %w", err)
	}
	if len(warnings) > 0 {
		log.Warn().Strs("warnings", warnings).Str("query", query).Msg("prometheus warnings")
	}

	var v float64
	switch r := result.(type) {
	case promModel.Vector:
		if len(r) == 0 {
			return 0, ErrNoSample
		}
		v = float64(r[0].Value)
	case *promModel.Scalar:
		v = float64(r.Value)
	default:
		return 0, fmt.Errorf("unexpected result type: %T", result)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNoSample
	}
	return v, nil
}

package metricsource

import (
	"context"
	"errors"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// ErrNoSample is returned when a source has nothing to report for this tick.
var ErrNoSample = errors.New("metricsource: no sample")

// Source yields one latency/failure-rate reading per call. Implementations
// may block; they must honour ctx cancellation.
type Source interface {
	Next(ctx context.Context) (model.Sample, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) (model.Sample, error)

func (f Func) Next(ctx context.Context) (model.Sample, error) { return f(ctx) }

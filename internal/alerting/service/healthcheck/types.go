package healthcheck

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/engine"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/eventlog"
	"github.com/qiniu/cloudmonitor/internal/alerting/service/metricsource"
)

// ErrUnknownTarget is returned for a target name that is not registered.
var ErrUnknownTarget = errors.New("healthcheck: unknown target")

// Target bundles everything owned by one monitored target. The engine and log
// are written only by the target's monitor; readers go through their own locks.
type Target struct {
	Name   string
	Source metricsource.Source
	Engine *engine.Engine
	Log    *eventlog.Recorder
}

// IncidentRecorder persists the alert audit trail. *database.IncidentStore
// implements it.
type IncidentRecorder interface {
	Open(ctx context.Context, target string, a model.Alert) error
	Touch(ctx context.Context, id string, notifiedAt time.Time) error
	Close(ctx context.Context, id string, openedAt, endedAt time.Time, reason string) error
}

// Registry is the set of monitored targets, fixed after startup.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]*Target
}

func NewRegistry() *Registry {
	return &Registry{targets: map[string]*Target{}}
}

// Add registers t, replacing any target with the same name.
func (r *Registry) Add(t *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name] = t
}

func (r *Registry) Get(name string) (*Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return nil, ErrUnknownTarget
	}
	return t, nil
}

// List returns targets sorted by name.
func (r *Registry) List() []*Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

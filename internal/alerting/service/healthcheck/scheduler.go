package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/qiniu/cloudmonitor/internal/config"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Interval   time.Duration
}

// NewRedisClientFromConfig returns nil when Redis is disabled.
func NewRedisClientFromConfig(c *config.RedisConfig) *redis.Client {
	if c == nil || !c.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

// StartScheduler runs one monitor per registered target and blocks until ctx
// is cancelled and every monitor has returned.
func StartScheduler(ctx context.Context, deps Deps) {
	if deps.Interval <= 0 {
		deps.Interval = 200 * time.Millisecond
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = NewDispatcher(Dispatcher{})
	}
	var wg sync.WaitGroup
	for _, t := range deps.Registry.List() {
		m := NewMonitor(t, deps.Dispatcher, deps.Interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(ctx)
		}()
	}
	wg.Wait()
}

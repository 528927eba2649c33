package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/redis/go-redis/v9"
)

const (
	openIndexKey   = "alert:index:open"
	closedIndexKey = "alert:index:closed"
	// closedTTL bounds how long a resolved alert stays readable.
	closedTTL = 24 * time.Hour
)

// Entry is the cached view of one target's alert.
type Entry struct {
	Target     string      `json:"target"`
	Alert      model.Alert `json:"alert"`
	Open       bool        `json:"open"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// AlertCache mirrors the current alert per target for external readers.
// Engine state is never restored from it.
type AlertCache interface {
	Put(ctx context.Context, target string, a model.Alert) error
	Resolve(ctx context.Context, target string, at time.Time) error
	Get(ctx context.Context, target string) (*Entry, error)
}

// NoopCache is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Put(context.Context, string, model.Alert) error { return nil }
func (NoopCache) Resolve(context.Context, string, time.Time) error { return nil }
func (NoopCache) Get(context.Context, string) (*Entry, error) { return nil, nil }

// RedisCache keeps alert:target:<name> as JSON and maintains open/closed
// index sets of target names.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache { return &RedisCache{rdb: rdb} }

func targetKey(target string) string { return "alert:target:" + target }

var putScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SREM', KEYS[3], ARGV[2])
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

// resolveScript flips the cached entry to closed, keeping the alert body.
var resolveScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local obj = cjson.decode(v)
obj.open = false
obj.resolved_at = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(obj), 'EX', ARGV[3])
redis.call('SREM', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[2])
return 1
`)

func (c *RedisCache) Put(ctx context.Context, target string, a model.Alert) error {
	data, err := json.Marshal(Entry{Target: target, Alert: a, Open: true})
	if err != nil {
		return fmt.Errorf("marshal cached alert: %w", err)
	}
	keys := []string{targetKey(target), openIndexKey, closedIndexKey}
	if err := putScript.Run(ctx, c.rdb, keys, data, target).Err(); err != nil {
		return fmt.Errorf("cache alert for %s: %w", target, err)
	}
	return nil
}

func (c *RedisCache) Resolve(ctx context.Context, target string, at time.Time) error {
	keys := []string{targetKey(target), openIndexKey, closedIndexKey}
	err := resolveScript.Run(ctx, c.rdb, keys, at.UTC().Format(time.RFC3339Nano), target, int(closedTTL.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("resolve cached alert for %s: %w", target, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, target string) (*Entry, error) {
	data, err := c.rdb.Get(ctx, targetKey(target)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached alert for %s: %w", target, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal cached alert: %w", err)
	}
	return &e, nil
}

// OpenTargets lists targets whose cached alert is open.
func (c *RedisCache) OpenTargets(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, openIndexKey).Result()
}

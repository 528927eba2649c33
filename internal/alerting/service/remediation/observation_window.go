package remediation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ttlBuffer keeps an expired window readable long enough to be logged.
const ttlBuffer = 5 * time.Minute

// RedisObservationWindowManager implements ObservationWindowManager using Redis
type RedisObservationWindowManager struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisObservationWindowManager(rdb *redis.Client) *RedisObservationWindowManager {
	return &RedisObservationWindowManager{redis: rdb, now: time.Now}
}

func observationKey(target string) string { return "observation:" + target }

func (m *RedisObservationWindowManager) StartObservation(ctx context.Context, target, alertID, changeID string, duration time.Duration) error {
	if m.redis == nil {
		return fmt.Errorf("redis client is nil")
	}
	if duration <= 0 {
		duration = DefaultObservationDuration
	}

	now := m.now()
	window := &ObservationWindow{
		Duration:  duration,
		Target:    target,
		AlertID:   alertID,
		ChangeID:  changeID,
		StartTime: now,
		EndTime:   now.Add(duration),
		IsActive:  true,
	}
	data, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("failed to marshal observation window: %w", err)
	}
	if err := m.redis.Set(ctx, observationKey(target), data, duration+ttlBuffer).Err(); err != nil {
		return fmt.Errorf("failed to store observation window: %w", err)
	}

	log.Info().
		Str("target", target).
		Str("alert_id", alertID).
		Str("change_id", changeID).
		Dur("duration", duration).
		Time("end_time", window.EndTime).
		Msg("started observation window")
	return nil
}

// CheckObservation returns the active window for target, or nil.
func (m *RedisObservationWindowManager) CheckObservation(ctx context.Context, target string) (*ObservationWindow, error) {
	if m.redis == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	key := observationKey(target)
	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get observation window: %w", err)
	}

	var window ObservationWindow
	if err := json.Unmarshal(data, &window); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observation window: %w", err)
	}
	if m.now().After(window.EndTime) {
		m.redis.Del(ctx, key)
		return nil, nil
	}
	return &window, nil
}

// CompleteObservation closes the window because the alert resolved in time.
func (m *RedisObservationWindowManager) CompleteObservation(ctx context.Context, target string) (*ObservationWindow, error) {
	window, err := m.CheckObservation(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to check observation window: %w", err)
	}
	if window == nil {
		return nil, ErrNoActiveWindow
	}

	window.IsActive = false
	if err := m.redis.Del(ctx, observationKey(target)).Err(); err != nil {
		return nil, fmt.Errorf("failed to remove observation window: %w", err)
	}

	log.Info().
		Str("target", target).
		Str("alert_id", window.AlertID).
		Str("change_id", window.ChangeID).
		Dur("elapsed", m.now().Sub(window.StartTime)).
		Msg("completed observation window successfully")
	return window, nil
}

// CancelObservation drops the window because the alert got worse.
func (m *RedisObservationWindowManager) CancelObservation(ctx context.Context, target string) (*ObservationWindow, error) {
	window, err := m.CheckObservation(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to check observation window: %w", err)
	}
	if window == nil {
		return nil, ErrNoActiveWindow
	}

	window.IsActive = false
	if err := m.redis.Del(ctx, observationKey(target)).Err(); err != nil {
		return nil, fmt.Errorf("failed to cancel observation window: %w", err)
	}

	log.Warn().
		Str("target", target).
		Str("alert_id", window.AlertID).
		Str("change_id", window.ChangeID).
		Msg("cancelled observation window due to escalation")
	return window, nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/redis"
	"go.uber.org/zap"
)

// SessionTTL bounds how long an untouched session survives in Redis. Redis
// expiry doubles as the lost-terminal-event sweep, so no sweeper runs here.
const SessionTTL = 1 * time.Hour

// RedisRegistry stores sessions in Redis so a multi-instance deployment can
// route status callbacks and redirect requests to different pods.
type RedisRegistry struct {
	redisSvc redis.RedisServiceInterface
}

// NewRedisRegistry creates a Redis-backed registry
func NewRedisRegistry(redisSvc redis.RedisServiceInterface) *RedisRegistry {
	return &RedisRegistry{redisSvc: redisSvc}
}

func (r *RedisRegistry) key(leadID string) string {
	return r.redisSvc.GenerateKey(redis.CALL_SESSION, leadID)
}

// Upsert records the latest leg and state for a lead
func (r *RedisRegistry) Upsert(ctx context.Context, leadID, callLegID string, state State, seq int64) error {
	existing, err := r.Get(ctx, leadID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.CallLegID == callLegID && seq > 0 && seq < existing.Sequence {
		logger.Base().Debug("dropping stale status event",
			zap.String("lead_id", leadID),
			zap.String("call_leg_id", callLegID),
			zap.Int64("sequence", seq),
		)
		return nil
	}

	sess := &CallSession{
		LeadID:    leadID,
		CallLegID: callLegID,
		State:     state,
		Sequence:  seq,
		UpdatedAt: time.Now(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal call session: %w", err)
	}
	return r.redisSvc.SetValue(ctx, r.key(leadID), string(data), SessionTTL)
}

// Get returns the session for a lead, or ErrNotFound
func (r *RedisRegistry) Get(ctx context.Context, leadID string) (*CallSession, error) {
	data, err := r.redisSvc.GetValue(ctx, r.key(leadID))
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read call session: %w", err)
	}

	var sess CallSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call session: %w", err)
	}
	return &sess, nil
}

// Remove deletes the session for a lead
func (r *RedisRegistry) Remove(ctx context.Context, leadID string) error {
	return r.redisSvc.DelValue(ctx, r.key(leadID))
}

// RemoveLeg deletes the session only if it still tracks the given leg.
// Read-then-delete is not atomic across instances; at worst a session that
// rolled over between the two steps is deleted, which only costs one redirect.
func (r *RedisRegistry) RemoveLeg(ctx context.Context, leadID, callLegID string) (bool, error) {
	sess, err := r.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if sess.CallLegID != callLegID {
		return false, nil
	}
	if err := r.redisSvc.DelValue(ctx, r.key(leadID)); err != nil {
		return false, err
	}
	return true, nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/logger"
	"go.uber.org/zap"
)

// State is the lifecycle state of a tracked call leg. Only non-terminal states
// are ever stored; a terminal status removes the session instead.
type State string

const (
	StateInitiated State = "initiated"
	StateRinging   State = "ringing"
	StateAnswered  State = "answered"
)

// CallSession maps a lead to the most recently reported call leg
type CallSession struct {
	LeadID    string    `json:"leadId"`
	CallLegID string    `json:"callLegId"`
	State     State     `json:"state"`
	Sequence  int64     `json:"sequence"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNotFound is returned by Get when no session exists for the lead
var ErrNotFound = errors.New("no call session for lead")

// Registry is the lead -> call leg mapping. Implementations must apply each
// mutation atomically with respect to other mutations for the same lead.
type Registry interface {
	// Upsert records the latest leg and state for a lead, last writer wins.
	// An event for the currently tracked leg with a lower provider sequence
	// number than the stored one is dropped as stale.
	Upsert(ctx context.Context, leadID, callLegID string, state State, seq int64) error

	// Get returns a point-in-time snapshot of the session, or ErrNotFound.
	Get(ctx context.Context, leadID string) (*CallSession, error)

	// Remove deletes the session for a lead. Removing a missing lead is a no-op.
	Remove(ctx context.Context, leadID string) error

	// RemoveLeg deletes the session only if it still tracks the given leg.
	// Returns false when the session is gone or has rolled over to a new leg.
	RemoveLeg(ctx context.Context, leadID, callLegID string) (bool, error)
}

// MemoryRegistry is the default in-process Registry. State is ephemeral and
// safe to lose: a dropped in-flight correlation merely fails one redirect.
type MemoryRegistry struct {
	sessions map[string]*CallSession
	mutex    sync.RWMutex
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*CallSession),
	}
}

// Upsert records the latest leg and state for a lead (thread-safe write)
func (r *MemoryRegistry) Upsert(ctx context.Context, leadID, callLegID string, state State, seq int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.sessions[leadID]; ok {
		// Sequence numbers only order events within one leg; a new leg id
		// always wins regardless of its sequence.
		if existing.CallLegID == callLegID && seq > 0 && seq < existing.Sequence {
			logger.Base().Debug("dropping stale status event",
				zap.String("lead_id", leadID),
				zap.String("call_leg_id", callLegID),
				zap.Int64("sequence", seq),
				zap.Int64("stored_sequence", existing.Sequence),
			)
			return nil
		}
	}

	r.sessions[leadID] = &CallSession{
		LeadID:    leadID,
		CallLegID: callLegID,
		State:     state,
		Sequence:  seq,
		UpdatedAt: time.Now(),
	}
	return nil
}

// Get returns a copy of the session for a lead (thread-safe read)
func (r *MemoryRegistry) Get(ctx context.Context, leadID string) (*CallSession, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sess, ok := r.sessions[leadID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

// Remove deletes the session for a lead
func (r *MemoryRegistry) Remove(ctx context.Context, leadID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.sessions, leadID)
	return nil
}

// RemoveLeg deletes the session only if it still tracks the given leg
func (r *MemoryRegistry) RemoveLeg(ctx context.Context, leadID, callLegID string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sess, ok := r.sessions[leadID]
	if !ok || sess.CallLegID != callLegID {
		return false, nil
	}
	delete(r.sessions, leadID)
	return true, nil
}

// Len returns the number of tracked sessions
func (r *MemoryRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// StartSweeper reclaims sessions whose terminal status event was lost.
// It checks every interval and removes sessions idle for longer than maxAge.
func (r *MemoryRegistry) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Base().Info("session sweeper started",
		zap.Duration("interval", interval),
		zap.Duration("max_age", maxAge),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Base().Info("session sweeper stopped")
			return
		case <-ticker.C:
			if removed := r.sweepExpired(maxAge); removed > 0 {
				logger.Base().Info("swept expired call sessions", zap.Int("removed", removed))
			}
		}
	}
}

func (r *MemoryRegistry) sweepExpired(maxAge time.Duration) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for leadID, sess := range r.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(r.sessions, leadID)
			removed++
		}
	}
	return removed
}

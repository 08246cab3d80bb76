package trivia

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maps match IDs to their live sessions. A match gets exactly one
// session per process; both players' connections drive the same instance.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	svc      *Service
	hub      Sender
	duration time.Duration
	tick     time.Duration
	logger   zerolog.Logger
}

// NewRegistry creates a session registry.
func NewRegistry(svc *Service, hub Sender, duration, tick time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		svc:      svc,
		hub:      hub,
		duration: duration,
		tick:     tick,
		logger:   logger.With().Str("component", "trivia_registry").Logger(),
	}
}

// GetOrCreate returns the live session for a match, creating it from the
// durable record on first access. A match that was already finalized yields a
// session in the terminal state, so a late connection gets the ended message
// instead of a restarted game.
func (r *Registry) GetOrCreate(ctx context.Context, matchID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[matchID]; ok {
		return sess, nil
	}

	match, err := r.svc.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	sess := NewSession(match, r.svc, r.hub, r.duration, r.tick, r.logger, func() {
		r.Remove(matchID)
	})
	if match.Finalized {
		sess.markEnded()
	}
	r.sessions[matchID] = sess
	return sess, nil
}

// Get returns the live session for a match, if any.
func (r *Registry) Get(matchID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[matchID]
	return sess, ok
}

// Remove drops a session from the registry.
func (r *Registry) Remove(matchID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

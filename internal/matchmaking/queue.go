package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const queueKey = "matchmaking:queue"

// Player identifies a queued user.
type Player struct {
	ID       uuid.UUID
	Username string
}

// WaitingEntry is one user waiting for an opponent. At most one entry exists
// per user.
type WaitingEntry struct {
	Player     Player
	EnqueuedAt time.Time
}

// PairResult reports what AddAndPair did.
type PairResult int

const (
	// ResultAlreadyQueued means the user had a live entry; nothing changed.
	ResultAlreadyQueued PairResult = iota
	// ResultWaiting means the user was enqueued with no opponent available.
	ResultWaiting
	// ResultPaired means an opponent was found and removed from the queue;
	// the initiator was never inserted.
	ResultPaired
)

// Queue is the single-process matchmaking queue. The in-memory map is the
// source of truth; Redis mirrors membership for observability and restart
// inspection, with mirror failures logged and ignored.
type Queue struct {
	mu      sync.Mutex
	waiting map[uuid.UUID]*WaitingEntry
	redis   *redis.Client
	logger  zerolog.Logger
}

// NewQueue creates a matchmaking queue. The Redis client may be nil in tests.
func NewQueue(redisClient *redis.Client, logger zerolog.Logger) *Queue {
	return &Queue{
		waiting: make(map[uuid.UUID]*WaitingEntry),
		redis:   redisClient,
		logger:  logger.With().Str("component", "matchmaking_queue").Logger(),
	}
}

// AddAndPair enqueues the player or pairs them with any existing waiter,
// atomically with respect to concurrent calls. When paired, the opponent's
// entry is removed under the same lock, so no interleaving can hand one
// waiting entry to two matches or leave a paired user enqueued.
func (q *Queue) AddAndPair(ctx context.Context, p Player) (PairResult, *WaitingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.waiting[p.ID]; exists {
		return ResultAlreadyQueued, nil
	}

	for id, entry := range q.waiting {
		if id == p.ID {
			continue
		}
		delete(q.waiting, id)
		q.mirrorRemove(ctx, id)
		q.logger.Info().
			Str("user_id", p.ID.String()).
			Str("opponent_id", id.String()).
			Msg("players paired")
		return ResultPaired, entry
	}

	entry := &WaitingEntry{Player: p, EnqueuedAt: time.Now()}
	q.waiting[p.ID] = entry
	q.mirrorAdd(ctx, entry)
	q.logger.Info().Str("user_id", p.ID.String()).Msg("player enqueued")
	return ResultWaiting, nil
}

// Remove deletes a user's entry; no-op if absent. Safe to call on disconnect
// even if the user was never queued or already paired.
func (q *Queue) Remove(ctx context.Context, userID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.waiting[userID]; !exists {
		return
	}
	delete(q.waiting, userID)
	q.mirrorRemove(ctx, userID)
	q.logger.Info().Str("user_id", userID.String()).Msg("player dequeued")
}

// RemoveMany deletes entries for all given users.
func (q *Queue) RemoveMany(ctx context.Context, userIDs []uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range userIDs {
		if _, exists := q.waiting[id]; exists {
			delete(q.waiting, id)
			q.mirrorRemove(ctx, id)
		}
	}
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Contains reports whether a user has a live waiting entry.
func (q *Queue) Contains(userID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.waiting[userID]
	return exists
}

func (q *Queue) mirrorAdd(ctx context.Context, entry *WaitingEntry) {
	if q.redis == nil {
		return
	}
	err := q.redis.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(entry.EnqueuedAt.Unix()),
		Member: entry.Player.ID.String(),
	}).Err()
	if err != nil {
		q.logger.Warn().Err(err).Msg("queue mirror add failed")
	}
}

func (q *Queue) mirrorRemove(ctx context.Context, userID uuid.UUID) {
	if q.redis == nil {
		return
	}
	if err := q.redis.ZRem(ctx, queueKey, userID.String()).Err(); err != nil {
		q.logger.Warn().Err(err).Msg("queue mirror remove failed")
	}
}

package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when no snapshot exists for the given key.
var ErrStateNotFound = errors.New("state not found")

// StateStore keeps per-match snapshots in Redis: the drawn question IDs and
// each player's progress. Postgres stays the source of truth for scores; the
// snapshots are an operational view of live matches, readable from outside
// the owning process.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a snapshot store with the given entry TTL.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func progressKey(matchID, userID uuid.UUID) string {
	return fmt.Sprintf("match:progress:%s:%s", matchID, userID)
}

func questionsKey(matchID uuid.UUID) string {
	return fmt.Sprintf("match:questions:%s", matchID)
}

// SaveProgress stores one player's current progress.
func (s *StateStore) SaveProgress(ctx context.Context, matchID, userID uuid.UUID, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(matchID, userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// LoadProgress fetches one player's stored progress.
func (s *StateStore) LoadProgress(ctx context.Context, matchID, userID uuid.UUID) (Progress, error) {
	var p Progress
	data, err := s.client.Get(ctx, progressKey(matchID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, ErrStateNotFound
	}
	if err != nil {
		return p, fmt.Errorf("load progress: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("unmarshal progress: %w", err)
	}
	return p, nil
}

// SaveQuestionIDs stores the ordered sequence drawn for a match.
func (s *StateStore) SaveQuestionIDs(ctx context.Context, matchID uuid.UUID, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}
	if err := s.client.Set(ctx, questionsKey(matchID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save question ids: %w", err)
	}
	return nil
}

// LoadQuestionIDs fetches the ordered question sequence for a match.
func (s *StateStore) LoadQuestionIDs(ctx context.Context, matchID uuid.UUID) ([]int64, error) {
	data, err := s.client.Get(ctx, questionsKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question ids: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal question ids: %w", err)
	}
	return ids, nil
}

// Clear drops all snapshots for an ended match.
func (s *StateStore) Clear(ctx context.Context, matchID uuid.UUID, playerIDs ...uuid.UUID) error {
	keys := []string{questionsKey(matchID)}
	for _, id := range playerIDs {
		keys = append(keys, progressKey(matchID, id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear match state: %w", err)
	}
	return nil
}

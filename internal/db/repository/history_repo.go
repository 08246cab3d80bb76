package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// History is a player's cumulative match record.
type History struct {
	UserID        uuid.UUID
	Username      string
	MatchesPlayed int
	MatchesWon    int
	MatchesDrawn  int
	MatchesLost   int
	Points        int
}

// HistoryRepository persists cumulative player histories. Its operations run
// inside the finalize transaction so history and match updates commit together.
type HistoryRepository struct{}

// NewHistoryRepository constructs a history repository.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// GetOrCreate loads a player's history row, creating it on first finalize.
func (r *HistoryRepository) GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, username string) (*History, error) {
	h := &History{}
	err := tx.QueryRow(ctx, `
		INSERT INTO user_history (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING user_id, username, matches_played, matches_won, matches_drawn, matches_lost, points`,
		userID, username,
	).Scan(&h.UserID, &h.Username, &h.MatchesPlayed, &h.MatchesWon, &h.MatchesDrawn, &h.MatchesLost, &h.Points)
	if err != nil {
		return nil, fmt.Errorf("get or create history: %w", err)
	}
	return h, nil
}

// Save writes the mutated counters back.
func (r *HistoryRepository) Save(ctx context.Context, tx pgx.Tx, h *History) error {
	_, err := tx.Exec(ctx, `
		UPDATE user_history
		SET matches_played = $2, matches_won = $3, matches_drawn = $4, matches_lost = $5, points = $6
		WHERE user_id = $1`,
		h.UserID, h.MatchesPlayed, h.MatchesWon, h.MatchesDrawn, h.MatchesLost, h.Points,
	)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ninetyminutes/trivia-duel/internal/trivia"
)

// MatchRepository contains DB helpers for match records and their one-shot
// finalize step.
type MatchRepository struct {
	pool      *pgxpool.Pool
	histories *HistoryRepository
}

var _ trivia.MatchStore = (*MatchRepository)(nil)

// NewMatchRepository constructs a match repository.
func NewMatchRepository(pool *pgxpool.Pool, histories *HistoryRepository) *MatchRepository {
	return &MatchRepository{pool: pool, histories: histories}
}

// Create persists a new active match row for a freshly paired duo.
func (r *MatchRepository) Create(ctx context.Context, one, two trivia.PlayerRef) (uuid.UUID, error) {
	matchID := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (id, player_one, player_one_name, player_two, player_two_name, is_active)
		VALUES ($1, $2, $3, $4, $5, true)`,
		matchID, one.ID, one.Username, two.ID, two.Username,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create match: %w", err)
	}
	return matchID, nil
}

// GetByID fetches one match record.
func (r *MatchRepository) GetByID(ctx context.Context, matchID uuid.UUID) (*trivia.Match, error) {
	m := &trivia.Match{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, player_one, player_one_name, player_two, player_two_name,
		       is_active, created_at, ended_at, score_one, score_two, finalized, result
		FROM matches WHERE id = $1`, matchID,
	).Scan(
		&m.ID, &m.PlayerOne.ID, &m.PlayerOne.Username, &m.PlayerTwo.ID, &m.PlayerTwo.Username,
		&m.Active, &m.CreatedAt, &m.EndedAt, &m.ScoreOne, &m.ScoreTwo, &m.Finalized, &m.Result,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, trivia.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// IncrementScore adds one point for the given player. The 0..10 bound is
// enforced here, in the statement, not merely by convention.
func (r *MatchRepository) IncrementScore(ctx context.Context, matchID, playerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matches
		SET score_one = CASE WHEN player_one = $2 THEN score_one + 1 ELSE score_one END,
		    score_two = CASE WHEN player_two = $2 THEN score_two + 1 ELSE score_two END
		WHERE id = $1
		  AND ((player_one = $2 AND score_one < $3) OR (player_two = $2 AND score_two < $3))`,
		matchID, playerID, trivia.MaxScore,
	)
	if err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return trivia.ErrScoreLimit
	}
	return nil
}

// Finalize flips the finalized flag exactly once and commits the result plus
// both players' cumulative histories in a single transaction. A second call,
// from whichever path lost the race, gets ErrAlreadyFinalized and mutates
// nothing.
func (r *MatchRepository) Finalize(ctx context.Context, matchID uuid.UUID) (*trivia.Outcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	out := &trivia.Outcome{}
	err = tx.QueryRow(ctx, `
		UPDATE matches
		SET finalized = true, is_active = false, ended_at = now()
		WHERE id = $1 AND finalized = false
		RETURNING player_one, player_one_name, player_two, player_two_name, score_one, score_two`,
		matchID,
	).Scan(
		&out.PlayerOne.ID, &out.PlayerOne.Username,
		&out.PlayerTwo.ID, &out.PlayerTwo.Username,
		&out.ScoreOne, &out.ScoreTwo,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		var finalized bool
		if err := r.pool.QueryRow(ctx, `SELECT finalized FROM matches WHERE id = $1`, matchID).Scan(&finalized); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, trivia.ErrMatchNotFound
			}
			return nil, fmt.Errorf("check finalized: %w", err)
		}
		return nil, trivia.ErrAlreadyFinalized
	}
	if err != nil {
		return nil, fmt.Errorf("finalize match: %w", err)
	}

	result := decideResult(out.ScoreOne, out.ScoreTwo)

	one, err := r.histories.GetOrCreate(ctx, tx, out.PlayerOne.ID, out.PlayerOne.Username)
	if err != nil {
		return nil, err
	}
	two, err := r.histories.GetOrCreate(ctx, tx, out.PlayerTwo.ID, out.PlayerTwo.Username)
	if err != nil {
		return nil, err
	}

	applyResult(one, two, result)

	if err := r.histories.Save(ctx, tx, one); err != nil {
		return nil, err
	}
	if err := r.histories.Save(ctx, tx, two); err != nil {
		return nil, err
	}

	switch result {
	case resultPlayerOne:
		out.Winner = &out.PlayerOne
	case resultPlayerTwo:
		out.Winner = &out.PlayerTwo
	}
	if out.Winner != nil {
		if _, err := tx.Exec(ctx, `UPDATE matches SET result = $2 WHERE id = $1`, matchID, out.Winner.ID); err != nil {
			return nil, fmt.Errorf("store result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit finalize: %w", err)
	}
	return out, nil
}

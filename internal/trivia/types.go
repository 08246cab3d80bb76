package trivia

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxScore is the per-player score ceiling; increments past it are rejected
// at the persistence boundary.
const MaxScore = 10

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrAlreadyFinalized = errors.New("match already finalized")
	ErrScoreLimit       = errors.New("score limit reached")
)

// PlayerRef identifies one participant of a match.
type PlayerRef struct {
	ID       uuid.UUID
	Username string
}

// Question is one prompt with its accepted-answer set.
type Question struct {
	ID      int64
	Prompt  string
	Answers []string
}

// Match is the durable record of one trivia session between two players.
type Match struct {
	ID        uuid.UUID
	PlayerOne PlayerRef
	PlayerTwo PlayerRef
	Active    bool
	CreatedAt time.Time
	EndedAt   *time.Time
	ScoreOne  int
	ScoreTwo  int
	Finalized bool
	Result    *uuid.UUID // winner id, nil for draw or while live
}

// Players returns both participants.
func (m *Match) Players() [2]PlayerRef {
	return [2]PlayerRef{m.PlayerOne, m.PlayerTwo}
}

// HasPlayer reports whether the given user participates in this match.
func (m *Match) HasPlayer(userID uuid.UUID) bool {
	return m.PlayerOne.ID == userID || m.PlayerTwo.ID == userID
}

// Progress tracks one player's path through the shared question sequence.
// It lives in session memory only; correct answers fold into the match score.
type Progress struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
	Index    int `json:"index"`
}

// Outcome is the result of the one-shot finalize step.
type Outcome struct {
	Winner    *PlayerRef // nil means draw
	PlayerOne PlayerRef
	PlayerTwo PlayerRef
	ScoreOne  int
	ScoreTwo  int
}

// QuestionStore supplies random question samples; read-only to the core.
type QuestionStore interface {
	SampleRandom(ctx context.Context, n int) ([]Question, error)
}

// MatchStore is the durable match record the session owns while live.
type MatchStore interface {
	GetByID(ctx context.Context, matchID uuid.UUID) (*Match, error)
	// IncrementScore adds one point for the given player, bounded at
	// MaxScore. Returns ErrScoreLimit when the increment is rejected.
	IncrementScore(ctx context.Context, matchID, playerID uuid.UUID) error
	// Finalize runs the one-shot end-of-match step: flips the finalized
	// flag, decides the result, and commits both players' cumulative
	// histories in the same transaction. Returns ErrAlreadyFinalized if
	// another path got there first.
	Finalize(ctx context.Context, matchID uuid.UUID) (*Outcome, error)
}

package trivia

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service implements the game rules on top of the stores: question drawing,
// answer validation, score increments, and the one-shot finalize.
type Service struct {
	questions QuestionStore
	matches   MatchStore
	state     *StateStore
	logger    zerolog.Logger
	perMatch  int
}

// NewService constructs the game service. The state store may be nil, in
// which case snapshots are skipped.
func NewService(questions QuestionStore, matches MatchStore, state *StateStore, perMatch int, logger zerolog.Logger) *Service {
	return &Service{
		questions: questions,
		matches:   matches,
		state:     state,
		logger:    logger.With().Str("component", "trivia_service").Logger(),
		perMatch:  perMatch,
	}
}

// QuestionsPerMatch returns the shared sequence length.
func (s *Service) QuestionsPerMatch() int {
	return s.perMatch
}

// LoadMatch fetches the durable match record.
func (s *Service) LoadMatch(ctx context.Context, matchID uuid.UUID) (*Match, error) {
	return s.matches.GetByID(ctx, matchID)
}

// DrawQuestions samples the match's question sequence once. Both players
// receive the same sequence in the same order.
func (s *Service) DrawQuestions(ctx context.Context, matchID uuid.UUID) ([]Question, error) {
	questions, err := s.questions.SampleRandom(ctx, s.perMatch)
	if err != nil {
		return nil, fmt.Errorf("draw questions: %w", err)
	}

	if s.state != nil {
		ids := make([]int64, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		if err := s.state.SaveQuestionIDs(ctx, matchID, ids); err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID.String()).Msg("question snapshot failed")
		}
	}
	return questions, nil
}

// CheckAnswer validates a submission against the question's accepted set.
// Comparison is case-insensitive and otherwise exact.
func (s *Service) CheckAnswer(q Question, answer string) bool {
	for _, accepted := range q.Answers {
		if strings.EqualFold(accepted, answer) {
			return true
		}
	}
	return false
}

// AddPoint credits one point to the player, bounded at MaxScore by the store.
func (s *Service) AddPoint(ctx context.Context, matchID, playerID uuid.UUID) error {
	return s.matches.IncrementScore(ctx, matchID, playerID)
}

// Finalize runs the transactional end-of-match step.
func (s *Service) Finalize(ctx context.Context, matchID uuid.UUID) (*Outcome, error) {
	return s.matches.Finalize(ctx, matchID)
}

// SaveProgress snapshots one player's progress; failures are logged, never
// propagated, because the snapshot is not load-bearing for the live match.
func (s *Service) SaveProgress(ctx context.Context, matchID, userID uuid.UUID, p Progress) {
	if s.state == nil {
		return
	}
	if err := s.state.SaveProgress(ctx, matchID, userID, p); err != nil {
		s.logger.Warn().Err(err).
			Str("match_id", matchID.String()).
			Str("user_id", userID.String()).
			Msg("progress snapshot failed")
	}
}

// ClearState drops the match's Redis snapshots after it ends; best effort.
func (s *Service) ClearState(ctx context.Context, matchID uuid.UUID, playerIDs ...uuid.UUID) {
	if s.state == nil {
		return
	}
	if err := s.state.Clear(ctx, matchID, playerIDs...); err != nil {
		s.logger.Warn().Err(err).Str("match_id", matchID.String()).Msg("state clear failed")
	}
}

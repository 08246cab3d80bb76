package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ninetyminutes/trivia-duel/internal/trivia"
)

// QuestionRepository serves random question samples from the question bank.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

var _ trivia.QuestionStore = (*QuestionRepository)(nil)

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// SampleRandom returns n random questions with their accepted-answer sets.
func (r *QuestionRepository) SampleRandom(ctx context.Context, n int) ([]trivia.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, answers FROM trivia_questions ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer rows.Close()

	var questions []trivia.Question
	for rows.Next() {
		var q trivia.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Answers); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	if len(questions) < n {
		return nil, fmt.Errorf("insufficient questions: need %d got %d", n, len(questions))
	}
	return questions, nil
}

package trivia

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	ws "github.com/ninetyminutes/trivia-duel/pkg/http/ws"
)

// In-game messages.
const (
	msgGameStarted    = "The game has started. Go!"
	msgAllAnswered    = "You have already answered all questions"
	msgInvalidSession = "Invalid game session"
	msgWaitResults    = "You have answered all questions. Wait for the results."
	msgMatchOver      = "This match has already ended."

	msgWin  = "Nicely done! You won!"
	msgLose = "Unlucky, you lost."
	msgDraw = "You drew! A point shared!"
)

var (
	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trivia_answers_total",
		Help: "Answer submissions by validation result.",
	}, []string{"result"})

	matchesFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_matches_finalized_total",
		Help: "Matches finalized by this process.",
	})
)

// Sender delivers payloads to live match connections, either addressed to
// one user or fanned out to a match group. Implemented by *ws.Hub.
type Sender interface {
	SendToUser(userID uuid.UUID, payload any) error
	BroadcastToMatch(matchID uuid.UUID, payload any) error
}

// Session is the in-memory state machine for one live match. Both players
// share one session; each holds independent progress through the shared
// question sequence. The countdown ticker and the expiry timer run as
// goroutines owned by the session, and all end paths converge on End, which
// fires exactly once.
type Session struct {
	match    *Match
	svc      *Service
	hub      Sender
	logger   zerolog.Logger
	duration time.Duration
	tick     time.Duration

	mu        sync.Mutex
	questions []Question
	progress  map[uuid.UUID]*Progress
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	// gate serializes the end paths: expiry, both-players-exhausted, and
	// any future administrative stop. ended flips inside the gate, before
	// finalize, so the loser of the race observes it and backs off.
	gate  sync.Mutex
	ended atomic.Bool

	onEnd func()
}

// NewSession creates a session for a loaded match record. onEnd runs after
// the session ends, whatever the path; the registry uses it to drop the entry.
func NewSession(match *Match, svc *Service, hub Sender, duration, tick time.Duration, logger zerolog.Logger, onEnd func()) *Session {
	return &Session{
		match:    match,
		svc:      svc,
		hub:      hub,
		logger:   logger.With().Str("component", "trivia_session").Str("match_id", match.ID.String()).Logger(),
		duration: duration,
		tick:     tick,
		progress: make(map[uuid.UUID]*Progress),
		onEnd:    onEnd,
	}
}

// MatchID returns the durable match this session drives.
func (s *Session) MatchID() uuid.UUID {
	return s.match.ID
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return s.ended.Load()
}

// HasPlayer reports whether the user participates in this match.
func (s *Session) HasPlayer(userID uuid.UUID) bool {
	return s.match.HasPlayer(userID)
}

// markEnded puts a freshly created session straight into the terminal state.
// Used when the match record is already finalized.
func (s *Session) markEnded() {
	s.ended.Store(true)
}

// Join brings one player into the session. The first join starts the match:
// questions are drawn once, and the countdown ticker and expiry timer spin
// up. A player joining later, or rejoining after a disconnect, resumes at
// their current question.
func (s *Session) Join(ctx context.Context, userID uuid.UUID) {
	if s.ended.Load() {
		s.send(userID, ws.StatusPayload{Message: msgMatchOver})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		if err := s.start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("session start failed")
			s.send(userID, ws.StatusPayload{Message: msgInvalidSession})
			return
		}
	}

	prog := s.ensureProgress(userID)
	s.send(userID, ws.StatusPayload{Message: msgGameStarted})

	if prog.Answered >= len(s.questions) {
		s.send(userID, ws.StatusPayload{Message: msgWaitResults})
		return
	}
	s.sendQuestion(userID, prog)
}

// start draws the question sequence and launches the clock goroutines.
// Caller holds mu.
func (s *Session) start(ctx context.Context) error {
	questions, err := s.svc.DrawQuestions(ctx, s.match.ID)
	if err != nil {
		return err
	}
	s.questions = questions
	s.started = true
	s.startedAt = time.Now()

	clockCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.runTicker(clockCtx)
	go s.runTimer(clockCtx)

	s.logger.Info().Int("questions", len(questions)).Msg("match started")
	return nil
}

func (s *Session) ensureProgress(userID uuid.UUID) *Progress {
	prog, ok := s.progress[userID]
	if !ok {
		prog = &Progress{}
		s.progress[userID] = prog
	}
	return prog
}

// SubmitAnswer processes one answer frame. Correctness is judged against the
// player's current question only; the running totals in the response reflect
// the submission being processed.
func (s *Session) SubmitAnswer(ctx context.Context, userID uuid.UUID, questionID int64, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.send(userID, ws.StatusPayload{Message: msgInvalidSession})
		return
	}

	prog := s.ensureProgress(userID)
	if prog.Answered >= len(s.questions) {
		s.send(userID, ws.StatusPayload{Message: msgAllAnswered})
		return
	}

	if s.ended.Load() {
		s.send(userID, ws.StatusPayload{Message: msgInvalidSession})
		return
	}

	question := s.questions[prog.Index]
	if question.ID != questionID {
		s.send(userID, ws.StatusPayload{Message: msgInvalidSession})
		return
	}

	result := ws.ResultIncorrect
	if s.svc.CheckAnswer(question, answer) {
		result = ws.ResultCorrect
		prog.Correct++
		if err := s.svc.AddPoint(ctx, s.match.ID, userID); err != nil {
			if errors.Is(err, ErrScoreLimit) {
				s.logger.Debug().Str("user_id", userID.String()).Msg("score increment rejected at limit")
			} else {
				s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("score increment failed")
			}
		}
	}
	answersTotal.WithLabelValues(result).Inc()

	prog.Answered++
	prog.Index++
	s.svc.SaveProgress(ctx, s.match.ID, userID, *prog)

	s.send(userID, ws.AnswerResultPayload{
		Result:         result,
		QuestionCount:  prog.Answered,
		CorrectAnswers: prog.Correct,
	})

	if prog.Answered < len(s.questions) {
		s.sendQuestion(userID, prog)
		return
	}

	s.send(userID, ws.StatusPayload{Message: msgWaitResults})

	if s.allExhausted() {
		// End takes the gate, not mu; run it off this goroutine so the
		// answer path returns promptly.
		go s.End(context.Background())
	}
}

// allExhausted reports whether both players have answered the full sequence.
// Caller holds mu.
func (s *Session) allExhausted() bool {
	for _, p := range s.match.Players() {
		prog, ok := s.progress[p.ID]
		if !ok || prog.Answered < len(s.questions) {
			return false
		}
	}
	return true
}

// sendQuestion delivers the player's current question with a 1-based index.
// Caller holds mu.
func (s *Session) sendQuestion(userID uuid.UUID, prog *Progress) {
	q := s.questions[prog.Index]
	s.send(userID, ws.QuestionPayload{
		Question:   q.Prompt,
		QuestionID: q.ID,
		Index:      prog.Index + 1,
	})
}

// runTicker pushes the remaining time to both players once per tick, starting
// immediately.
func (s *Session) runTicker(ctx context.Context) {
	s.broadcast(ws.CountdownPayload{RemainingTime: s.remaining()})

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := s.remaining()
			s.broadcast(ws.CountdownPayload{RemainingTime: remaining})
			if remaining <= 0 {
				return
			}
		}
	}
}

// runTimer ends the match when the clock runs out.
func (s *Session) runTimer(ctx context.Context) {
	timer := time.NewTimer(s.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		s.End(context.Background())
	}
}

func (s *Session) remaining() int {
	elapsed := time.Since(s.startedAt)
	left := int(math.Round((s.duration - elapsed).Seconds()))
	if left < 0 {
		return 0
	}
	return left
}

// End finishes the match exactly once: it stops the clocks, runs the
// transactional finalize, and tells each player their own result. Concurrent
// callers past the first return without touching anything.
func (s *Session) End(ctx context.Context) {
	s.gate.Lock()
	defer s.gate.Unlock()

	if s.ended.Load() {
		return
	}
	s.ended.Store(true)

	if s.cancel != nil {
		s.cancel()
	}

	defer func() {
		if s.onEnd != nil {
			s.onEnd()
		}
	}()

	outcome, err := s.svc.Finalize(ctx, s.match.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			s.logger.Warn().Msg("match was finalized elsewhere")
		} else {
			s.logger.Error().Err(err).Msg("finalize failed")
		}
		return
	}
	matchesFinalizedTotal.Inc()

	s.notifyResult(outcome)
	s.svc.ClearState(ctx, s.match.ID, s.match.PlayerOne.ID, s.match.PlayerTwo.ID)

	s.logger.Info().
		Int("score_one", outcome.ScoreOne).
		Int("score_two", outcome.ScoreTwo).
		Msg("match ended")
}

// notifyResult sends each player their own game-over message. A player who
// has disconnected simply misses it; the result is already durable.
func (s *Session) notifyResult(outcome *Outcome) {
	for _, p := range []PlayerRef{outcome.PlayerOne, outcome.PlayerTwo} {
		message := msgDraw
		if outcome.Winner != nil {
			if outcome.Winner.ID == p.ID {
				message = msgWin
			} else {
				message = msgLose
			}
		}
		s.send(p.ID, ws.GameOverPayload{
			Message:       message,
			User:          p.Username,
			GameOver:      true,
			RemainingTime: 0,
		})
	}
}

// broadcast fans a payload out to the match group; members without a live
// connection are skipped.
func (s *Session) broadcast(payload any) {
	if err := s.hub.BroadcastToMatch(s.match.ID, payload); err != nil {
		s.logger.Debug().Err(err).Msg("broadcast skipped members")
	}
}

func (s *Session) send(userID uuid.UUID, payload any) {
	if err := s.hub.SendToUser(userID, payload); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID.String()).Msg("send skipped")
	}
}

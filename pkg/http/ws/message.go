package ws

// Client actions.
const (
	ActionSubmitAnswer = "submit_answer"
)

// ClientMessage is the inbound frame shared by both connection types.
// Unknown actions are ignored; the matchmaking socket sends nothing inbound.
type ClientMessage struct {
	Action     string `json:"action"`
	Answer     string `json:"answer,omitempty"`
	QuestionID int64  `json:"question_id,omitempty"`
}

// Server messages (outgoing). The protocol uses flat JSON payloads rather
// than a typed envelope; clients key off the fields present.

// StatusPayload carries informational messages during matchmaking and play.
type StatusPayload struct {
	Message string `json:"message"`
}

// MatchFoundPayload tells a queued player where to connect for their match.
type MatchFoundPayload struct {
	URL         string `json:"url"`
	Message     string `json:"message"`
	GameStarted bool   `json:"gameStarted"`
}

// QuestionPayload delivers one question with the recipient's 1-based index.
type QuestionPayload struct {
	Question   string `json:"question"`
	QuestionID int64  `json:"question_id"`
	Index      int    `json:"index"`
}

// Answer result values.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

// AnswerResultPayload reports correctness and the player's running totals.
type AnswerResultPayload struct {
	Result         string `json:"result"`
	QuestionCount  int    `json:"question_count"`
	CorrectAnswers int    `json:"correct_answers"`
}

// CountdownPayload is the once-per-second remaining-time tick.
type CountdownPayload struct {
	RemainingTime int `json:"remaining_time"`
}

// GameOverPayload is the end-of-match message, addressed per recipient.
// The user field is kept so existing clients can filter by username.
type GameOverPayload struct {
	Message       string `json:"message"`
	User          string `json:"user"`
	GameOver      bool   `json:"game_over"`
	RemainingTime int    `json:"remaining_time"`
}

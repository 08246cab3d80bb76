package matchmaking

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ninetyminutes/trivia-duel/internal/auth"
	"github.com/ninetyminutes/trivia-duel/internal/trivia"
	httperrors "github.com/ninetyminutes/trivia-duel/pkg/http/errors"
	ws "github.com/ninetyminutes/trivia-duel/pkg/http/ws"
)

// Queue status messages.
const (
	msgAlreadyQueued = "You are already in the queue."
	msgWaiting       = "You are now in the waiting list. Searching for an opponent."
	msgGameStarting  = "Game is starting. The timer is set to begin..."
)

var pairsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "matchmaking_pairs_total",
	Help: "Number of player pairs matched into a trivia game.",
})

// MatchCreator persists a new match record for a freshly paired duo.
type MatchCreator interface {
	Create(ctx context.Context, one, two trivia.PlayerRef) (uuid.UUID, error)
}

// Notifier pushes a payload to a specific user's matchmaking connection by
// identity. Implemented by *ws.Hub.
type Notifier interface {
	SendToUser(userID uuid.UUID, payload any) error
}

// sender delivers payloads to the initiating connection itself.
type sender interface {
	Send(payload any) error
}

// Handler owns the matchmaking WebSocket endpoint: it registers the user's
// notification route, enqueues them, and pairs them with a waiting opponent.
type Handler struct {
	queue    *Queue
	matches  MatchCreator
	hub      *ws.Hub
	notifier Notifier
	tokens   *auth.Manager
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a matchmaking WebSocket handler.
func NewHandler(queue *Queue, matches MatchCreator, hub *ws.Hub, tokens *auth.Manager, upgrader *websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		queue:    queue,
		matches:  matches,
		hub:      hub,
		notifier: hub,
		tokens:   tokens,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "matchmaking").Logger(),
	}
}

// HandleWebSocket upgrades the connection, authenticates the user, and runs
// the enqueue/pair flow. The connection then idles until the client hangs up;
// disconnect removes the queue entry.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("matchmaking token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	player := Player{ID: claims.UserID, Username: claims.Username}
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(player.ID, wsConn)

	go wsConn.WritePump()

	h.connect(r.Context(), player, wsConn)

	// The matchmaking socket carries no client actions; the pump only
	// tracks liveness.
	wsConn.ReadPump(func(ws.ClientMessage) error { return nil })

	h.queue.Remove(context.Background(), player.ID)
	h.hub.UnregisterConnection(player.ID, wsConn)
}

// connect runs the enqueue-or-pair step for a newly opened connection.
func (h *Handler) connect(ctx context.Context, player Player, conn sender) {
	result, opponent := h.queue.AddAndPair(ctx, player)

	switch result {
	case ResultAlreadyQueued:
		h.send(conn, ws.StatusPayload{Message: msgAlreadyQueued})
	case ResultWaiting:
		h.send(conn, ws.StatusPayload{Message: msgWaiting})
	case ResultPaired:
		h.startMatch(ctx, player, opponent.Player, conn)
	}
}

// startMatch creates the match record and notifies both players. The pairing
// runs on the initiator's connection, so the opponent is reached through the
// hub by identity rather than through any connection reference.
func (h *Handler) startMatch(ctx context.Context, player, opponent Player, conn sender) {
	matchID, err := h.matches.Create(ctx,
		trivia.PlayerRef{ID: player.ID, Username: player.Username},
		trivia.PlayerRef{ID: opponent.ID, Username: opponent.Username},
	)
	if err != nil {
		h.logger.Error().Err(err).
			Str("user_id", player.ID.String()).
			Str("opponent_id", opponent.ID.String()).
			Msg("match creation failed")
		h.send(conn, ws.StatusPayload{Message: "Could not start a match. Please reconnect to queue again."})
		return
	}

	pairsTotal.Inc()
	payload := ws.MatchFoundPayload{
		URL:         fmt.Sprintf("/ws/trivia/%s/", matchID),
		Message:     msgGameStarting,
		GameStarted: true,
	}

	h.send(conn, payload)
	if err := h.notifier.SendToUser(opponent.ID, payload); err != nil {
		h.logger.Warn().Err(err).
			Str("opponent_id", opponent.ID.String()).
			Msg("opponent notification failed")
	}

	h.logger.Info().
		Str("match_id", matchID.String()).
		Str("player_one", player.Username).
		Str("player_two", opponent.Username).
		Msg("match created")
}

func (h *Handler) send(conn sender, payload any) {
	if err := conn.Send(payload); err != nil {
		h.logger.Warn().Err(err).Msg("send failed")
	}
}

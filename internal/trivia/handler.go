package trivia

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ninetyminutes/trivia-duel/internal/auth"
	httperrors "github.com/ninetyminutes/trivia-duel/pkg/http/errors"
	ws "github.com/ninetyminutes/trivia-duel/pkg/http/ws"
)

// Handler owns the per-match WebSocket endpoint. Each accepted connection
// joins the match's shared session and routes answer frames into it.
type Handler struct {
	registry *Registry
	hub      *ws.Hub
	tokens   *auth.Manager
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates the trivia WebSocket handler.
func NewHandler(registry *Registry, hub *ws.Hub, tokens *auth.Manager, upgrader *websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		tokens:   tokens,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "trivia_handler").Logger(),
	}
}

// HandleWebSocket serves GET /ws/trivia/{id}/. The connection authenticates,
// joins the match session, and then pumps answer frames until the client
// hangs up. Disconnecting does not end the match.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("trivia token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidMatchID, "Invalid match id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID := claims.UserID
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(userID, wsConn)
	go wsConn.WritePump()

	defer func() {
		h.hub.LeaveMatch(matchID, userID)
		h.hub.UnregisterConnection(userID, wsConn)
	}()

	sess, err := h.registry.GetOrCreate(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			if sendErr := wsConn.Send(ws.StatusPayload{Message: msgInvalidSession}); sendErr != nil {
				h.logger.Warn().Err(sendErr).Msg("send failed")
			}
			// Keep reading so the client sees the message before closing.
			wsConn.ReadPump(func(ws.ClientMessage) error { return nil })
			return
		}
		h.logger.Error().Err(err).Str("match_id", matchID.String()).Msg("session lookup failed")
		wsConn.Close()
		return
	}

	if !sess.HasPlayer(userID) {
		h.logger.Warn().
			Str("match_id", matchID.String()).
			Str("user_id", userID.String()).
			Msg("non-participant connection rejected")
		if sendErr := wsConn.Send(ws.StatusPayload{Message: msgInvalidSession}); sendErr != nil {
			h.logger.Warn().Err(sendErr).Msg("send failed")
		}
		wsConn.ReadPump(func(ws.ClientMessage) error { return nil })
		return
	}

	h.hub.JoinMatch(matchID, userID)
	sess.Join(r.Context(), userID)

	wsConn.ReadPump(func(msg ws.ClientMessage) error {
		switch msg.Action {
		case ws.ActionSubmitAnswer:
			sess.SubmitAnswer(context.Background(), userID, msg.QuestionID, msg.Answer)
		default:
			h.logger.Debug().Str("action", msg.Action).Msg("unknown action ignored")
		}
		return nil
	})
}

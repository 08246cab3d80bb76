package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn() *Connection {
	return NewConnection(nil, zerolog.Nop())
}

func drain(t *testing.T, c *Connection) []any {
	t.Helper()
	var out []any
	for {
		select {
		case p := <-c.sendCh:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	conn := newTestConn()

	err := hub.SendToUser(userID, StatusPayload{Message: "hello"})
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	hub.RegisterConnection(userID, conn)
	require.NoError(t, hub.SendToUser(userID, StatusPayload{Message: "hello"}))

	payloads := drain(t, conn)
	require.Len(t, payloads, 1)
	assert.Equal(t, StatusPayload{Message: "hello"}, payloads[0])
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	old := newTestConn()
	hub.RegisterConnection(userID, old)

	fresh := newTestConn()
	hub.RegisterConnection(userID, fresh)

	// The replaced connection is closed; sends land on the new one.
	assert.ErrorIs(t, old.Send("x"), ErrConnectionClosed)
	require.NoError(t, hub.SendToUser(userID, "y"))
	assert.Len(t, drain(t, fresh), 1)
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	old := newTestConn()
	hub.RegisterConnection(userID, old)

	fresh := newTestConn()
	hub.RegisterConnection(userID, fresh)

	// The old connection's teardown must not evict the reconnect.
	hub.UnregisterConnection(userID, old)
	require.NoError(t, hub.SendToUser(userID, "still here"))

	hub.UnregisterConnection(userID, fresh)
	assert.ErrorIs(t, hub.SendToUser(userID, "gone"), ErrConnectionNotFound)
}

func TestBroadcastToMatchSkipsDisconnected(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	matchID := uuid.New()
	one, two := uuid.New(), uuid.New()

	oneConn := newTestConn()
	hub.RegisterConnection(one, oneConn)
	hub.JoinMatch(matchID, one)
	hub.JoinMatch(matchID, two) // never connected

	err := hub.BroadcastToMatch(matchID, CountdownPayload{RemainingTime: 30})
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.Len(t, drain(t, oneConn), 1)
}

func TestLeaveMatchDropsEmptyGroups(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	matchID := uuid.New()
	userID := uuid.New()

	hub.JoinMatch(matchID, userID)
	hub.JoinMatch(matchID, userID) // idempotent
	hub.LeaveMatch(matchID, userID)

	hub.mu.RLock()
	_, exists := hub.matches[matchID]
	hub.mu.RUnlock()
	assert.False(t, exists)
}

package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninetyminutes/trivia-duel/internal/trivia"
	ws "github.com/ninetyminutes/trivia-duel/pkg/http/ws"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []any
}

func (f *fakeSender) Send(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeSender) payloads() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.sent...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[uuid.UUID][]any
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[uuid.UUID][]any)}
}

func (f *fakeNotifier) SendToUser(userID uuid.UUID, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], payload)
	return nil
}

type fakeMatchCreator struct {
	mu      sync.Mutex
	err     error
	created [][2]trivia.PlayerRef
	lastID  uuid.UUID
}

func (f *fakeMatchCreator) Create(_ context.Context, one, two trivia.PlayerRef) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.lastID = uuid.New()
	f.created = append(f.created, [2]trivia.PlayerRef{one, two})
	return f.lastID, nil
}

func newTestHandler(creator *fakeMatchCreator, notifier *fakeNotifier) *Handler {
	return &Handler{
		queue:    NewQueue(nil, zerolog.Nop()),
		matches:  creator,
		notifier: notifier,
		logger:   zerolog.Nop(),
	}
}

func TestConnectEnqueuesFirstPlayer(t *testing.T) {
	h := newTestHandler(&fakeMatchCreator{}, newFakeNotifier())
	conn := &fakeSender{}
	alice := testPlayer("alice")

	h.connect(context.Background(), alice, conn)

	payloads := conn.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, ws.StatusPayload{Message: msgWaiting}, payloads[0])
	assert.True(t, h.queue.Contains(alice.ID))
}

func TestConnectRejectsDuplicateEntry(t *testing.T) {
	h := newTestHandler(&fakeMatchCreator{}, newFakeNotifier())
	alice := testPlayer("alice")

	h.connect(context.Background(), alice, &fakeSender{})

	second := &fakeSender{}
	h.connect(context.Background(), alice, second)

	payloads := second.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, ws.StatusPayload{Message: msgAlreadyQueued}, payloads[0])
	assert.Equal(t, 1, h.queue.Len())
}

func TestConnectPairsAndNotifiesBothPlayers(t *testing.T) {
	creator := &fakeMatchCreator{}
	notifier := newFakeNotifier()
	h := newTestHandler(creator, notifier)
	alice := testPlayer("alice")
	bob := testPlayer("bob")

	h.connect(context.Background(), alice, &fakeSender{})

	bobConn := &fakeSender{}
	h.connect(context.Background(), bob, bobConn)

	require.Len(t, creator.created, 1)
	assert.Equal(t, bob.ID, creator.created[0][0].ID)
	assert.Equal(t, alice.ID, creator.created[0][1].ID)

	want := ws.MatchFoundPayload{
		URL:         fmt.Sprintf("/ws/trivia/%s/", creator.lastID),
		Message:     msgGameStarting,
		GameStarted: true,
	}

	payloads := bobConn.payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, want, payloads[0])

	aliceMsgs := notifier.sent[alice.ID]
	require.Len(t, aliceMsgs, 1)
	assert.Equal(t, want, aliceMsgs[0])

	assert.Equal(t, 0, h.queue.Len())
}

func TestConnectReportsMatchCreationFailure(t *testing.T) {
	creator := &fakeMatchCreator{err: errors.New("db down")}
	h := newTestHandler(creator, newFakeNotifier())
	alice := testPlayer("alice")
	bob := testPlayer("bob")

	h.connect(context.Background(), alice, &fakeSender{})

	bobConn := &fakeSender{}
	h.connect(context.Background(), bob, bobConn)

	payloads := bobConn.payloads()
	require.Len(t, payloads, 1)
	status, ok := payloads[0].(ws.StatusPayload)
	require.True(t, ok)
	assert.Contains(t, status.Message, "Could not start a match")
}

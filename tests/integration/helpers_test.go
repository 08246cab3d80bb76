//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ninetyminutes/trivia-duel/internal/auth"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// issueToken signs an access token with the same secret the server under test
// runs with; tokens are normally issued by the account service, which the
// integration environment does not run.
func issueToken(t *testing.T, userID uuid.UUID, username string) string {
	t.Helper()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		t.Skip("JWT_SECRET not set; skipping")
	}

	tokens := auth.NewManager(auth.TokenConfig{Secret: []byte(secret)})
	token, err := tokens.Issue(userID, username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// dialWS opens a WebSocket connection to the given path with the token
// attached as a query parameter.
func dialWS(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()

	baseURL := envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
	wsBase := strings.Replace(baseURL, "http", "ws", 1)
	target := fmt.Sprintf("%s%s?token=%s", wsBase, path, url.QueryEscape(token))

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one decodes with a value for at least one of
// the given keys, or the deadline passes. Countdown ticks and other
// interleaved frames are skipped.
func readUntil(t *testing.T, conn *websocket.Conn, keys ...string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message: %v", err)
		}

		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		for _, key := range keys {
			if _, ok := frame[key]; ok {
				return frame
			}
		}
	}
	t.Fatalf("no frame with any of %v before deadline", keys)
	return nil
}

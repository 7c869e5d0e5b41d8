package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/ws"
)

// stubTransport is a ws.Transport whose handshake always succeeds, for tests
// that never touch a real socket.
type stubTransport struct{}

func (stubTransport) Open(context.Context) error               { return nil }
func (stubTransport) Read(context.Context) ([]byte, error)     { return nil, io.EOF }
func (stubTransport) Write(context.Context, []byte) error      { return nil }
func (stubTransport) Close(websocket.StatusCode, string) error { return nil }

// setupLobby registers alice and bob, creates a lobby and joins both. Alice
// is player 1 (lead), bob player 2.
func setupLobby(t *testing.T, supersede bool) (*testEnv, string, string) {
	t.Helper()

	env := startTestServer(t, supersede)
	aliceToken := env.registerAndLogin(t, "alice")
	bobToken := env.registerAndLogin(t, "bob")

	lobby := createLobby(t, env, aliceToken, "trivia night")
	joinLobby(t, env, aliceToken, lobby.ID)
	joinLobby(t, env, bobToken, lobby.ID)

	return env, aliceToken, bobToken
}

func dialLobby(ctx context.Context, t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws/lobby/1?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial lobby: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	return conn
}

func readMessage(ctx context.Context, t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()

	var msg ws.Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestWSRejectsUnauthenticated(t *testing.T) {
	env := startTestServer(t, true)

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws/lobby/1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatalf("expected dial without token to fail")
	}
}

func TestWSRejectsNonPlayer(t *testing.T) {
	env, _, _ := setupLobby(t, true)
	carolToken := env.registerAndLogin(t, "carol")

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws/lobby/1?token=" + carolToken
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for non-player")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}

func TestWSConnectBroadcastAndRelay(t *testing.T) {
	env, aliceToken, bobToken := setupLobby(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialLobby(ctx, t, env, aliceToken)
	if msg := readMessage(ctx, t, alice); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected own connect announcement, got %+v", msg)
	}

	bob := dialLobby(ctx, t, env, bobToken)
	if msg := readMessage(ctx, t, bob); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected bob's connect announcement, got %+v", msg)
	}
	if msg := readMessage(ctx, t, alice); msg.Type != ws.MessageTypeConnect || !strings.Contains(msg.Text, "Player 2") {
		t.Fatalf("expected bob's join announced to alice, got %+v", msg)
	}

	// Broadcast chat.
	if err := wsjson.Write(ctx, bob, map[string]any{"message": "hi there"}); err != nil {
		t.Fatalf("write chat: %v", err)
	}
	msg := readMessage(ctx, t, alice)
	if msg.Type != ws.MessageTypeChat || msg.Text != "hi there" || msg.Sender != 2 {
		t.Fatalf("unexpected relayed message: %+v", msg)
	}
	if msg := readMessage(ctx, t, bob); msg.Sender != 2 {
		t.Fatalf("broadcast should include the sender, got %+v", msg)
	}

	// Targeted send reaches only the listed players.
	if err := wsjson.Write(ctx, alice, map[string]any{"message": "psst bob", "receivers": []int64{2}}); err != nil {
		t.Fatalf("write targeted: %v", err)
	}
	if msg := readMessage(ctx, t, bob); msg.Text != "psst bob" || msg.Sender != 1 {
		t.Fatalf("unexpected targeted message: %+v", msg)
	}

	// Alice never sees her targeted whisper; the next frame she receives is
	// bob's disconnect.
	if err := bob.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close bob: %v", err)
	}
	if msg := readMessage(ctx, t, alice); msg.Type != ws.MessageTypeDisconnect || !strings.Contains(msg.Text, "Player 2") {
		t.Fatalf("expected bob's disconnect, got %+v", msg)
	}
}

func TestWSInvalidFrameClosesSession(t *testing.T) {
	env, aliceToken, _ := setupLobby(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialLobby(ctx, t, env, aliceToken)
	if msg := readMessage(ctx, t, alice); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected connect announcement, got %+v", msg)
	}

	if err := wsjson.Write(ctx, alice, map[string]any{"bogus": true}); err != nil {
		t.Fatalf("write invalid frame: %v", err)
	}

	var err error
	for err == nil {
		var msg ws.Message
		err = wsjson.Read(ctx, alice, &msg)
	}
	if websocket.CloseStatus(err) != websocket.StatusUnsupportedData {
		t.Fatalf("expected unsupported-data close, got %v", err)
	}
}

func TestWSSupersedeClosesOldSession(t *testing.T) {
	env, aliceToken, _ := setupLobby(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := dialLobby(ctx, t, env, aliceToken)
	if msg := readMessage(ctx, t, first); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected connect announcement, got %+v", msg)
	}

	second := dialLobby(ctx, t, env, aliceToken)
	if msg := readMessage(ctx, t, second); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected connect announcement on new session, got %+v", msg)
	}

	var err error
	for err == nil {
		var msg ws.Message
		err = wsjson.Read(ctx, first, &msg)
	}
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy-violation close on old session, got %v", err)
	}

	// The new session keeps working.
	if err := wsjson.Write(ctx, second, map[string]any{"message": "still here"}); err != nil {
		t.Fatalf("write on new session: %v", err)
	}
	if msg := readMessage(ctx, t, second); msg.Text != "still here" {
		t.Fatalf("unexpected echo: %+v", msg)
	}
}

func TestWSOpenSupersededBeforeHandshakeAnswersConflict(t *testing.T) {
	logger := zerolog.Nop()
	manager := ws.NewConnectionManager(&logger)
	handler := NewWSHandler(nil, nil, manager, true, &logger)

	room := manager.GetOrCreateRoom(1)
	conn, err := room.CreateConnection(1, stubTransport{}, true)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	// A rapid reconnect supersedes the session before its handshake runs.
	replacement, err := room.CreateConnection(1, stubTransport{}, true)
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if err := replacement.Open(context.Background()); err != nil {
		t.Fatalf("open replacement: %v", err)
	}

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/lobby/1", nil)

	if handler.openSession(c, room, conn) {
		t.Fatalf("superseded session was allowed to proceed")
	}
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for superseded session, got %d", recorder.Code)
	}

	if got, _ := room.GetConnection(1, true); got != replacement {
		t.Fatalf("replacement evicted by the superseded session's cleanup")
	}
	if replacement.State() != ws.StateConnected {
		t.Fatalf("replacement closed by the superseded session")
	}
}

func TestWSRejectModeConflicts(t *testing.T) {
	env, aliceToken, _ := setupLobby(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := dialLobby(ctx, t, env, aliceToken)
	if msg := readMessage(ctx, t, first); msg.Type != ws.MessageTypeConnect {
		t.Fatalf("expected connect announcement, got %+v", msg)
	}

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1) + "/ws/lobby/1?token=" + aliceToken
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected second dial to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 handshake response, got %+v", resp)
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/authn"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/repository/sqlite"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/websocket"
	commonhttp "github.com/AlibekovAA/chat-presence-hub/internal/common/http"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/jwtverify"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	server *httptest.Server
	hub    *websocket.Hub
	store  *sqlite.MessageStore
	issuer *jwtverify.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewDiscard()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := websocket.NewHub(log, websocket.HubConfig{SendTimeout: time.Second})
	verifier := jwtverify.NewVerifier(testSecret)
	protocol := websocket.NewProtocolHandler(hub, authn.NewJWTAuthenticator(verifier, nil), store, websocket.ProtocolHandlerConfig{}, log)

	handler := NewHandler(Options{
		Hub:      hub,
		Protocol: protocol,
		Verifier: verifier,
		Client: websocket.ClientConfig{
			WriteWait:      time.Second,
			PongWait:       time.Minute,
			PingPeriod:     50 * time.Second,
			MaxMessageSize: 65536,
			SendBufferSize: 16,
		},
		HealthChecks: map[string]commonhttp.HealthCheck{"database": store.Ping},
	}, log)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		server: srv,
		hub:    hub,
		store:  store,
		issuer: jwtverify.NewIssuer(testSecret, time.Hour, nil),
	}
}

func (s *testServer) token(t *testing.T, user uuid.UUID, name string) string {
	t.Helper()
	token, err := s.issuer.IssueAccessToken(jwtverify.Claims{UserID: user, Name: name, Email: strings.ToLower(name) + "@example.com"})
	require.NoError(t, err)
	return token
}

func (s *testServer) dial(t *testing.T, query string, header http.Header) *gorillaWS.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws" + query
	conn, resp, err := gorillaWS.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil returns the next frame of type mt, skipping others.
func readUntil(t *testing.T, conn *gorillaWS.Conn, mt websocket.MessageType) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))
		if frame["type"] == string(mt) {
			return frame
		}
	}
}

func TestWebSocketMessageFlow(t *testing.T) {
	s := newTestServer(t)
	alice, bob, chat := uuid.New(), uuid.New(), uuid.New()

	aliceConn := s.dial(t, "?token="+s.token(t, alice, "Alice"), nil)
	bobConn := s.dial(t, "", http.Header{"Authorization": {"Bearer " + s.token(t, bob, "Bob")}})

	require.NoError(t, aliceConn.WriteJSON(map[string]any{"type": "subscribe_chat", "chat_id": chat}))
	readUntil(t, aliceConn, websocket.TypeChatOnlineUsers)
	require.NoError(t, bobConn.WriteJSON(map[string]any{"type": "subscribe_chat", "chat_id": chat}))
	online := readUntil(t, bobConn, websocket.TypeChatOnlineUsers)
	assert.ElementsMatch(t, []any{alice.String(), bob.String()}, online["online_users"])

	require.NoError(t, aliceConn.WriteJSON(map[string]any{
		"type":    "send_message",
		"chat_id": chat,
		"content": map[string]any{"message": "hello bob"},
	}))

	msg := readUntil(t, bobConn, websocket.TypeNewMessage)
	assert.Equal(t, chat.String(), msg["chat_id"])
	assert.Equal(t, "hello bob", msg["content"].(map[string]any)["message"])
	assert.Equal(t, "Alice", msg["sender"].(map[string]any)["name"])

	rows, err := s.store.MessagesIn(t.Context(), chat)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, msg["message_id"], rows[0].ID.String())
	assert.Equal(t, alice, rows[0].SenderID)

	require.NoError(t, aliceConn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, "")))
	status := readUntil(t, bobConn, websocket.TypeUserStatus)
	assert.Equal(t, alice.String(), status["user_id"])
	assert.Equal(t, "offline", status["status"])

	require.Eventually(t, func() bool { return !s.hub.IsOnline(alice) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "?token=garbage", nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorillaWS.IsCloseError(err, gorillaWS.ClosePolicyViolation), "got %v", err)
	assert.Empty(t, s.hub.OnlineUsers())
}

func TestOnlineUsersEndpoint(t *testing.T) {
	s := newTestServer(t)
	alice, chat := uuid.New(), uuid.New()
	token := s.token(t, alice, "Alice")

	conn := s.dial(t, "?token="+token, nil)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe_chat", "chat_id": chat}))
	readUntil(t, conn, websocket.TypeChatOnlineUsers)

	get := func(path, bearer string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
		require.NoError(t, err)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := get("/api/chats/"+chat.String()+"/online", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body onlineUsersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, chat, body.ChatID)
	assert.Equal(t, []uuid.UUID{alice}, body.OnlineUsers)

	resp = get("/api/chats/"+uuid.NewString()+"/online", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.OnlineUsers)

	resp = get("/api/chats/not-a-uuid/online", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get("/api/chats/"+chat.String()+"/online", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])

	metricsResp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestSameOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://chat.example.com/ws", nil)
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "https://chat.example.com")
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, sameOrigin(r))
}

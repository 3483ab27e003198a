package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/models"
)

type wsMessage struct {
	Type   string         `json:"type"`
	GameID string         `json:"gameId,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func dialMirror(t *testing.T, s *testServer, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + s.token(userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(*wsMessage) bool) *wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(&msg) {
			return &msg
		}
	}
}

func snapshotWith(pred func(data map[string]any) bool) func(*wsMessage) bool {
	return func(m *wsMessage) bool {
		return m.Type == "SNAPSHOT" && pred(m.Data)
	}
}

func ids(v any) []string {
	var out []string
	list, _ := v.([]any)
	for _, item := range list {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case map[string]any:
			out = append(out, x["id"].(string))
		}
	}
	return out
}

func TestMirrorWebSocket(t *testing.T) {
	s := newTestServer(t)
	s.seedGame("g1", 12.5, models.GameStatusApproved)
	s.seedGame("g2", 3, models.GameStatusApproved)
	s.seedGame("draft", 3, models.GameStatusPending)

	conn := dialMirror(t, s, "0xbuyer")

	first := readUntil(t, conn, snapshotWith(func(map[string]any) bool { return true }))
	assert.Equal(t, "0xbuyer", first.Data["userId"])
	assert.Empty(t, ids(first.Data["cart"]))

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "PING"}))
	readUntil(t, conn, func(m *wsMessage) bool { return m.Type == "PONG" })

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "ADD_TO_CART", GameID: "g1"}))
	msg := readUntil(t, conn, snapshotWith(func(d map[string]any) bool { return len(ids(d["cart"])) == 1 }))
	assert.Equal(t, 12.5, msg.Data["cartTotal"])

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "ADD_TO_CART", GameID: "draft"}))
	readUntil(t, conn, func(m *wsMessage) bool { return m.Type == "ERROR" })

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "TOGGLE_WISHLIST", GameID: "g2"}))
	readUntil(t, conn, snapshotWith(func(d map[string]any) bool {
		return assert.ObjectsAreEqual([]string{"g2"}, ids(d["wishlist"]))
	}))

	// A purchase made elsewhere clears the cart and shows up in the library.
	_, body := s.do(http.MethodPost, "/api/checkout/session", "0xbuyer", gin.H{"userId": "0xbuyer", "cartItems": []gin.H{{"id": "g1"}}})
	sessionID := body["sessionId"].(string)
	s.payments.markPaid(sessionID)
	code, _ := s.do(http.MethodPost, "/api/purchases/reconcile", "0xbuyer", gin.H{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, code)

	msg = readUntil(t, conn, snapshotWith(func(d map[string]any) bool {
		return len(ids(d["library"])) == 1
	}))
	assert.Empty(t, ids(msg.Data["cart"]))
	assert.Equal(t, []string{"g1"}, ids(msg.Data["library"]))

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "ADD_TO_CART", GameID: "g1"}))
	errMsg := readUntil(t, conn, func(m *wsMessage) bool { return m.Type == "ERROR" })
	assert.Equal(t, "conflict", errMsg.Data["code"])

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "BOGUS"}))
	readUntil(t, conn, func(m *wsMessage) bool { return m.Type == "ERROR" })
}

package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"civicpulse/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// serve starts the app on a loopback listener with live delivery wired.
func (e *testEnv) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.srv.hub.StartWiring(ctx, e.srv.notifier))

	t.Cleanup(func() {
		cancel()
		_ = e.srv.hub.Shutdown(context.Background())
		_ = e.app.ShutdownWithTimeout(time.Second)
	})
	return ln.Addr().String()
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wsEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestNotificationStream_DeliversLiveNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "Alice Park", "alice")
	_, bobToken := env.user(t, "Bob Stone", "bob")
	seedNotifications(t, env, alice.ID, 2)
	addr := env.serve(t)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/v1/notifications/ws", RawQuery: "token=" + aliceToken}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readEvent(t, conn)
	assert.Equal(t, "unread_count", first.Type)
	assert.JSONEq(t, `{"count":2}`, string(first.Payload))

	require.Eventually(t, func() bool { return env.srv.hub.IsOnline(alice.ID) }, 2*time.Second, 10*time.Millisecond)

	follow := env.do(t, http.MethodPost, "/api/v1/users/alice/follow", bobToken, nil)
	require.Equal(t, http.StatusOK, follow.StatusCode)

	ev := readEvent(t, conn)
	require.Equal(t, "notification", ev.Type)
	var n models.Notification
	require.NoError(t, json.Unmarshal(ev.Payload, &n))
	assert.Equal(t, models.NotificationNewFollower, n.Type)
	assert.Equal(t, alice.ID, n.RecipientID)
	assert.Equal(t, "/@bob", n.URL)
}

func TestNotificationStream_BearerHeader(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")
	addr := env.serve(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/notifications/ws", header)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.Equal(t, "unread_count", readEvent(t, conn).Type)
}

func TestNotificationStream_Rejections(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "Alice Park", "alice")
	addr := env.serve(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/notifications/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/notifications/ws?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	plain := env.do(t, http.MethodGet, "/api/v1/notifications/ws?token="+token, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, plain.StatusCode)
}

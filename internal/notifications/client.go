package notifications

import (
	"log/slog"
	"time"

	"civicpulse/internal/middleware"
	"civicpulse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Stream timing. The ping interval stays below the idle timeout so a live
// peer always answers before its read deadline expires.
const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = time.Minute
	pingInterval  = idleTimeout * 9 / 10
	inboundLimit  = 1024
	sendQueueSize = 64
)

// overflowFrame tells a lagging client that it missed notifications and
// should re-fetch the list.
var overflowFrame = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Client is one open notification stream of a user.
type Client struct {
	hub    *Hub
	Conn   *websocket.Conn // nil for clients registered without a socket
	Send   chan []byte
	UserID uint
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendQueueSize)}
}

// Serve runs the stream until the peer disconnects or the hub closes the
// client. The connection is unregistered before Serve returns.
func (c *Client) Serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()
	c.readLoop()
	<-done
}

// readLoop discards inbound frames; the stream is server-to-client only.
// Its job is to keep the read deadline moving and notice disconnects.
func (c *Client) readLoop() {
	defer c.hub.UnregisterClient(c)

	c.Conn.SetReadLimit(inboundLimit)
	extend := func() error { return c.Conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	_ = extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, _, err := c.Conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			middleware.Logger.Info("notification stream closed",
				slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
		}
		return
	}
}

func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()
	defer func() { _ = c.Conn.Close() }()

	for {
		var (
			kind    = websocket.TextMessage
			payload []byte
		)
		select {
		case msg, open := <-c.Send:
			if !open {
				c.write(websocket.CloseMessage, nil)
				return
			}
			payload = msg
		case <-keepalive.C:
			kind = websocket.PingMessage
		}
		if err := c.write(kind, payload); err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(kind, payload)
}

// TrySend queues message without blocking. When the queue is full the
// message is dropped and an overflow frame is attempted instead.
func (c *Client) TrySend(message []byte) {
	defer func() {
		// Send was closed by the hub.
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	select {
	case c.Send <- overflowFrame:
	default:
	}
}

package notifications

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"blogshive/internal/observability"

	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 64
)

// Frame types exchanged on the socket.
const (
	FrameRegister   = "register"
	FrameRegistered = "registered"
	FrameError      = "error"
	FramePing       = "ping"
	FramePong       = "pong"
	FrameDropped    = "messages_dropped"
)

var dropNotice = mustFrame(Frame{Type: FrameDropped, Payload: map[string]string{"reason": "buffer_full"}})

// inboundFrame is a client-to-server message. user_id may be a string or a number.
type inboundFrame struct {
	Type      string      `json:"type"`
	UserID    json.Number `json:"user_id"`
	UserIDAlt json.Number `json:"userId"`
}

func (f inboundFrame) targetUserID() (uint, bool) {
	raw := f.UserID
	if raw == "" {
		raw = f.UserIDAlt
	}
	id, err := strconv.ParseUint(raw.String(), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Client is one WebSocket connection. It starts unregistered and joins its
// user's bucket in the Hub only after a valid register frame.
type Client struct {
	hub *Hub

	// The websocket connection. Nil in tests.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// AuthUserID is the user the connection authenticated as.
	AuthUserID uint

	// guarded by hub.mu
	userID     uint
	registered bool

	done chan struct{}
}

// NewClient creates an unregistered client for an authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, authUserID uint) *Client {
	return &Client{
		hub:        hub,
		Conn:       conn,
		AuthUserID: authUserID,
		Send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Registered reports whether the client is currently addressable.
func (c *Client) Registered() bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.registered
}

// HandleMessage processes one inbound frame.
func (c *Client) HandleMessage(message []byte) {
	var in inboundFrame
	if err := json.Unmarshal(message, &in); err != nil {
		c.sendError("invalid frame")
		return
	}

	event := in.Type
	if event != FrameRegister && event != FramePing {
		event = "unknown"
	}
	_, span := observability.TraceWebSocket(context.Background(), event)
	span.SetAttributes(attribute.Int64("websocket.auth_user_id", int64(c.AuthUserID)))
	defer span.End()

	if problem := c.dispatch(in); problem != "" {
		span.SetStatus(codes.Error, problem)
		c.sendError(problem)
	}
}

// dispatch handles one inbound frame and returns the error message to send back, if any.
func (c *Client) dispatch(in inboundFrame) string {
	switch in.Type {
	case FrameRegister:
		userID, ok := in.targetUserID()
		if !ok {
			return "register requires a user id"
		}
		if userID != c.AuthUserID {
			return "cannot register for another user"
		}
		if err := c.hub.Register(userID, c); err != nil {
			return err.Error()
		}
		c.TrySend(mustFrame(Frame{
			Type:    FrameRegistered,
			Payload: map[string]string{"user_id": strconv.FormatUint(uint64(userID), 10)},
		}))
	case FramePing:
		c.TrySend(mustFrame(Frame{Type: FramePong}))
	default:
		return "unknown frame type"
	}
	return ""
}

func (c *Client) sendError(message string) {
	observability.WebSocketEventsTotal.WithLabelValues(FrameError).Inc()
	c.TrySend(mustFrame(Frame{Type: FrameError, Payload: map[string]string{"message": message}}))
}

// ReadPump pumps messages from the websocket connection to the hub. It
// unregisters the client when the connection ends.
func (c *Client) ReadPump() {
	observability.WebSocketConnections.Inc()
	defer func() {
		observability.WebSocketConnections.Dec()
		c.hub.UnregisterClient(c)
		close(c.done)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ReadPump error (user %d): %v", c.AuthUserID, err)
			}
			break
		}
		c.touch()
		c.HandleMessage(message)
	}
}

func (c *Client) touch() {
	if c.Registered() {
		c.hub.presence.Touch(context.Background(), c.AuthUserID)
	}
}

// WritePump pumps messages from the Send channel to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend enqueues message without blocking. A full buffer drops the message
// and, if there is room, tells the client so it can re-fetch.
func (c *Client) TrySend(message []byte) {
	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		log.Printf("client %d: send buffer full, dropped message", c.AuthUserID)
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}

func mustFrame(f Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return b
}

// Package notifications delivers real-time notification frames to WebSocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"blogshive/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxConnsPerUser = 12
	defaultMaxTotalConns   = 10000

	publishTimeout = 2 * time.Second
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrHubClosed       = errors.New("hub is shut down")
)

// HubConfig bounds the number of registered sockets.
type HubConfig struct {
	MaxConnsPerUser int
	MaxTotalConns   int
}

// Frame is the wire shape of every server-to-client message.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// envelope is what travels over Redis between API instances.
type envelope struct {
	Origin  string          `json:"origin"`
	UserID  uint            `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maps userID -> registered Clients. Sockets that have not sent a
// register frame are not in the map and receive nothing.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool

	maxPerUser int
	maxTotal   int

	origin   string
	notifier *Notifier
	presence *ConnectionManager
}

// NewHub creates a Hub. rdb may be nil, in which case delivery is process-local.
func NewHub(rdb *redis.Client, cfg HubConfig) *Hub {
	h := &Hub{
		conns:      make(map[uint]map[*Client]struct{}),
		maxPerUser: cfg.MaxConnsPerUser,
		maxTotal:   cfg.MaxTotalConns,
		origin:     uuid.NewString(),
		notifier:   NewNotifier(rdb),
		presence:   NewConnectionManager(rdb, ConnectionManagerConfig{}),
	}
	if h.maxPerUser <= 0 {
		h.maxPerUser = defaultMaxConnsPerUser
	}
	if h.maxTotal <= 0 {
		h.maxTotal = defaultMaxTotalConns
	}
	return h
}

// Name identifies the hub in logs and metrics.
func (h *Hub) Name() string { return "notification hub" }

// Register binds client to userID. Registering an already registered client
// under the same user is a no-op.
func (h *Hub) Register(userID uint, client *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if client.userID == userID && client.registered {
		h.mu.Unlock()
		return nil
	}
	if h.totalConns >= h.maxTotal {
		h.mu.Unlock()
		return ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
	}
	if len(m) >= h.maxPerUser {
		h.mu.Unlock()
		return ErrUserConnLimit
	}
	if !ok {
		h.conns[userID] = m
	}

	m[client] = struct{}{}
	client.userID = userID
	client.registered = true
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketEventsTotal.WithLabelValues("register").Inc()
	h.presence.Register(context.Background(), userID)
	return nil
}

// UnregisterClient removes client from its user bucket, deleting the bucket
// when it empties. Unregistered clients are ignored.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	if !client.registered {
		h.mu.Unlock()
		return
	}
	userID := client.userID
	removed := false
	if m, ok := h.conns[userID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, userID)
		}
	}
	client.registered = false
	h.mu.Unlock()

	if removed {
		h.presence.Unregister(context.Background(), userID)
	}
}

// PushTo delivers event to every socket of userID on this instance and, when
// Redis is configured, to sockets on other instances. Delivery is best effort.
func (h *Hub) PushTo(userID uint, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	delivered := h.deliver(userID, event, raw)
	observability.WebSocketEventsTotal.WithLabelValues(event).Inc()

	if !h.notifier.Enabled() {
		if delivered == 0 {
			observability.NotificationPushes.WithLabelValues("offline").Inc()
		}
		return nil
	}

	env, err := json.Marshal(envelope{Origin: h.origin, UserID: userID, Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.notifier.PublishUser(ctx, userID, string(env)); err != nil {
		observability.NotificationPushes.WithLabelValues("publish_error").Inc()
		return fmt.Errorf("publish to %s: %w", UserChannel(userID), err)
	}
	return nil
}

// deliver writes a frame to the local sockets of userID and returns how many were addressed.
func (h *Hub) deliver(userID uint, event string, payload json.RawMessage) int {
	data, err := json.Marshal(Frame{Type: event, Payload: payload})
	if err != nil {
		log.Printf("notification hub: encode frame for user %d: %v", userID, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.conns[userID]
	for c := range clients {
		c.TrySend(data)
	}
	if len(clients) > 0 {
		observability.NotificationPushes.WithLabelValues("delivered").Inc()
	}
	return len(clients)
}

// StartWiring subscribes to the per-user Redis channels and delivers
// envelopes published by other instances to local sockets.
func (h *Hub) StartWiring(ctx context.Context) error {
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if !strings.HasPrefix(channel, userChannelPrefix) {
			log.Printf("invalid notification channel: %s", channel)
			return
		}
		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			log.Printf("invalid notification envelope on %s: %v", channel, err)
			return
		}
		if env.Origin == h.origin {
			return
		}
		h.deliver(env.UserID, env.Event, env.Payload)
	})
}

// IsOnline reports whether the user has a registered socket here or, with
// Redis, a fresh presence record from any instance.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.IsOnline(context.Background(), userID)
}

// ConnectionCount returns the number of registered sockets on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Shutdown closes every registered socket and refuses further registrations.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for userID, userConns := range h.conns {
		for client := range userConns {
			client.registered = false
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	h.presence.Stop()
	return nil
}

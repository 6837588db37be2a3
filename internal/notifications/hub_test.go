package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"blogshive/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newLocalHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(nil, cfg)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return hub
}

// recv returns the next frame queued for c.
func recv(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no frame received")
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisteredSocketReceivesNothing(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	c := NewClient(hub, nil, 7)

	require.NoError(t, hub.PushTo(7, "notifications:new", map[string]string{"id": "1"}))
	assertNoFrame(t, c)
	assert.False(t, c.Registered())
	assert.Zero(t, hub.ConnectionCount())
}

func TestHub_RegisterFrame(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})

	t.Run("registers matching user", func(t *testing.T) {
		c := NewClient(hub, nil, 7)
		c.HandleMessage([]byte(`{"type":"register","user_id":"7"}`))

		f := recv(t, c)
		assert.Equal(t, FrameRegistered, f.Type)
		assert.True(t, c.Registered())
		assert.True(t, hub.IsOnline(7))

		require.NoError(t, hub.PushTo(7, "notifications:new", map[string]string{"id": "42"}))
		f = recv(t, c)
		assert.Equal(t, "notifications:new", f.Type)
		assert.Equal(t, map[string]any{"id": "42"}, f.Payload)
	})

	t.Run("numeric and camelCase ids are accepted", func(t *testing.T) {
		c := NewClient(hub, nil, 8)
		c.HandleMessage([]byte(`{"type":"register","userId":8}`))
		assert.Equal(t, FrameRegistered, recv(t, c).Type)
	})

	t.Run("other user is rejected", func(t *testing.T) {
		c := NewClient(hub, nil, 9)
		c.HandleMessage([]byte(`{"type":"register","user_id":"7"}`))
		assert.Equal(t, FrameError, recv(t, c).Type)
		assert.False(t, c.Registered())
	})

	t.Run("malformed frames", func(t *testing.T) {
		c := NewClient(hub, nil, 9)
		for _, raw := range []string{`not json`, `{"type":"register"}`, `{"type":"dance"}`} {
			c.HandleMessage([]byte(raw))
			assert.Equal(t, FrameError, recv(t, c).Type, raw)
		}
	})

	t.Run("ping", func(t *testing.T) {
		c := NewClient(hub, nil, 9)
		c.HandleMessage([]byte(`{"type":"ping"}`))
		assert.Equal(t, FramePong, recv(t, c).Type)
	})
}

func TestHub_PushReachesEverySocketOfUser(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	a := NewClient(hub, nil, 3)
	b := NewClient(hub, nil, 3)
	other := NewClient(hub, nil, 4)
	require.NoError(t, hub.Register(3, a))
	require.NoError(t, hub.Register(3, b))
	require.NoError(t, hub.Register(4, other))
	assert.Equal(t, 3, hub.ConnectionCount())

	require.NoError(t, hub.PushTo(3, "notifications:new", map[string]int{"n": 1}))
	assert.Equal(t, "notifications:new", recv(t, a).Type)
	assert.Equal(t, "notifications:new", recv(t, b).Type)
	assertNoFrame(t, other)
}

func TestHub_UnregisterRemovesBucket(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	c := NewClient(hub, nil, 5)
	require.NoError(t, hub.Register(5, c))

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)
	assert.Zero(t, hub.ConnectionCount())

	hub.mu.RLock()
	_, ok := hub.conns[5]
	hub.mu.RUnlock()
	assert.False(t, ok)

	require.NoError(t, hub.PushTo(5, "notifications:new", nil))
	assertNoFrame(t, c)

	never := NewClient(hub, nil, 6)
	hub.UnregisterClient(never)
	assert.Zero(t, hub.ConnectionCount())
}

func TestHub_ConnectionLimits(t *testing.T) {
	hub := newLocalHub(t, HubConfig{MaxConnsPerUser: 2, MaxTotalConns: 3})

	require.NoError(t, hub.Register(1, NewClient(hub, nil, 1)))
	require.NoError(t, hub.Register(1, NewClient(hub, nil, 1)))
	assert.ErrorIs(t, hub.Register(1, NewClient(hub, nil, 1)), ErrUserConnLimit)

	require.NoError(t, hub.Register(2, NewClient(hub, nil, 2)))
	assert.ErrorIs(t, hub.Register(3, NewClient(hub, nil, 3)), ErrServerConnLimit)

	hub.mu.RLock()
	_, bucket := hub.conns[3]
	hub.mu.RUnlock()
	assert.False(t, bucket, "rejected registration leaves no empty bucket")
}

func TestHub_RegisterTwiceIsIdempotent(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	c := NewClient(hub, nil, 1)
	require.NoError(t, hub.Register(1, c))
	require.NoError(t, hub.Register(1, c))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_ShutdownRefusesRegistration(t *testing.T) {
	hub := NewHub(nil, HubConfig{})
	c := NewClient(hub, nil, 1)
	require.NoError(t, hub.Register(1, c))

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.ConnectionCount())
	assert.ErrorIs(t, hub.Register(1, NewClient(hub, nil, 1)), ErrHubClosed)
}

func TestHub_BackpressureDropsWithNotice(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	c := NewClient(hub, nil, 1)
	c.Send = make(chan []byte, 1)
	require.NoError(t, hub.Register(1, c))

	require.NoError(t, hub.PushTo(1, "notifications:new", 1))
	require.NoError(t, hub.PushTo(1, "notifications:new", 2))

	assert.Len(t, c.Send, 1, "push never blocks on a full buffer")
}

func TestHub_CrossInstanceDelivery(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewHub(rdb, HubConfig{})
	receiver := NewHub(rdb, HubConfig{})
	t.Cleanup(func() {
		_ = sender.Shutdown(context.Background())
		_ = receiver.Shutdown(context.Background())
	})
	require.NoError(t, sender.StartWiring(ctx))
	require.NoError(t, receiver.StartWiring(ctx))

	local := NewClient(sender, nil, 11)
	remote := NewClient(receiver, nil, 11)
	require.NoError(t, sender.Register(11, local))
	require.NoError(t, receiver.Register(11, remote))

	require.NoError(t, sender.PushTo(11, "notifications:new", map[string]string{"id": "5"}))

	f := recv(t, remote)
	assert.Equal(t, "notifications:new", f.Type)
	assert.Equal(t, map[string]any{"id": "5"}, f.Payload)

	assert.Equal(t, "notifications:new", recv(t, local).Type)
	assertNoFrame(t, local)
}

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	a := NewClient(hub, nil, 10)
	require.NoError(t, hub.Register(10, a))
	hub.UnregisterClient(a)
	assert.True(t, hub.presence.pendingOffline(10))

	require.NoError(t, hub.Register(10, NewClient(hub, nil, 10)))
	assert.False(t, hub.presence.pendingOffline(10))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, hub.IsOnline(10))
}

func TestHub_LastDisconnectGoesOfflineAfterGrace(t *testing.T) {
	hub := newLocalHub(t, HubConfig{})
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	a := NewClient(hub, nil, 15)
	b := NewClient(hub, nil, 15)
	require.NoError(t, hub.Register(15, a))
	require.NoError(t, hub.Register(15, b))

	hub.UnregisterClient(a)
	assert.False(t, hub.presence.pendingOffline(15))
	assert.True(t, hub.IsOnline(15))

	hub.UnregisterClient(b)
	assert.Eventually(t, func() bool {
		return !hub.presence.pendingOffline(15) && !hub.IsOnline(15)
	}, testEventuallyTimeout, testPollInterval)
}

func TestConnectionManager_PresenceInRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	m := NewConnectionManager(rdb, ConnectionManagerConfig{OfflineGracePeriod: 20 * time.Millisecond})
	t.Cleanup(m.Stop)

	m.Register(ctx, 21)
	assert.True(t, mr.Exists(defaultPresenceLastSeenKeyNS+"21"))
	isMember, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "21").Result()
	require.NoError(t, err)
	assert.True(t, isMember)

	m.Unregister(ctx, 21)
	assert.Eventually(t, func() bool {
		return !m.IsOnline(ctx, 21)
	}, testEventuallyTimeout, testPollInterval)
}

func TestConnectionManager_ReaperRemovesStalePresence(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	m := NewConnectionManager(rdb, ConnectionManagerConfig{})
	t.Cleanup(m.Stop)

	require.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "44", "garbage").Err())
	m.Register(ctx, 45)

	assert.Equal(t, 1, m.reapOnce(ctx))

	members, err := rdb.SMembers(ctx, defaultPresenceOnlineSetKey).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"45"}, members)
}

func TestClient_InboundFramesAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})

	hub := newLocalHub(t, HubConfig{})
	c := NewClient(hub, nil, 11)
	c.HandleMessage([]byte(`{"type":"register","user_id":"11"}`))
	assert.Equal(t, FrameRegistered, recv(t, c).Type)
	c.HandleMessage([]byte(`{"type":"register","user_id":"12"}`))
	assert.Equal(t, FrameError, recv(t, c).Type)
	c.HandleMessage([]byte(`{"type":"shout"}`))
	assert.Equal(t, FrameError, recv(t, c).Type)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "websocket.register", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "websocket.register", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "cannot register for another user", spans[1].Status().Description)
	assert.Equal(t, "websocket.unknown", spans[2].Name())
}

package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"blogshive/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceOnlineSetKey  = "ws:online_users"
	defaultPresenceLastSeenKeyNS = "ws:last_seen:"
	defaultPresenceTTL           = 90 * time.Second
	defaultOfflineGrace          = 5 * time.Second
	defaultReaperInterval        = 60 * time.Second
)

// ConnectionManagerConfig controls Redis presence and cleanup behavior.
type ConnectionManagerConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
}

// ConnectionManager counts registered sockets per user, mirrors presence in
// Redis, and only marks a user offline after a grace window so that page
// reloads do not flap.
type ConnectionManager struct {
	rdb *redis.Client

	mu              sync.RWMutex
	localConnCounts map[uint]int
	offlineTimers   map[uint]*time.Timer

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	offlineGrace      time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnectionManager creates a manager and starts a Redis reaper when Redis is available.
func NewConnectionManager(rdb *redis.Client, cfg ConnectionManagerConfig) *ConnectionManager {
	m := &ConnectionManager{
		rdb:               rdb,
		localConnCounts:   make(map[uint]int),
		offlineTimers:     make(map[uint]*time.Timer),
		onlineSetKey:      defaultPresenceOnlineSetKey,
		lastSeenKeyPrefix: defaultPresenceLastSeenKeyNS,
		lastSeenTTL:       defaultPresenceTTL,
		offlineGrace:      defaultOfflineGrace,
		stopCh:            make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		m.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		m.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		m.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		m.offlineGrace = cfg.OfflineGracePeriod
	}

	interval := defaultReaperInterval
	if cfg.ReaperInterval > 0 {
		interval = cfg.ReaperInterval
	}
	if m.rdb != nil {
		go m.reaperLoop(interval)
	}
	return m
}

// SetOfflineGracePeriod changes the delay before a disconnected user is marked offline.
func (m *ConnectionManager) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.offlineGrace = d
	m.mu.Unlock()
}

// Stop ends the reaper and cancels pending offline transitions.
func (m *ConnectionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.mu.Lock()
		for userID, timer := range m.offlineTimers {
			timer.Stop()
			delete(m.offlineTimers, userID)
		}
		m.mu.Unlock()
	})
}

// Register records one more registered socket for userID.
func (m *ConnectionManager) Register(ctx context.Context, userID uint) {
	m.mu.Lock()
	pending, hadTimer := m.offlineTimers[userID]
	if hadTimer {
		pending.Stop()
		delete(m.offlineTimers, userID)
	}
	m.localConnCounts[userID]++
	first := m.localConnCounts[userID] == 1 && !hadTimer
	m.mu.Unlock()

	if first {
		observability.WebSocketRegisteredUsers.Inc()
	}
	m.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen record in Redis.
func (m *ConnectionManager) Touch(ctx context.Context, userID uint) {
	if m.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	if err := m.rdb.SAdd(ctx, m.onlineSetKey, uid).Err(); err != nil {
		log.Printf("presence touch SADD failed for user %d: %v", userID, err)
	}
	if err := m.rdb.SetEx(ctx, m.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), m.lastSeenTTL).Err(); err != nil {
		log.Printf("presence touch SETEX failed for user %d: %v", userID, err)
	}
}

// Unregister records one fewer socket. When the last socket goes, the
// offline transition is scheduled after the grace period.
func (m *ConnectionManager) Unregister(_ context.Context, userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.localConnCounts[userID]
	if !ok {
		return
	}
	if n > 1 {
		m.localConnCounts[userID] = n - 1
		return
	}
	delete(m.localConnCounts, userID)

	select {
	case <-m.stopCh:
		observability.WebSocketRegisteredUsers.Dec()
		return
	default:
	}
	m.offlineTimers[userID] = time.AfterFunc(m.offlineGrace, func() {
		m.finalizeOffline(context.Background(), userID)
	})
}

// IsOnline reports whether the user has a local socket or a live Redis last-seen key.
func (m *ConnectionManager) IsOnline(ctx context.Context, userID uint) bool {
	m.mu.RLock()
	local := m.localConnCounts[userID] > 0
	m.mu.RUnlock()
	if local {
		return true
	}
	if m.rdb == nil {
		return false
	}
	exists, err := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// pendingOffline reports whether an offline transition is scheduled for userID.
func (m *ConnectionManager) pendingOffline(userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.offlineTimers[userID]
	return ok
}

// reapOnce drops online-set members whose last-seen key has expired. Returns how many were removed.
func (m *ConnectionManager) reapOnce(ctx context.Context) int {
	if m.rdb == nil {
		return 0
	}
	members, err := m.rdb.SMembers(ctx, m.onlineSetKey).Result()
	if err != nil {
		return 0
	}

	removed := 0
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			_ = m.rdb.SRem(ctx, m.onlineSetKey, raw).Err()
			continue
		}
		userID := uint(id64)

		m.mu.RLock()
		hasLocal := m.localConnCounts[userID] > 0
		m.mu.RUnlock()
		if hasLocal {
			continue
		}

		exists, existsErr := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
		if existsErr != nil || exists > 0 {
			continue
		}
		if err := m.rdb.SRem(ctx, m.onlineSetKey, raw).Err(); err == nil {
			removed++
		}
	}
	return removed
}

func (m *ConnectionManager) reaperLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapOnce(context.Background())
		}
	}
}

func (m *ConnectionManager) finalizeOffline(ctx context.Context, userID uint) {
	m.mu.Lock()
	delete(m.offlineTimers, userID)
	reconnected := m.localConnCounts[userID] > 0
	m.mu.Unlock()
	if reconnected {
		return
	}

	observability.WebSocketRegisteredUsers.Dec()
	if m.rdb != nil {
		_ = m.rdb.Del(ctx, m.lastSeenKey(userID)).Err()
		_ = m.rdb.SRem(ctx, m.onlineSetKey, strconv.FormatUint(uint64(userID), 10)).Err()
	}
}

func (m *ConnectionManager) lastSeenKey(userID uint) string {
	return m.lastSeenKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

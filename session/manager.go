// Package session tracks per-call state keyed by the Twilio CallSid.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/config"
	"github.com/room4-2/SalesCaller/conversation"
)

const keyPrefix = "call:"

// Manager keeps call sessions in process memory and mirrors them to Redis
// when it is available, so several instances can answer the same call.
type Manager struct {
	mu       sync.Mutex
	sessions *cache.Cache
	redis    *redis.Client
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a session manager with an optional Redis connection
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	var redisClient *redis.Client

	// Try to connect to Redis, but don't fail if unavailable
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, keeping call sessions in memory only",
				zap.String("addr", cfg.Redis.URL), zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	return newManager(redisClient, cfg.SessionTimeout, logger)
}

func newManager(redisClient *redis.Client, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: cache.New(timeout, time.Minute),
		redis:    redisClient,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// NewCallSid returns a local identifier for requests that carry no CallSid
func (m *Manager) NewCallSid() string {
	return "local-" + uuid.New().String()
}

// RedisEnabled reports whether sessions are mirrored
func (m *Manager) RedisEnabled() bool {
	return m.redis != nil
}

// Get returns the session for callSid, reading through to Redis on a local miss
func (m *Manager) Get(ctx context.Context, callSid string) (CallSession, bool) {
	if v, ok := m.sessions.Get(callSid); ok {
		return v.(CallSession), true
	}
	if m.redis == nil {
		return CallSession{}, false
	}

	h, err := m.redis.HGetAll(ctx, keyPrefix+callSid).Result()
	if err != nil {
		m.logger.Warn("redis session lookup failed", zap.String("call_sid", callSid), zap.Error(err))
		return CallSession{}, false
	}
	if len(h) == 0 {
		return CallSession{}, false
	}

	s := fromHash(callSid, h)
	m.sessions.Set(callSid, s, cache.DefaultExpiration)
	return s, true
}

// update applies fn to the session for callSid, creating it if needed
func (m *Manager) update(ctx context.Context, callSid string, fn func(*CallSession)) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.Get(ctx, callSid)
	if !ok {
		s = newCallSession(callSid, now)
	}
	fn(&s)
	s.LastActivity = now

	m.sessions.Set(callSid, s, cache.DefaultExpiration)
	return s, m.mirror(ctx, s)
}

func (m *Manager) mirror(ctx context.Context, s CallSession) error {
	if m.redis == nil {
		return nil
	}

	key := keyPrefix + s.CallSid
	pipe := m.redis.TxPipeline()
	pipe.HSet(ctx, key, s.toHash())
	pipe.Expire(ctx, key, m.timeout)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis session mirror failed", zap.String("call_sid", s.CallSid), zap.Error(err))
		return err
	}
	return nil
}

// Touch records that the call reached stage
func (m *Manager) Touch(ctx context.Context, callSid string, stage conversation.Stage) CallSession {
	s, _ := m.update(ctx, callSid, func(s *CallSession) {
		s.Stage = stage
	})
	return s
}

// SetDestination records the number the call was placed to
func (m *Manager) SetDestination(ctx context.Context, callSid, to string) {
	_, _ = m.update(ctx, callSid, func(s *CallSession) {
		s.To = to
	})
}

// Destination returns the recorded callee number
func (m *Manager) Destination(ctx context.Context, callSid string) (string, bool) {
	s, ok := m.Get(ctx, callSid)
	if !ok || s.To == "" {
		return "", false
	}
	return s.To, true
}

// MeetingLink returns the link already booked on this call
func (m *Manager) MeetingLink(ctx context.Context, callSid string) (string, bool) {
	s, ok := m.Get(ctx, callSid)
	if !ok || s.MeetingLink == "" {
		return "", false
	}
	return s.MeetingLink, true
}

// SetMeetingLink stores the booked link. The local copy is kept even if the mirror fails.
func (m *Manager) SetMeetingLink(ctx context.Context, callSid, link string) error {
	_, err := m.update(ctx, callSid, func(s *CallSession) {
		s.MeetingLink = link
	})
	return err
}

// Count returns the number of calls tracked by this process
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Shutdown drops local sessions and closes Redis
func (m *Manager) Shutdown() {
	m.sessions.Flush()
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}

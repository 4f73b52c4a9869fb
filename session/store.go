package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	storeQueueSize = 64
	storeTimeout   = 5 * time.Second

	activeSessionsKey = "active_sessions"
)

// StoreConfig configures the Redis mirror.
type StoreConfig struct {
	RedisURL      string
	RedisPassword string
	TTL           time.Duration
}

type storeOp struct {
	name string
	run  func(ctx context.Context, pipe redis.Pipeliner)
}

// Store mirrors session snapshots and transcripts into Redis. Writes are
// queued and performed on a background goroutine so the device loop never
// waits on the network; when the queue is full the write is dropped.
//
// A Store whose Redis server was unreachable at startup accepts every call
// and does nothing.
type Store struct {
	redis *redis.Client
	ttl   time.Duration

	ops  chan storeOp
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewStore connects to Redis. It never fails: an unreachable server yields
// a disabled store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{ttl: cfg.TTL}
	if cfg.RedisURL == "" {
		return s
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("⚠️ redis unavailable, session store disabled", "addr", cfg.RedisURL, "error", err)
		client.Close()
		return s
	}

	s.redis = client
	s.ops = make(chan storeOp, storeQueueSize)
	s.done = make(chan struct{})
	go s.writePump()
	slog.Info("🗄️ session store connected", "addr", cfg.RedisURL)
	return s
}

// Enabled reports whether writes reach Redis.
func (s *Store) Enabled() bool {
	return s.redis != nil
}

// Save records snap under session:<id> and marks it active.
func (s *Store) Save(snap Snapshot) {
	key := sessionKey(snap.ID)
	fields := map[string]any{
		"conversation_id":    snap.ConversationID,
		"state":              snap.State.String(),
		"reconnect_attempts": strconv.Itoa(snap.ReconnectAttempts),
		"created_at":         snap.CreatedAt.Format(time.RFC3339),
		"last_activity":      snap.LastActivity.Format(time.RFC3339),
	}
	if !snap.ConnectedAt.IsZero() {
		fields["connected_at"] = snap.ConnectedAt.Format(time.RFC3339)
	}
	s.enqueue("save", func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, activeSessionsKey, snap.ID)
		pipe.Expire(ctx, key, s.ttl)
	})
}

// Forget removes a session.
func (s *Store) Forget(id string) {
	s.enqueue("forget", func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, activeSessionsKey, id)
	})
}

// AppendTranscript appends "role: text" to the conversation's transcript.
func (s *Store) AppendTranscript(conversationID, role, text string) {
	if conversationID == "" {
		return
	}
	key := transcriptKey(conversationID)
	line := role + ": " + text
	s.enqueue("transcript", func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.RPush(ctx, key, line)
		pipe.Expire(ctx, key, s.ttl)
	})
}

// Transcript reads a stored transcript back. It returns nil when the store
// is disabled.
func (s *Store) Transcript(ctx context.Context, conversationID string) ([]string, error) {
	if s.redis == nil {
		return nil, nil
	}
	return s.redis.LRange(ctx, transcriptKey(conversationID), 0, -1).Result()
}

// enqueue adds an operation to the write queue (non-blocking)
func (s *Store) enqueue(name string, run func(ctx context.Context, pipe redis.Pipeliner)) {
	if s.redis == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ops <- storeOp{name: name, run: run}:
	default:
		slog.Debug("🗄️ session store queue full, dropping write", "op", name)
	}
}

// writePump performs queued writes in order on a single goroutine
func (s *Store) writePump() {
	defer close(s.done)
	for op := range s.ops {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			op.run(ctx, pipe)
			return nil
		})
		cancel()
		if err != nil {
			slog.Warn("⚠️ session store write failed", "op", op.name, "error", err)
		}
	}
}

// Close flushes queued writes and closes the Redis client.
func (s *Store) Close() error {
	if s.redis == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()

	<-s.done
	return s.redis.Close()
}

func sessionKey(id string) string {
	return "session:" + id
}

func transcriptKey(conversationID string) string {
	return "transcript:" + conversationID
}

package session

import (
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStoreMirrorsSession(t *testing.T) {
	mr := miniredis.RunT(t)

	st := NewStore(StoreConfig{RedisURL: mr.Addr(), TTL: time.Minute})
	if !st.Enabled() {
		t.Fatal("store did not connect to redis")
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(now)
	s.State = SessionActive
	s.ConversationID = "conv_1"
	s.ConnectedAt = now
	st.Save(s.Snapshot())
	st.AppendTranscript("conv_1", "user", "hello")
	st.AppendTranscript("conv_1", "agent", "hi there")
	st.AppendTranscript("", "user", "no conversation yet")
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	key := "session:" + s.ID
	if got := mr.HGet(key, "state"); got != "session_active" {
		t.Fatalf("state field = %q", got)
	}
	if got := mr.HGet(key, "conversation_id"); got != "conv_1" {
		t.Fatalf("conversation_id field = %q", got)
	}
	if got := mr.HGet(key, "connected_at"); got != now.Format(time.RFC3339) {
		t.Fatalf("connected_at field = %q", got)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("session TTL = %s, want 1m", ttl)
	}
	if ok, err := mr.SIsMember(activeSessionsKey, s.ID); err != nil || !ok {
		t.Fatalf("session not in %s: %v", activeSessionsKey, err)
	}
	if ttl := mr.TTL("transcript:conv_1"); ttl != time.Minute {
		t.Fatalf("transcript TTL = %s, want 1m", ttl)
	}

	st = NewStore(StoreConfig{RedisURL: mr.Addr(), TTL: time.Minute})
	lines, err := st.Transcript(t.Context(), "conv_1")
	if err != nil || !slices.Equal(lines, []string{"user: hello", "agent: hi there"}) {
		t.Fatalf("Transcript() = %q, %v", lines, err)
	}
	if mr.Exists("transcript:") {
		t.Fatal("transcript stored without a conversation id")
	}

	st.Forget(s.ID)
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("Forget() left the session hash")
	}
	if ok, _ := mr.SIsMember(activeSessionsKey, s.ID); ok {
		t.Fatal("Forget() left the session active")
	}
}

func TestStoreDropsWritesWhenQueueFull(t *testing.T) {
	mr := miniredis.RunT(t)

	st := &Store{
		redis: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		ttl:   time.Minute,
		ops:   make(chan storeOp, 1),
		done:  make(chan struct{}),
	}
	snap := New(time.Now()).Snapshot()
	st.Save(snap)
	st.AppendTranscript("conv_1", "user", "dropped")
	if len(st.ops) != 1 {
		t.Fatalf("queued %d writes, want 1", len(st.ops))
	}

	go st.writePump()
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !mr.Exists("session:" + snap.ID) {
		t.Fatal("queued save was not flushed by Close")
	}
	if mr.Exists("transcript:conv_1") {
		t.Fatal("write beyond the queue was not dropped")
	}

	st.Save(snap)
	st.AppendTranscript("conv_1", "user", "after close")
	if mr.Exists("transcript:conv_1") {
		t.Fatal("write after Close reached redis")
	}
}

func TestStoreUnreachableRedisIsDisabled(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	st := NewStore(StoreConfig{RedisURL: addr, TTL: time.Minute})
	if st.Enabled() {
		t.Fatal("store enabled without a reachable server")
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

package session

import (
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Disconnected:  "disconnected",
		Connecting:    "connecting",
		Connected:     "connected",
		SessionActive: "session_active",
		State(42):     "State(42)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
	b, err := SessionActive.MarshalJSON()
	if err != nil || string(b) != `"session_active"` {
		t.Fatalf("MarshalJSON() = %s, %v", b, err)
	}
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(now)
	if s.ID == "" || len(s.ShortID()) != 8 {
		t.Fatalf("ID = %q", s.ID)
	}
	if s.State != Disconnected || s.Active() {
		t.Fatalf("State = %v", s.State)
	}

	s.State = SessionActive
	s.ConversationID = "conv_1"
	s.Touch(now.Add(time.Minute))
	snap := s.Snapshot()
	s.ConversationID = "changed"
	if snap.ConversationID != "conv_1" || snap.State != SessionActive || !snap.LastActivity.Equal(now.Add(time.Minute)) {
		t.Fatalf("Snapshot() = %+v", snap)
	}
}

func TestDisabledStoreIsNoop(t *testing.T) {
	st := NewStore(StoreConfig{TTL: time.Minute})
	if st.Enabled() {
		t.Fatal("store without a Redis URL should be disabled")
	}
	st.Save(New(time.Now()).Snapshot())
	st.AppendTranscript("conv", "user", "hi")
	st.Forget("x")
	lines, err := st.Transcript(t.Context(), "conv")
	if err != nil || lines != nil {
		t.Fatalf("Transcript() = %v, %v", lines, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

package agent

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

const metadataConv1 = `{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv_1"}}`

func TestClientReconnectDelays(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	d := &fakeDialer{err: errors.New("connection refused")}
	c := NewClient(Config{AutoReconnect: true}, WithDialer(d), WithClock(clk.Now))

	var errs []error
	c.Handle(Handlers{OnError: func(err error) { errs = append(errs, err) }})

	if err := c.Connect(Endpoint{URL: "ws://agent.test/v1/convai/conversation", AgentID: "agent_1", APIKey: "sk"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(Endpoint{}); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second Connect() error = %v", err)
	}

	want := []time.Duration{5, 10, 20, 40, 60, 60}
	for i, w := range want {
		pollUntil(t, c, "reconnect schedule", func() bool {
			_, ok := c.NextReconnect()
			return ok
		})
		at, _ := c.NextReconnect()
		if got := at.Sub(clk.t); got != w*time.Second {
			t.Fatalf("attempt %d: delay = %s, want %s", i+1, got, w*time.Second)
		}
		if snap, _ := c.Session(); snap.ReconnectAttempts != i+1 {
			t.Fatalf("ReconnectAttempts = %d, want %d", snap.ReconnectAttempts, i+1)
		}
		if c.State() != session.Disconnected || c.Handshake() != HandshakeFailed {
			t.Fatalf("state = %v, handshake = %v", c.State(), c.Handshake())
		}

		clk.t = at.Add(-time.Millisecond)
		c.Poll()
		if d.callCount() != i+1 {
			t.Fatalf("redialed before the delay elapsed")
		}
		clk.t = at
		c.Poll()
		if c.State() != session.Connecting {
			t.Fatalf("state after delay = %v, want connecting", c.State())
		}
	}

	url, header := d.dialed(0)
	if url != "ws://agent.test/v1/convai/conversation?agent_id=agent_1" {
		t.Fatalf("dial url = %q", url)
	}
	if header.Get("xi-api-key") != "sk" {
		t.Fatalf("xi-api-key header = %q", header.Get("xi-api-key"))
	}
	var terr *TransportError
	if len(errs) == 0 || !errors.As(errs[0], &terr) || terr.Op != "connect" {
		t.Fatalf("errors = %v", errs)
	}
	c.Disconnect()
}

func TestClientHandshakeAndPing(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := NewClient(Config{Initiation: messages.ConversationInitiation{OverrideAudio: true}}, WithDialer(d))

	var states []session.State
	var inits []string
	c.Handle(Handlers{
		OnStateChange:      func(_, to session.State) { states = append(states, to) },
		OnConversationInit: func(m *messages.ConversationInit) { inits = append(inits, m.ConversationID) },
	})

	if err := c.Connect(Endpoint{URL: "ws://agent.test", AgentID: "a"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })
	if c.Handshake() != HandshakePending {
		t.Fatalf("Handshake() = %v before metadata", c.Handshake())
	}
	if sent := conn.sent(); len(sent) != 1 || !strings.Contains(sent[0], `"conversation_initiation_client_data"`) ||
		!strings.Contains(sent[0], `"override_agent_output_audio":true`) {
		t.Fatalf("handshake frames = %v", sent)
	}

	conn.push(metadataConv1)
	pollUntil(t, c, "session active", func() bool { return c.Handshake() == HandshakeReady })
	if snap, _ := c.Session(); snap.ConversationID != "conv_1" || snap.State != session.SessionActive {
		t.Fatalf("session = %+v", snap)
	}
	if len(inits) != 1 {
		t.Fatalf("OnConversationInit calls = %d", len(inits))
	}

	conn.push(`{"type":"ping","ping_event":{"event_id":42,"ping_ms":30}}`)
	pollUntil(t, c, "pong", func() bool { return conn.sentContaining(`"type":"pong"`) })
	if !conn.sentContaining(`"event_id":42`) {
		t.Fatalf("pong frames = %v", conn.sent())
	}

	wantStates := []session.State{session.Connecting, session.Connected, session.SessionActive}
	for i, s := range wantStates {
		if i >= len(states) || states[i] != s {
			t.Fatalf("states = %v, want prefix %v", states, wantStates)
		}
	}
	c.Disconnect()
	if c.State() != session.Disconnected {
		t.Fatalf("State() after Disconnect = %v", c.State())
	}
}

func TestClientHandshakeTimeout(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := NewClient(Config{AutoReconnect: true, HandshakeTimeout: 15 * time.Second}, WithDialer(d), WithClock(clk.Now))

	var errs []error
	c.Handle(Handlers{OnError: func(err error) { errs = append(errs, err) }})
	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })

	clk.t = clk.t.Add(14 * time.Second)
	c.Poll()
	if c.Handshake() != HandshakePending {
		t.Fatalf("Handshake() = %v before the deadline", c.Handshake())
	}
	clk.t = clk.t.Add(time.Second)
	c.Poll()
	if c.Handshake() != HandshakeTimedOut || c.State() != session.Disconnected {
		t.Fatalf("handshake = %v, state = %v", c.Handshake(), c.State())
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrHandshakeTimeout) {
		t.Fatalf("errors = %v", errs)
	}
	if _, ok := c.NextReconnect(); !ok {
		t.Fatal("no reconnect scheduled after handshake timeout")
	}
	c.Disconnect()
}

func TestClientMalformedHandshakeFailsConnection(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(Config{}, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))

	var errs []error
	c.Handle(Handlers{OnError: func(err error) { errs = append(errs, err) }})
	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })
	conn.push(`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{}}`)
	pollUntil(t, c, "failure", func() bool { return c.State() == session.Disconnected })

	if c.Handshake() != HandshakeFailed {
		t.Fatalf("Handshake() = %v", c.Handshake())
	}
	if len(errs) == 0 || !errors.Is(errs[0], ErrMalformedHandshake) {
		t.Fatalf("errors = %v", errs)
	}
	if _, ok := c.NextReconnect(); ok {
		t.Fatal("reconnect scheduled with AutoReconnect off")
	}
	c.Disconnect()
}

func TestClientReconnectStartsNewConversation(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	first, second := newFakeConn(), newFakeConn()
	c := NewClient(Config{AutoReconnect: true}, WithDialer(&fakeDialer{conns: []*fakeConn{first, second}}), WithClock(clk.Now))

	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })
	first.push(metadataConv1)
	first.push(`{"type":"interruption","interruption_event":{"event_id":5}}`)
	pollUntil(t, c, "interruption", func() bool { return c.LastInterruptID() == 5 })

	_ = first.Close()
	pollUntil(t, c, "disconnect", func() bool { return c.State() == session.Disconnected })
	at, ok := c.NextReconnect()
	if !ok || at.Sub(clk.t) != 5*time.Second {
		t.Fatalf("NextReconnect() = %v, %v", at, ok)
	}

	clk.t = at
	pollUntil(t, c, "reconnected", func() bool { return c.State() == session.Connected })
	if snap, _ := c.Session(); snap.ReconnectAttempts != 0 {
		t.Fatalf("ReconnectAttempts after connect = %d", snap.ReconnectAttempts)
	}
	second.push(`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv_2"}}`)
	pollUntil(t, c, "new conversation", func() bool { return c.State() == session.SessionActive })
	if c.LastInterruptID() != 0 {
		t.Fatalf("LastInterruptID() = %d in a new conversation", c.LastInterruptID())
	}
	c.Disconnect()
}

func TestClientDisconnectSilencesHandlers(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(Config{}, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))

	var responses int
	c.Handle(Handlers{OnAgentResponse: func(string) { responses++ }})
	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })

	c.Disconnect()
	conn.in <- []byte(`{"type":"agent_response","agent_response_event":{"agent_response":"late"}}`)
	for i := 0; i < 10; i++ {
		c.Poll()
	}
	if responses != 0 {
		t.Fatalf("handler ran %d times after Disconnect", responses)
	}
	if err := c.SendText("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendText() after Disconnect error = %v", err)
	}
}

func TestClientDropsBadFrames(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(Config{}, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))

	var errs []error
	var responses []string
	c.Handle(Handlers{
		OnError:         func(err error) { errs = append(errs, err) },
		OnAgentResponse: func(s string) { responses = append(responses, s) },
	})
	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })
	conn.push(metadataConv1)
	conn.push(`not json`)
	conn.push(`{"type":"something_new"}`)
	conn.push(`{"type":"audio","audio_event":{"event_id":1,"audio_base_64":"%%%"}}`)
	conn.push(`{"type":"agent_response","agent_response_event":{"agent_response":"still here"}}`)
	pollUntil(t, c, "response", func() bool { return len(responses) == 1 })

	if c.State() != session.SessionActive {
		t.Fatalf("State() = %v, bad frames must not end the session", c.State())
	}
	var perr *ProtocolError
	if len(errs) != 2 || !errors.As(errs[0], &perr) || !errors.Is(errs[0], messages.ErrMalformed) {
		t.Fatalf("errors = %v", errs)
	}
	c.Disconnect()
}

func TestSendAudioChunks(t *testing.T) {
	conn := newFakeConn()
	c := NewClient(Config{ChunkSize: 4}, WithDialer(&fakeDialer{conns: []*fakeConn{conn}}))
	if err := c.SendAudio([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendAudio() before Connect error = %v", err)
	}
	if err := c.Connect(Endpoint{URL: "ws://agent.test"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, c, "connected", func() bool { return c.State() == session.Connected })

	if err := c.SendAudio(nil); !errors.Is(err, messages.ErrEmptyAudio) {
		t.Fatalf("SendAudio(nil) error = %v", err)
	}
	if err := c.SendAudio([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}
	var chunks int
	for _, s := range conn.sent() {
		if strings.Contains(s, `"user_audio_chunk"`) {
			chunks++
		}
	}
	if chunks != 3 {
		t.Fatalf("sent %d audio chunks, want 3", chunks)
	}
	c.Disconnect()
}

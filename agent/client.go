// Package agent keeps a connection to a conversational agent alive and
// turns its WebSocket traffic into typed events.
//
// A Client is driven by a single goroutine that calls Poll on its own
// schedule. Dialing and reading happen on background goroutines which only
// hand events to Poll, so every piece of client state, the interruption
// tracker included, is touched by the polling goroutine alone.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/room4-2/voicelink/audio"
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

const (
	DefaultURL              = "wss://api.elevenlabs.io/v1/convai/conversation"
	DefaultHandshakeTimeout = 15 * time.Second

	eventQueueSize       = 256
	defaultEventsPerPoll = 32
)

// Endpoint identifies the agent to talk to.
type Endpoint struct {
	URL     string
	AgentID string
	APIKey  string
}

func (e Endpoint) dialURL() (string, error) {
	raw := e.URL
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid agent url: %w", err)
	}
	if e.AgentID != "" {
		q := u.Query()
		q.Set("agent_id", e.AgentID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (e Endpoint) header() http.Header {
	h := http.Header{}
	if e.APIKey != "" {
		h.Set("xi-api-key", e.APIKey)
	}
	return h
}

// Config tunes a Client. Zero values pick the defaults.
type Config struct {
	ChunkSize        int
	ReconnectBase    time.Duration
	ReconnectCap     time.Duration
	HandshakeTimeout time.Duration
	// AutoReconnect schedules a new dial after every connection loss.
	AutoReconnect bool
	// Initiation is sent as soon as the socket opens.
	Initiation messages.ConversationInitiation
	// EventsPerPoll bounds how many inbound events one Poll handles.
	EventsPerPoll int
}

// Recorder mirrors session state somewhere outside the process.
// session.Store implements it.
type Recorder interface {
	Save(snap session.Snapshot)
	Forget(id string)
	AppendTranscript(conversationID, role, text string)
}

type nopRecorder struct{}

func (nopRecorder) Save(session.Snapshot)           {}
func (nopRecorder) Forget(string)                   {}
func (nopRecorder) AppendTranscript(_, _, _ string) {}

type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock replaces time.Now for reconnect and handshake deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

type eventKind int

const (
	evOpen eventKind = iota
	evDialFailed
	evMessage
	evClosed
)

type event struct {
	gen  uint64
	kind eventKind
	conn Conn
	data []byte
	err  error
}

// link is one connection attempt. Its goroutines stop once done closes.
type link struct {
	gen    uint64
	conn   Conn
	done   chan struct{}
	cancel context.CancelFunc
}

// Client is a conversational agent connection with automatic reconnects.
// Its methods must be called from one goroutine.
type Client struct {
	cfg      Config
	dialer   Dialer
	now      func() time.Time
	recorder Recorder
	handlers Handlers

	endpoint  Endpoint
	dialURL   string
	session   *session.Session
	policy    *ReconnectPolicy
	tracker   InterruptTracker
	handshake HandshakeStatus

	events      chan event
	link        *link
	gen         uint64
	dialStarted time.Time
	nextDial    time.Time
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = audio.DefaultChunkSize
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = DefaultReconnectBase
	}
	if cfg.ReconnectCap <= 0 {
		cfg.ReconnectCap = DefaultReconnectCap
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.EventsPerPoll <= 0 {
		cfg.EventsPerPoll = defaultEventsPerPoll
	}

	c := &Client{
		cfg:      cfg,
		dialer:   WebSocketDialer{},
		now:      time.Now,
		recorder: nopRecorder{},
		policy:   NewReconnectPolicy(cfg.ReconnectBase, cfg.ReconnectCap),
		events:   make(chan event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle installs the event handlers, replacing any previous set.
func (c *Client) Handle(h Handlers) {
	c.handlers = h
}

// Connect creates a session and starts dialing ep. It returns without
// waiting; progress is reported through Poll and Handshake.
func (c *Client) Connect(ep Endpoint) error {
	if c.session != nil {
		return ErrAlreadyConnected
	}
	dialURL, err := ep.dialURL()
	if err != nil {
		return err
	}

	c.endpoint = ep
	c.dialURL = dialURL
	c.session = session.New(c.now())
	c.policy.Reset()
	c.tracker.Reset()
	c.nextDial = time.Time{}

	slog.Info("🚀 starting agent session", "session", c.session.ShortID(), "agent_id", ep.AgentID)
	c.startDial()
	return nil
}

// Disconnect closes the connection and ends the session. No handler runs
// for the old connection after Disconnect returns.
func (c *Client) Disconnect() {
	if c.session == nil {
		return
	}
	c.teardown()
	c.nextDial = time.Time{}
	c.handshake = HandshakeIdle
	c.setState(session.Disconnected)

	slog.Info("👋 agent session closed", "session", c.session.ShortID(), "conversation_id", c.session.ConversationID)
	c.recorder.Forget(c.session.ID)
	c.session = nil

	for {
		select {
		case ev := <-c.events:
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
		default:
			return
		}
	}
}

// Poll handles pending transport events, enforces the handshake deadline
// and redials when a scheduled reconnect is due. It never blocks on the
// network beyond the bounded write timeout of a reply.
func (c *Client) Poll() {
	for i := 0; i < c.cfg.EventsPerPoll && c.session != nil; i++ {
		ev, ok := c.nextEvent()
		if !ok {
			break
		}
		c.handleEvent(ev)
	}
	if c.session == nil {
		return
	}
	c.checkDeadlines(c.now())
}

func (c *Client) nextEvent() (event, bool) {
	select {
	case ev := <-c.events:
		return ev, true
	default:
		return event{}, false
	}
}

func (c *Client) handleEvent(ev event) {
	if c.link == nil || ev.gen != c.link.gen {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}

	switch ev.kind {
	case evOpen:
		c.opened(ev.conn)
	case evDialFailed:
		c.fail("connect", ev.err)
	case evMessage:
		c.dispatch(ev.data)
	case evClosed:
		c.fail("read", ev.err)
	}
}

func (c *Client) checkDeadlines(now time.Time) {
	if c.handshake == HandshakePending && c.link != nil && now.Sub(c.dialStarted) >= c.cfg.HandshakeTimeout {
		c.handshake = HandshakeTimedOut
		c.fail("handshake", ErrHandshakeTimeout)
		return
	}
	if c.session.State == session.Disconnected && !c.nextDial.IsZero() && !now.Before(c.nextDial) {
		c.nextDial = time.Time{}
		c.startDial()
	}
}

func (c *Client) startDial() {
	c.gen++
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	l := &link{gen: c.gen, done: make(chan struct{}), cancel: cancel}
	c.link = l
	c.dialStarted = c.now()
	c.handshake = HandshakePending
	c.setState(session.Connecting)

	slog.Info("🔌 connecting to agent", "session", c.session.ShortID(), "attempt", c.policy.Attempts())

	dialer, dialURL, header := c.dialer, c.dialURL, c.endpoint.header()
	go func() {
		conn, err := dialer.Dial(ctx, dialURL, header)
		if err != nil {
			c.post(l, event{gen: l.gen, kind: evDialFailed, err: err})
			return
		}
		if !c.post(l, event{gen: l.gen, kind: evOpen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

// post hands ev to Poll unless the link has been torn down.
func (c *Client) post(l *link, ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-l.done:
		return false
	}
}

func (c *Client) readLoop(l *link) {
	for {
		data, err := l.conn.ReadMessage()
		if err != nil {
			c.post(l, event{gen: l.gen, kind: evClosed, err: err})
			return
		}
		if !c.post(l, event{gen: l.gen, kind: evMessage, data: data}) {
			return
		}
	}
}

func (c *Client) opened(conn Conn) {
	c.link.conn = conn
	c.policy.Reset()

	now := c.now()
	c.session.ConnectedAt = now
	c.session.ReconnectAttempts = 0
	c.session.Touch(now)
	c.setState(session.Connected)
	if c.link == nil {
		return
	}
	slog.Info("✅ connected to agent", "session", c.session.ShortID())

	go c.readLoop(c.link)

	hello := c.cfg.Initiation
	if err := c.send(&hello); err != nil {
		slog.Warn("⚠️ failed to send conversation initiation", "session", c.session.ShortID(), "error", err)
	}
}

// fail tears down the current connection and schedules the next attempt.
func (c *Client) fail(op string, err error) {
	terr := &TransportError{Op: op, Err: err}
	slog.Warn("🔌 agent connection lost", "session", c.session.ShortID(), "op", op, "error", err)

	if c.handshake == HandshakePending {
		c.handshake = HandshakeFailed
	}
	c.teardown()
	c.setState(session.Disconnected)
	c.report(terr)

	// A handler may have ended the session.
	if c.session == nil || !c.cfg.AutoReconnect {
		return
	}
	delay := c.policy.Next()
	c.nextDial = c.now().Add(delay)
	c.session.ReconnectAttempts = c.policy.Attempts()
	c.recorder.Save(c.session.Snapshot())
	slog.Info("🔄 reconnect scheduled", "session", c.session.ShortID(), "attempt", c.policy.Attempts(), "delay", delay)
}

func (c *Client) teardown() {
	l := c.link
	if l == nil {
		return
	}
	c.link = nil
	close(l.done)
	l.cancel()
	if l.conn != nil {
		_ = l.conn.Close()
	}
}

func (c *Client) setState(to session.State) {
	from := c.session.State
	if from == to {
		return
	}
	c.session.State = to
	c.recorder.Save(c.session.Snapshot())
	slog.Debug("🔗 agent state", "session", c.session.ShortID(), "from", from, "to", to)
	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(from, to)
	}
}

func (c *Client) report(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

// State returns the transport state, Disconnected when there is no session.
func (c *Client) State() session.State {
	if c.session == nil {
		return session.Disconnected
	}
	return c.session.State
}

// Session returns a snapshot of the current session.
func (c *Client) Session() (session.Snapshot, bool) {
	if c.session == nil {
		return session.Snapshot{}, false
	}
	return c.session.Snapshot(), true
}

// Handshake reports how the current connection attempt is going.
func (c *Client) Handshake() HandshakeStatus {
	return c.handshake
}

// LastInterruptID returns the highest interruption event id seen in the
// current conversation.
func (c *Client) LastInterruptID() uint32 {
	return c.tracker.Last()
}

// NextReconnect returns when the next dial is scheduled, if one is.
func (c *Client) NextReconnect() (time.Time, bool) {
	return c.nextDial, !c.nextDial.IsZero()
}

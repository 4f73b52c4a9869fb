package conversation

import (
	"errors"
	"io"
	"time"

	"github.com/room4-2/voicelink/agent"
	"github.com/room4-2/voicelink/session"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

type toolResult struct {
	callID  string
	result  string
	isError bool
}

type fakeAgent struct {
	h       agent.Handlers
	state   session.State
	chunks  [][]byte
	results []toolResult
	sendErr error
}

func (a *fakeAgent) Handle(h agent.Handlers) { a.h = h }
func (a *fakeAgent) Poll()                   {}
func (a *fakeAgent) State() session.State    { return a.state }

func (a *fakeAgent) Session() (session.Snapshot, bool) {
	return session.Snapshot{ConversationID: "conv_test", State: a.state}, true
}

func (a *fakeAgent) SendAudioChunk(pcm []byte) error {
	if a.sendErr != nil {
		return a.sendErr
	}
	a.chunks = append(a.chunks, append([]byte(nil), pcm...))
	return nil
}

func (a *fakeAgent) SendToolResult(callID, result string, isError bool) error {
	a.results = append(a.results, toolResult{callID, result, isError})
	return nil
}

func (a *fakeAgent) sentBytes() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}

type fakeMic struct {
	data    []byte
	eof     bool
	openErr error
	opened  bool
	closed  bool
}

func (m *fakeMic) Open(int) error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *fakeMic) Read(p []byte, _ time.Duration) (int, error) {
	if len(m.data) == 0 {
		if m.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, m.data)
	m.data = m.data[n:]
	return n, nil
}

func (m *fakeMic) Close() error {
	m.closed = true
	return nil
}

// fakeSpeaker keeps everything written since the last Discard in queued,
// like a device that never plays.
type fakeSpeaker struct {
	written  int
	writes   int
	queued   int
	discards int
	openErr  error
	writeErr error
	channels int
}

func (s *fakeSpeaker) Open(_, channels int) error {
	s.channels = channels
	return s.openErr
}

func (s *fakeSpeaker) Write(p []byte, _ time.Duration) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.written += len(p)
	s.queued += len(p)
	s.writes++
	return len(p), nil
}

func (s *fakeSpeaker) Discard() error {
	s.queued = 0
	s.discards++
	return nil
}

func (s *fakeSpeaker) Close() error { return nil }

var errNoDevice = errors.New("no such device")

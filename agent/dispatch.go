package agent

import (
	"log/slog"

	"github.com/room4-2/voicelink/audio"
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

func (c *Client) dispatch(data []byte) {
	msg, err := messages.Parse(data)
	if err != nil {
		slog.Debug("⚠️ dropping unparseable message", "session", c.session.ShortID(), "error", err)
		c.report(&ProtocolError{Err: err})
		return
	}
	c.session.Touch(c.now())
	h := c.handlers

	switch m := msg.(type) {
	case *messages.ConversationInit:
		c.conversationStarted(m)

	case *messages.Transcript:
		c.recorder.AppendTranscript(c.session.ConversationID, "user", m.Text)
		if h.OnTranscript != nil {
			h.OnTranscript(m.Text)
		}

	case *messages.AgentResponse:
		c.recorder.AppendTranscript(c.session.ConversationID, "agent", m.Text)
		if h.OnAgentResponse != nil {
			h.OnAgentResponse(m.Text)
		}

	case *messages.AgentResponseCorrection:
		if h.OnAgentResponseCorrection != nil {
			h.OnAgentResponseCorrection(m.Text)
		}

	case *messages.TentativeAgentResponse:
		if h.OnTentativeResponse != nil {
			h.OnTentativeResponse(m.Text)
		}

	case *messages.AudioChunk:
		if !c.tracker.Accept(m.EventID) {
			slog.Debug("🔇 skipping interrupted audio", "event_id", m.EventID, "last_interrupt_id", c.tracker.Last())
			return
		}
		pcm, err := audio.Decode(m.Audio)
		if err != nil {
			c.report(&ProtocolError{Err: err})
			return
		}
		if h.OnAudio != nil {
			h.OnAudio(m.EventID, pcm)
		}

	case *messages.Ping:
		if err := c.send(&messages.Pong{EventID: m.EventID}); err != nil {
			slog.Debug("⚠️ failed to answer ping", "event_id", m.EventID, "error", err)
		}
		if h.OnPing != nil {
			h.OnPing(m)
		}

	case *messages.ToolCall:
		slog.Info("🔧 tool call", "tool", m.Name, "call_id", m.CallID)
		if h.OnToolCall != nil {
			h.OnToolCall(m)
		}

	case *messages.VadScore:
		if h.OnVadScore != nil {
			h.OnVadScore(m.Score)
		}

	case *messages.Interruption:
		c.tracker.Observe(m.EventID)
		slog.Info("✋ interrupted", "event_id", m.EventID, "last_interrupt_id", c.tracker.Last())
		if h.OnInterruption != nil {
			h.OnInterruption(m.EventID)
		}

	case *messages.Error:
		slog.Warn("❌ agent reported an error", "session", c.session.ShortID(), "message", m.Message)
		if h.OnAgentError != nil {
			h.OnAgentError(m.Message)
		}

	case *messages.Unknown:
		slog.Debug("❔ ignoring message", "type", m.Kind)
	}
}

func (c *Client) conversationStarted(m *messages.ConversationInit) {
	if m.ConversationID == "" {
		c.fail("handshake", ErrMalformedHandshake)
		return
	}
	if c.session.ConversationID != m.ConversationID {
		// Event ids start over in a new remote conversation.
		c.tracker.Reset()
	}
	c.session.ConversationID = m.ConversationID
	c.handshake = HandshakeReady
	c.setState(session.SessionActive)
	if c.session == nil {
		return
	}
	slog.Info("🎬 conversation started", "session", c.session.ShortID(), "conversation_id", m.ConversationID,
		"output_format", m.AgentOutputFormat)

	if c.handlers.OnConversationInit != nil {
		c.handlers.OnConversationInit(m)
	}
}

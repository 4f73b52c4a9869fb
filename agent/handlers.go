package agent

import (
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

// Handlers receive parsed agent events. They run on the goroutine that
// calls Poll, in transport order. Nil handlers are skipped.
type Handlers struct {
	OnStateChange             func(from, to session.State)
	OnConversationInit        func(m *messages.ConversationInit)
	OnTranscript              func(text string)
	OnAgentResponse           func(text string)
	OnAgentResponseCorrection func(text string)
	OnTentativeResponse       func(text string)
	// OnAudio receives decoded PCM for frames that passed the
	// interruption gate.
	OnAudio        func(eventID uint32, pcm []byte)
	OnPing         func(m *messages.Ping)
	OnToolCall     func(m *messages.ToolCall)
	OnVadScore     func(score float64)
	OnInterruption func(eventID uint32)
	// OnAgentError receives errors reported by the agent service.
	OnAgentError func(message string)
	// OnError receives transport and protocol errors. The client has
	// already recovered from them.
	OnError func(err error)
}

// Package messages defines the JSON wire protocol spoken with the
// conversational agent: a closed set of inbound events, the outbound
// intents the device can send, and their encodings.
package messages

// Inbound message types
const (
	TypeConversationInit        = "conversation_initiation_metadata"
	TypeUserTranscript          = "user_transcript"
	TypeAgentResponse           = "agent_response"
	TypeAgentResponseCorrection = "agent_response_correction"
	TypeTentativeAgentResponse  = "internal_tentative_agent_response"
	TypeAudio                   = "audio"
	TypePing                    = "ping"
	TypeClientToolCall          = "client_tool_call"
	TypeVadScore                = "vad_score"
	TypeInterruption            = "interruption"
	TypeError                   = "error"
)

// Outbound message types
const (
	TypeUserMessage          = "user_message"
	TypeUserAudioChunk       = "user_audio_chunk"
	TypeUserActivity         = "user_activity"
	TypeContextualUpdate     = "contextual_update"
	TypeClientToolResult     = "client_tool_result"
	TypePong                 = "pong"
	TypeConversationInitData = "conversation_initiation_client_data"
)

// Inbound is one parsed agent event. The set of implementations is closed.
//
//sumtype:decl
type Inbound interface {
	inbound()
	// Type returns the wire discriminator.
	Type() string
}

// ConversationInit confirms the session and carries its remote id.
type ConversationInit struct {
	ConversationID    string
	AgentOutputFormat string
	UserInputFormat   string
}

// Transcript is the service's transcription of the user's speech.
type Transcript struct {
	Text string
}

// AgentResponse is the agent's text reply.
type AgentResponse struct {
	Text string
}

// AgentResponseCorrection replaces a previously sent agent response,
// typically after the agent was interrupted mid-sentence.
type AgentResponseCorrection struct {
	Text string
}

// TentativeAgentResponse is a partial reply that may still change.
type TentativeAgentResponse struct {
	Text string
}

// AudioChunk is one frame of agent speech. Audio stays base64 until the
// frame passes the interruption gate.
type AudioChunk struct {
	EventID uint32
	Audio   string
}

type Ping struct {
	EventID uint32
	PingMS  uint32
}

// ToolCall asks the device to run a client tool.
type ToolCall struct {
	Name       string
	CallID     string
	Parameters map[string]any
}

type VadScore struct {
	Score float64
}

// Interruption invalidates all agent audio with an event id at or below
// EventID.
type Interruption struct {
	EventID uint32
}

// Error is an error reported by the agent service.
type Error struct {
	Message string
}

// Unknown is any message whose type this client does not handle.
type Unknown struct {
	Kind string
}

func (*ConversationInit) inbound()        {}
func (*Transcript) inbound()              {}
func (*AgentResponse) inbound()           {}
func (*AgentResponseCorrection) inbound() {}
func (*TentativeAgentResponse) inbound()  {}
func (*AudioChunk) inbound()              {}
func (*Ping) inbound()                    {}
func (*ToolCall) inbound()                {}
func (*VadScore) inbound()                {}
func (*Interruption) inbound()            {}
func (*Error) inbound()                   {}
func (*Unknown) inbound()                 {}

func (*ConversationInit) Type() string        { return TypeConversationInit }
func (*Transcript) Type() string              { return TypeUserTranscript }
func (*AgentResponse) Type() string           { return TypeAgentResponse }
func (*AgentResponseCorrection) Type() string { return TypeAgentResponseCorrection }
func (*TentativeAgentResponse) Type() string  { return TypeTentativeAgentResponse }
func (*AudioChunk) Type() string              { return TypeAudio }
func (*Ping) Type() string                    { return TypePing }
func (*ToolCall) Type() string                { return TypeClientToolCall }
func (*VadScore) Type() string                { return TypeVadScore }
func (*Interruption) Type() string            { return TypeInterruption }
func (*Error) Type() string                   { return TypeError }
func (u *Unknown) Type() string               { return u.Kind }

// Outbound is something the device tells the agent.
type Outbound interface {
	outbound()
	Type() string
}

// UserText is a typed user message.
type UserText struct {
	Text string
}

// UserAudioChunk carries raw PCM; it is base64 encoded on the wire.
type UserAudioChunk struct {
	Audio []byte
}

// UserActivity tells the agent the user is active without sending content.
type UserActivity struct{}

// ContextualUpdate adds background information to the conversation.
type ContextualUpdate struct {
	Text string
}

type ToolResult struct {
	CallID  string
	Result  string
	IsError bool
}

type Pong struct {
	EventID uint32
}

// ConversationInitiation is the handshake sent right after the socket
// opens.
type ConversationInitiation struct {
	OverrideAudio bool
	Prompt        string
	FirstMessage  string
}

func (*UserText) outbound()               {}
func (*UserAudioChunk) outbound()         {}
func (*UserActivity) outbound()           {}
func (*ContextualUpdate) outbound()       {}
func (*ToolResult) outbound()             {}
func (*Pong) outbound()                   {}
func (*ConversationInitiation) outbound() {}

func (*UserText) Type() string               { return TypeUserMessage }
func (*UserAudioChunk) Type() string         { return TypeUserAudioChunk }
func (*UserActivity) Type() string           { return TypeUserActivity }
func (*ContextualUpdate) Type() string       { return TypeContextualUpdate }
func (*ToolResult) Type() string             { return TypeClientToolResult }
func (*Pong) Type() string                   { return TypePong }
func (*ConversationInitiation) Type() string { return TypeConversationInitData }

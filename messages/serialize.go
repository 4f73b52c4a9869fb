package messages

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/room4-2/voicelink/audio"
)

// ErrEmptyAudio is returned when serializing a chunk with no audio.
var ErrEmptyAudio = errors.New("audio chunk is empty")

type typedText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type audioChunkFrame struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type typeOnly struct {
	Type string `json:"type"`
}

type toolResultFrame struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}

type pongFrame struct {
	Type    string `json:"type"`
	EventID uint32 `json:"event_id"`
}

type initiationFrame struct {
	Type     string          `json:"type"`
	Override *configOverride `json:"conversation_config_override,omitempty"`
}

type configOverride struct {
	OverrideAgentOutputAudio bool           `json:"override_agent_output_audio,omitempty"`
	Agent                    *agentOverride `json:"agent,omitempty"`
}

type agentOverride struct {
	Prompt       *promptOverride `json:"prompt,omitempty"`
	FirstMessage string          `json:"first_message,omitempty"`
}

type promptOverride struct {
	Prompt string `json:"prompt"`
}

// Serialize encodes an outbound intent as one text frame.
func Serialize(m Outbound) ([]byte, error) {
	var v any
	switch m := m.(type) {
	case *UserText:
		v = typedText{Type: TypeUserMessage, Text: m.Text}
	case *UserAudioChunk:
		if len(m.Audio) == 0 {
			return nil, ErrEmptyAudio
		}
		v = audioChunkFrame{UserAudioChunk: audio.Encode(m.Audio)}
	case *UserActivity:
		v = typeOnly{Type: TypeUserActivity}
	case *ContextualUpdate:
		v = typedText{Type: TypeContextualUpdate, Text: m.Text}
	case *ToolResult:
		v = toolResultFrame{Type: TypeClientToolResult, ToolCallID: m.CallID, Result: m.Result, IsError: m.IsError}
	case *Pong:
		v = pongFrame{Type: TypePong, EventID: m.EventID}
	case *ConversationInitiation:
		v = initiation(m)
	default:
		return nil, fmt.Errorf("messages: cannot serialize %T", m)
	}
	return sonic.Marshal(v)
}

func initiation(m *ConversationInitiation) initiationFrame {
	f := initiationFrame{Type: TypeConversationInitData}
	if !m.OverrideAudio && m.Prompt == "" && m.FirstMessage == "" {
		return f
	}
	o := &configOverride{OverrideAgentOutputAudio: m.OverrideAudio}
	if m.Prompt != "" || m.FirstMessage != "" {
		o.Agent = &agentOverride{FirstMessage: m.FirstMessage}
		if m.Prompt != "" {
			o.Agent.Prompt = &promptOverride{Prompt: m.Prompt}
		}
	}
	f.Override = o
	return f
}

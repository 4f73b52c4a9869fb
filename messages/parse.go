package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

var (
	// ErrMalformed is returned for input that is not a JSON object or whose
	// type field is not a string.
	ErrMalformed = errors.New("malformed message")
	// ErrMissingType is returned when the type field is absent, null or empty.
	ErrMissingType = errors.New("message has no type")
)

// eventBody lists every payload key the agent sends. The service nests
// payloads in a per-type object (audio_event, ping_event, ...); older
// revisions put the same keys at the top level.
type eventBody struct {
	ConversationID          text      `json:"conversation_id"`
	AgentOutputAudioFormat  text      `json:"agent_output_audio_format"`
	UserInputAudioFormat    text      `json:"user_input_audio_format"`
	UserTranscript          text      `json:"user_transcript"`
	AgentResponse           text      `json:"agent_response"`
	AgentResponseCorrection text      `json:"agent_response_correction"`
	TentativeAgentResponse  text      `json:"tentative_agent_response"`
	EventID                 uint32Num `json:"event_id"`
	AudioBase64             text      `json:"audio_base_64"`
	PingMS                  uint32Num `json:"ping_ms"`
	ToolName                text      `json:"tool_name"`
	ToolCallID              text      `json:"tool_call_id"`
	Parameters              object    `json:"parameters"`
	VadScore                floatNum  `json:"vad_score"`
	Message                 text      `json:"message"`
}

type frame struct {
	Type json.RawMessage `json:"type"`
	eventBody

	InitEvent       *eventBody `json:"conversation_initiation_metadata_event"`
	TranscriptEvent *eventBody `json:"user_transcription_event"`
	ResponseEvent   *eventBody `json:"agent_response_event"`
	CorrectionEvent *eventBody `json:"agent_response_correction_event"`
	TentativeEvent  *eventBody `json:"tentative_agent_response_internal_event"`
	AudioEvent      *eventBody `json:"audio_event"`
	PingEvent       *eventBody `json:"ping_event"`
	ToolCallEvent   *eventBody `json:"client_tool_call"`
	VadEvent        *eventBody `json:"vad_score_event"`
	InterruptEvent  *eventBody `json:"interruption_event"`
	ErrorEvent      *eventBody `json:"error_event"`
}

func (f *frame) body(nested *eventBody) *eventBody {
	if nested != nil {
		return nested
	}
	return &f.eventBody
}

// Parse decodes one text frame from the agent. Unrecognised types yield
// *Unknown rather than an error.
func Parse(raw []byte) (Inbound, error) {
	var f frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind, err := discriminator(f.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case TypeConversationInit:
		b := f.body(f.InitEvent)
		return &ConversationInit{
			ConversationID:    string(b.ConversationID),
			AgentOutputFormat: string(b.AgentOutputAudioFormat),
			UserInputFormat:   string(b.UserInputAudioFormat),
		}, nil
	case TypeUserTranscript:
		return &Transcript{Text: string(f.body(f.TranscriptEvent).UserTranscript)}, nil
	case TypeAgentResponse:
		return &AgentResponse{Text: string(f.body(f.ResponseEvent).AgentResponse)}, nil
	case TypeAgentResponseCorrection:
		return &AgentResponseCorrection{Text: string(f.body(f.CorrectionEvent).AgentResponseCorrection)}, nil
	case TypeTentativeAgentResponse:
		return &TentativeAgentResponse{Text: string(f.body(f.TentativeEvent).TentativeAgentResponse)}, nil
	case TypeAudio:
		b := f.body(f.AudioEvent)
		return &AudioChunk{EventID: uint32(b.EventID), Audio: string(b.AudioBase64)}, nil
	case TypePing:
		b := f.body(f.PingEvent)
		return &Ping{EventID: uint32(b.EventID), PingMS: uint32(b.PingMS)}, nil
	case TypeClientToolCall:
		b := f.body(f.ToolCallEvent)
		return &ToolCall{Name: string(b.ToolName), CallID: string(b.ToolCallID), Parameters: b.Parameters}, nil
	case TypeVadScore:
		return &VadScore{Score: float64(f.body(f.VadEvent).VadScore)}, nil
	case TypeInterruption:
		return &Interruption{EventID: uint32(f.body(f.InterruptEvent).EventID)}, nil
	case TypeError:
		return &Error{Message: string(f.body(f.ErrorEvent).Message)}, nil
	default:
		return &Unknown{Kind: kind}, nil
	}
}

func discriminator(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrMissingType
	}
	var kind string
	if err := sonic.Unmarshal(raw, &kind); err != nil {
		return "", fmt.Errorf("%w: type is not a string", ErrMalformed)
	}
	if kind == "" {
		return "", ErrMissingType
	}
	return kind, nil
}

// text accepts a JSON string and reads anything else as empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	*t = ""
	if len(b) == 0 || b[0] != '"' {
		return nil
	}
	var s string
	if err := sonic.Unmarshal(b, &s); err != nil {
		return nil
	}
	*t = text(s)
	return nil
}

// uint32Num accepts a non-negative integer, as a number or a numeric
// string. Anything else, including out-of-range values, reads as zero.
type uint32Num uint32

func (n *uint32Num) UnmarshalJSON(b []byte) error {
	*n = 0
	v, err := strconv.ParseUint(string(bytes.Trim(b, `"`)), 10, 32)
	if err != nil {
		return nil
	}
	*n = uint32Num(v)
	return nil
}

type floatNum float64

func (f *floatNum) UnmarshalJSON(b []byte) error {
	*f = 0
	v, err := strconv.ParseFloat(string(bytes.Trim(b, `"`)), 64)
	if err != nil {
		return nil
	}
	*f = floatNum(v)
	return nil
}

// object accepts a JSON object and reads anything else as nil.
type object map[string]any

func (o *object) UnmarshalJSON(b []byte) error {
	*o = nil
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var m map[string]any
	if err := sonic.Unmarshal(b, &m); err != nil {
		return nil
	}
	*o = m
	return nil
}

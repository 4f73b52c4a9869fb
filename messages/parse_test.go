package messages

import (
	"errors"
	"testing"
)

func TestParseNestedEvents(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, m Inbound)
	}{
		{
			name: "conversation init",
			raw:  `{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv_1","agent_output_audio_format":"pcm_16000"}}`,
			want: func(t *testing.T, m Inbound) {
				ci, ok := m.(*ConversationInit)
				if !ok || ci.ConversationID != "conv_1" || ci.AgentOutputFormat != "pcm_16000" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "transcript",
			raw:  `{"type":"user_transcript","user_transcription_event":{"user_transcript":"hi there"}}`,
			want: func(t *testing.T, m Inbound) {
				if tr, ok := m.(*Transcript); !ok || tr.Text != "hi there" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "agent response",
			raw:  `{"type":"agent_response","agent_response_event":{"agent_response":"hello"}}`,
			want: func(t *testing.T, m Inbound) {
				if ar, ok := m.(*AgentResponse); !ok || ar.Text != "hello" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "correction",
			raw:  `{"type":"agent_response_correction","agent_response_correction_event":{"agent_response_correction":"hel"}}`,
			want: func(t *testing.T, m Inbound) {
				if c, ok := m.(*AgentResponseCorrection); !ok || c.Text != "hel" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "tentative",
			raw:  `{"type":"internal_tentative_agent_response","tentative_agent_response_internal_event":{"tentative_agent_response":"thinking"}}`,
			want: func(t *testing.T, m Inbound) {
				if c, ok := m.(*TentativeAgentResponse); !ok || c.Text != "thinking" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "audio",
			raw:  `{"type":"audio","audio_event":{"event_id":7,"audio_base_64":"AAA="}}`,
			want: func(t *testing.T, m Inbound) {
				a, ok := m.(*AudioChunk)
				if !ok || a.EventID != 7 || a.Audio != "AAA=" {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "ping",
			raw:  `{"type":"ping","ping_event":{"event_id":3,"ping_ms":120}}`,
			want: func(t *testing.T, m Inbound) {
				p, ok := m.(*Ping)
				if !ok || p.EventID != 3 || p.PingMS != 120 {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "tool call",
			raw:  `{"type":"client_tool_call","client_tool_call":{"tool_name":"set_volume","tool_call_id":"c1","parameters":{"volume":0.5}}}`,
			want: func(t *testing.T, m Inbound) {
				tc, ok := m.(*ToolCall)
				if !ok || tc.Name != "set_volume" || tc.CallID != "c1" || tc.Parameters["volume"] != 0.5 {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "vad score",
			raw:  `{"type":"vad_score","vad_score_event":{"vad_score":0.95}}`,
			want: func(t *testing.T, m Inbound) {
				if v, ok := m.(*VadScore); !ok || v.Score != 0.95 {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "interruption",
			raw:  `{"type":"interruption","interruption_event":{"event_id":12}}`,
			want: func(t *testing.T, m Inbound) {
				if i, ok := m.(*Interruption); !ok || i.EventID != 12 {
					t.Fatalf("got %#v", m)
				}
			},
		},
		{
			name: "error",
			raw:  `{"type":"error","message":"quota exceeded"}`,
			want: func(t *testing.T, m Inbound) {
				if e, ok := m.(*Error); !ok || e.Message != "quota exceeded" {
					t.Fatalf("got %#v", m)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.want(t, m)
		})
	}
}

func TestParseFlatPayload(t *testing.T) {
	m, err := Parse([]byte(`{"type":"audio","event_id":4,"audio_base_64":"AQI="}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	a, ok := m.(*AudioChunk)
	if !ok || a.EventID != 4 || a.Audio != "AQI=" {
		t.Fatalf("got %#v", m)
	}
}

func TestParseLenientNumbers(t *testing.T) {
	tests := map[string]uint32{
		`{"type":"interruption","event_id":"9"}`:          9,
		`{"type":"interruption","event_id":-1}`:           0,
		`{"type":"interruption","event_id":1.5}`:          0,
		`{"type":"interruption","event_id":"abc"}`:        0,
		`{"type":"interruption","event_id":99999999999}`:  0,
		`{"type":"interruption"}`:                         0,
		`{"type":"interruption","interruption_event":{}}`: 0,
	}
	for raw, want := range tests {
		m, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse(%s) error = %v", raw, err)
		}
		if got := m.(*Interruption).EventID; got != want {
			t.Fatalf("Parse(%s) event id = %d, want %d", raw, got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{`not json`, ErrMalformed},
		{`[1,2]`, ErrMalformed},
		{`{"type":5}`, ErrMalformed},
		{`{"event_id":1}`, ErrMissingType},
		{`{"type":null}`, ErrMissingType},
		{`{"type":""}`, ErrMissingType},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.raw)); !errors.Is(err, tt.want) {
			t.Fatalf("Parse(%s) error = %v, want %v", tt.raw, err, tt.want)
		}
	}
}

func TestParseUnknownType(t *testing.T) {
	m, err := Parse([]byte(`{"type":"agent_tool_response","foo":1}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	u, ok := m.(*Unknown)
	if !ok || u.Type() != "agent_tool_response" {
		t.Fatalf("got %#v", m)
	}
}

func TestParseWrongFieldKinds(t *testing.T) {
	m, err := Parse([]byte(`{"type":"client_tool_call","client_tool_call":{"tool_name":42,"tool_call_id":"c","parameters":[1]}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tc := m.(*ToolCall)
	if tc.Name != "" || tc.CallID != "c" || tc.Parameters != nil {
		t.Fatalf("got %#v", tc)
	}
}

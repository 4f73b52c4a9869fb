package server

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/room4-2/voicelink/audio"
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
	interruptCmd  = "/interrupt"
	toolCmdPrefix = "/tool "
)

// clientFrame is every field a device may send, flattened.
type clientFrame struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	UserAudioChunk string `json:"user_audio_chunk"`
	EventID        uint32 `json:"event_id"`
	ToolCallID     string `json:"tool_call_id"`
	Result         string `json:"result"`
	IsError        bool   `json:"is_error"`
	Override       *struct {
		Agent *struct {
			FirstMessage string `json:"first_message"`
			Prompt       *struct {
				Prompt string `json:"prompt"`
			} `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config_override"`
}

// conversation is one device connection. The read loop runs on the HTTP
// handler goroutine; writes are serialised through send.
type conversation struct {
	id      string
	agentID string
	conn    *websocket.Conn
	cfg     Config

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	nextEvent atomic.Uint32
	lastAudio atomic.Uint32

	mu         sync.Mutex
	heardBytes int
	turnTimer  *time.Timer
}

func newConversation(conn *websocket.Conn, cfg Config, agentID string) *conversation {
	return &conversation{
		id:      "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		agentID: agentID,
		conn:    conn,
		cfg:     cfg,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
	}
}

func (c *conversation) run() {
	go c.writePump()
	defer c.close()

	if !c.awaitHandshake() {
		return
	}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("conversation read error", "conversation_id", c.id, "error", err)
			}
			return
		}
		var f clientFrame
		if err := sonic.Unmarshal(data, &f); err != nil {
			slog.Warn("⚠️ invalid client frame", "conversation_id", c.id, "error", err)
			continue
		}
		c.handle(&f)
	}
}

func (c *conversation) awaitHandshake() bool {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return false
	}
	var f clientFrame
	if err := sonic.Unmarshal(data, &f); err != nil || f.Type != "conversation_initiation_client_data" {
		slog.Warn("⚠️ expected conversation initiation", "conversation_id", c.id, "frame", string(data))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected conversation_initiation_client_data")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return false
	}

	firstMessage := c.cfg.FirstMessage
	if f.Override != nil && f.Override.Agent != nil {
		if f.Override.Agent.FirstMessage != "" {
			firstMessage = f.Override.Agent.FirstMessage
		}
		if p := f.Override.Agent.Prompt; p != nil && p.Prompt != "" {
			slog.Info("📝 prompt override", "conversation_id", c.id, "agent_id", c.agentID, "chars", len(p.Prompt))
		}
	}

	c.emit("conversation_initiation_metadata", "conversation_initiation_metadata_event", map[string]any{
		"conversation_id":           c.id,
		"agent_output_audio_format": "pcm_16000",
		"user_input_audio_format":   "pcm_16000",
	})
	if firstMessage != "" {
		c.reply(firstMessage)
	}
	return true
}

func (c *conversation) handle(f *clientFrame) {
	switch f.Type {
	case "user_message":
		c.userText(f.Text)
	case "pong":
		slog.Debug("🏓 pong", "conversation_id", c.id, "event_id", f.EventID)
	case "user_activity":
		slog.Debug("👤 user activity", "conversation_id", c.id)
	case "contextual_update":
		slog.Info("📎 contextual update", "conversation_id", c.id, "text", f.Text)
	case "client_tool_result":
		slog.Info("🔧 tool result", "conversation_id", c.id, "tool_call_id", f.ToolCallID, "result", f.Result, "is_error", f.IsError)
	case "":
		if f.UserAudioChunk != "" {
			c.userAudio(f.UserAudioChunk)
			return
		}
		slog.Debug("frame without type", "conversation_id", c.id)
	default:
		slog.Debug("unhandled client frame", "conversation_id", c.id, "type", f.Type)
	}
}

func (c *conversation) userText(text string) {
	switch {
	case text == interruptCmd:
		id := c.lastAudio.Load()
		slog.Info("✋ interrupting", "conversation_id", c.id, "event_id", id)
		c.emit("interruption", "interruption_event", map[string]any{"event_id": id})
	case strings.HasPrefix(text, toolCmdPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(text, toolCmdPrefix))
		c.emit("client_tool_call", "client_tool_call", map[string]any{
			"tool_name":    name,
			"tool_call_id": "call_" + uuid.NewString()[:8],
			"parameters":   map[string]any{},
		})
	default:
		c.emit("user_transcript", "user_transcription_event", map[string]any{"user_transcript": text})
		c.reply("You said: " + text)
	}
}

// userAudio counts incoming audio and answers once the user pauses.
func (c *conversation) userAudio(b64 string) {
	pcm, err := audio.Decode(b64)
	if err != nil {
		slog.Warn("⚠️ bad user audio", "conversation_id", c.id, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.heardBytes += len(pcm)
	if c.turnTimer != nil {
		c.turnTimer.Stop()
	}
	c.turnTimer = time.AfterFunc(c.cfg.TurnSilence, c.endUserTurn)
}

func (c *conversation) endUserTurn() {
	c.mu.Lock()
	n := c.heardBytes
	c.heardBytes = 0
	c.turnTimer = nil
	c.mu.Unlock()

	d := audio.DurationOf(c.cfg.SampleRate, n)
	slog.Info("🎧 user turn", "conversation_id", c.id, "bytes", n, "duration", d)
	c.emit("user_transcript", "user_transcription_event", map[string]any{"user_transcript": "(" + d.String() + " of audio)"})
	c.reply("I heard " + d.Round(100*time.Millisecond).String() + " of audio.")
}

// reply sends an agent response followed by its audio.
func (c *conversation) reply(text string) {
	c.emit("agent_response", "agent_response_event", map[string]any{"agent_response": text})
	for _, chunk := range audio.Split(Tone(c.cfg.SampleRate, c.cfg.ToneHz, c.cfg.ToneDuration), c.cfg.ChunkBytes) {
		id := c.nextEvent.Add(1)
		c.lastAudio.Store(id)
		c.emit("audio", "audio_event", map[string]any{
			"event_id":      id,
			"audio_base_64": audio.Encode(chunk),
		})
	}
}

// emit queues {"type": kind, key: body}. It never blocks; frames are dropped
// once the connection is closing.
func (c *conversation) emit(kind, key string, body map[string]any) {
	data, err := sonic.Marshal(map[string]any{"type": kind, key: body})
	if err != nil {
		slog.Error("failed to encode frame", "type", kind, "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		slog.Warn("⚠️ send queue full, dropping frame", "conversation_id", c.id, "type", kind)
	}
}

func (c *conversation) writePump() {
	var pings <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("conversation write error", "conversation_id", c.id, "error", err)
				c.close()
				return
			}
		case <-pings:
			c.emit("ping", "ping_event", map[string]any{"event_id": c.nextEvent.Add(1), "ping_ms": 0})
		}
	}
}

func (c *conversation) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.turnTimer != nil {
			c.turnTimer.Stop()
		}
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

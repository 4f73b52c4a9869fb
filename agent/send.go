package agent

import (
	"log/slog"

	"github.com/room4-2/voicelink/audio"
	"github.com/room4-2/voicelink/messages"
)

// send writes m on the open connection. Failures are returned and also
// passed to OnError; the read side notices a dead socket on its own.
func (c *Client) send(m messages.Outbound) error {
	if c.link == nil || c.link.conn == nil {
		err := &TransportError{Op: "send " + m.Type(), Err: ErrNotConnected}
		c.report(err)
		return err
	}
	data, err := messages.Serialize(m)
	if err != nil {
		return err
	}
	if err := c.link.conn.WriteMessage(data); err != nil {
		terr := &TransportError{Op: "send " + m.Type(), Err: err}
		c.report(terr)
		return terr
	}
	c.session.Touch(c.now())
	return nil
}

// SendText sends a typed user message.
func (c *Client) SendText(text string) error {
	if err := c.send(&messages.UserText{Text: text}); err != nil {
		return err
	}
	c.recorder.AppendTranscript(c.session.ConversationID, "user", text)
	slog.Info("📤 sent text", "chars", len(text))
	return nil
}

// SendAudioChunk sends one chunk of user PCM. Callers keep chunks at or
// below the configured chunk size.
func (c *Client) SendAudioChunk(pcm []byte) error {
	return c.send(&messages.UserAudioChunk{Audio: pcm})
}

// SendAudio splits pcm into chunks and sends them back to back. Use an
// audio.Splitter to pace chunks instead.
func (c *Client) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return messages.ErrEmptyAudio
	}
	chunks := audio.Split(pcm, c.cfg.ChunkSize)
	for i, chunk := range chunks {
		if err := c.SendAudioChunk(chunk); err != nil {
			slog.Warn("⚠️ audio send aborted", "chunk", i+1, "chunks", len(chunks), "error", err)
			return err
		}
	}
	slog.Info("📤 sent audio", "bytes", len(pcm), "chunks", len(chunks))
	return nil
}

func (c *Client) SendUserActivity() error {
	return c.send(&messages.UserActivity{})
}

// SendContextualUpdate gives the agent background information without
// prompting a reply.
func (c *Client) SendContextualUpdate(text string) error {
	return c.send(&messages.ContextualUpdate{Text: text})
}

// SendToolResult answers a client tool call.
func (c *Client) SendToolResult(callID, result string, isError bool) error {
	return c.send(&messages.ToolResult{CallID: callID, Result: result, IsError: isError})
}

// ChunkSize returns the outbound audio chunk size.
func (c *Client) ChunkSize() int {
	return c.cfg.ChunkSize
}

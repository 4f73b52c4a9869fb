package device

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

const wavHeaderSize = 44

// FileMicrophone replays a raw PCM or WAV file as microphone input. It
// reports io.EOF once the file is used up. The file must already be at the
// sample rate the microphone is opened with.
type FileMicrophone struct {
	Path string

	data []byte
	pos  int
}

func NewFileMicrophone(path string) *FileMicrophone {
	return &FileMicrophone{Path: path}
}

func (m *FileMicrophone) Open(sampleRate int) error {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	m.data = pcmPayload(data)
	m.pos = 0
	slog.Info("📁 file microphone open", "path", m.Path, "bytes", len(m.data), "sample_rate", sampleRate)
	return nil
}

// pcmPayload strips a standard WAV header.
func pcmPayload(data []byte) []byte {
	if len(data) > wavHeaderSize && bytes.Equal(data[0:4], []byte("RIFF")) {
		slog.Debug("📁 detected WAV file, skipping header")
		return data[wavHeaderSize:]
	}
	return data
}

func (m *FileMicrophone) Read(p []byte, _ time.Duration) (int, error) {
	if m.data == nil {
		return 0, ErrNotOpen
	}
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += n
	return n, nil
}

func (m *FileMicrophone) Close() error {
	m.data = nil
	return nil
}

// DiscardSpeaker accepts audio and drops it.
type DiscardSpeaker struct {
	Written int64
}

func (d *DiscardSpeaker) Open(sampleRate, channels int) error {
	slog.Info("🔇 speaker output discarded", "sample_rate", sampleRate, "channels", channels)
	return nil
}

func (d *DiscardSpeaker) Write(p []byte, _ time.Duration) (int, error) {
	d.Written += int64(len(p))
	return len(p), nil
}

func (d *DiscardSpeaker) Discard() error { return nil }
func (d *DiscardSpeaker) Close() error   { return nil }

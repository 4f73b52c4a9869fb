package device

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const soxBinary = "sox"

func rawFormat(sampleRate, channels int) []string {
	return []string{
		"-t", "raw",
		"-r", strconv.Itoa(sampleRate),
		"-b", "16",
		"-c", strconv.Itoa(channels),
		"-e", "signed-integer",
	}
}

// SoxMicrophone records mono PCM from the default input device via sox.
type SoxMicrophone struct {
	// Binary overrides the sox executable.
	Binary string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *streamReader
}

func (m *SoxMicrophone) args(sampleRate int) []string {
	args := []string{"-q", "-d"}
	args = append(args, rawFormat(sampleRate, 1)...)
	return append(args, "-")
}

func (m *SoxMicrophone) Open(sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil {
		return nil
	}

	cmd := exec.Command(binaryOr(m.Binary), m.args(sampleRate)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("sox stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sox start (is sox installed?): %w", err)
	}

	m.cmd = cmd
	m.stdout = stdout
	m.reader = newStreamReader(stdout)
	slog.Info("🎤 sox microphone open", "sample_rate", sampleRate)
	return nil
}

func (m *SoxMicrophone) Read(p []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	r := m.reader
	m.mu.Unlock()
	if r == nil {
		return 0, ErrNotOpen
	}
	return r.Read(p, timeout)
}

func (m *SoxMicrophone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil {
		return nil
	}
	m.reader.stop()
	_ = m.stdout.Close()
	if m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	_ = m.cmd.Wait()
	m.cmd, m.stdout, m.reader = nil, nil, nil
	return nil
}

// SoxSpeaker plays interleaved PCM on the default output device via sox.
type SoxSpeaker struct {
	// Binary overrides the sox executable.
	Binary string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *streamWriter
}

func (s *SoxSpeaker) args(sampleRate, channels int) []string {
	args := []string{"-q"}
	args = append(args, rawFormat(sampleRate, channels)...)
	return append(args, "-", "-d")
}

func (s *SoxSpeaker) Open(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	cmd := exec.Command(binaryOr(s.Binary), s.args(sampleRate, channels)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("sox stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sox start (is sox installed?): %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.writer = newStreamWriter(stdin)
	slog.Info("🔊 sox speaker open", "sample_rate", sampleRate, "channels", channels)
	return nil
}

func (s *SoxSpeaker) Write(p []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return 0, ErrNotOpen
	}
	return w.Write(p, timeout)
}

// Discard drops queued audio that sox has not read yet.
func (s *SoxSpeaker) Discard() error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return ErrNotOpen
	}
	if n := w.discard(); n > 0 {
		slog.Debug("🔇 dropped queued speaker audio", "bytes", n)
	}
	return nil
}

// Close lets sox play what is already queued, then waits for it to exit.
func (s *SoxSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	err := s.writer.close()
	_ = s.stdin.Close()
	if werr := s.cmd.Wait(); err == nil && werr != nil {
		err = fmt.Errorf("sox exit: %w", werr)
	}
	s.cmd, s.stdin, s.writer = nil, nil, nil
	return err
}

func binaryOr(b string) string {
	if b == "" {
		return soxBinary
	}
	return b
}

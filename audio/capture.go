package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Unbounded asks Start for a session that records until Finish is called
// or the duration ceiling is reached.
const Unbounded time.Duration = -1

var (
	ErrAlreadyRecording = errors.New("capture session already active")
	ErrAllocationFailed = errors.New("capture buffer exceeds memory budget")
	ErrInvalidDuration  = errors.New("invalid capture duration")
	ErrInvalidRate      = errors.New("invalid sample rate")
	ErrNotComplete      = errors.New("capture session not complete")
	ErrInvalidGain      = errors.New("gain out of range")
)

const (
	MinGain = 0.1
	MaxGain = 10.0

	DefaultMemoryBudget = 6 << 20
)

// CaptureConfig bounds what a Capture may allocate.
type CaptureConfig struct {
	Gain         float64
	MaxDuration  time.Duration
	// MemoryBudget caps one recording buffer. Zero means DefaultMemoryBudget.
	MemoryBudget int
}

// CaptureStats describes the current or last capture session.
type CaptureStats struct {
	SampleRate      int
	PlannedSamples  int
	PlannedBytes    int
	RecordedSamples int
	Active          bool
	Complete        bool
}

// Capture records one fixed-length session of microphone PCM at a time.
type Capture struct {
	cfg CaptureConfig

	buf        []byte
	target     int
	written    int
	sampleRate int
	active     bool
	complete   bool
}

// NewCapture returns an idle capture buffer. A zero Gain means unity.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}
	if !validGain(cfg.Gain) {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidGain, cfg.Gain)
	}
	if cfg.MaxDuration <= 0 {
		return nil, fmt.Errorf("%w: ceiling %s", ErrInvalidDuration, cfg.MaxDuration)
	}
	if cfg.MemoryBudget < 0 {
		return nil, fmt.Errorf("%w: budget %d", ErrAllocationFailed, cfg.MemoryBudget)
	}
	if cfg.MemoryBudget == 0 {
		cfg.MemoryBudget = DefaultMemoryBudget
	}
	return &Capture{cfg: cfg}, nil
}

// Start opens a session of d at sampleRate. Any buffer left from a
// previous session is released first, so a failed Start leaves nothing
// allocated.
func (c *Capture) Start(d time.Duration, sampleRate int) error {
	if c.active {
		return ErrAlreadyRecording
	}
	c.reset()

	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, sampleRate)
	}
	if d == Unbounded {
		d = c.cfg.MaxDuration
	}
	if d <= 0 || d > c.cfg.MaxDuration {
		return fmt.Errorf("%w: %s (ceiling %s)", ErrInvalidDuration, d, c.cfg.MaxDuration)
	}

	size := BytesFor(sampleRate, d)
	if size <= 0 {
		return fmt.Errorf("%w: %s at %d Hz holds no samples", ErrInvalidDuration, d, sampleRate)
	}
	if size > c.cfg.MemoryBudget {
		return fmt.Errorf("%w: need %d bytes, budget %d", ErrAllocationFailed, size, c.cfg.MemoryBudget)
	}

	c.buf = make([]byte, size)
	c.target = size
	c.sampleRate = sampleRate
	c.active = true

	slog.Debug("🎙️ capture started", "duration", d, "bytes", size, "sample_rate", sampleRate)
	return nil
}

// Feed appends microphone PCM to the session, applying gain, and returns
// how many bytes of p were consumed. Input past the target and a trailing
// half sample are ignored. Feed does nothing when no session is recording.
func (c *Capture) Feed(p []byte) int {
	if !c.active {
		return 0
	}
	n := min(len(p)&^1, c.target-c.written)
	if n <= 0 {
		return 0
	}
	dst := c.buf[c.written : c.written+n]
	copy(dst, p[:n])
	Scale(dst, c.cfg.Gain)
	c.written += n

	if c.written >= c.target {
		c.active = false
		c.complete = true
		slog.Debug("🎙️ capture complete", "bytes", c.written)
	}
	return n
}

// Finish ends an active session early, keeping what was recorded.
func (c *Capture) Finish() {
	if !c.active {
		return
	}
	c.active = false
	c.complete = true
	slog.Debug("🎙️ capture finished early", "bytes", c.written, "planned", c.target)
}

// Take hands the recorded bytes to the caller. The capture no longer
// references them afterwards.
func (c *Capture) Take() ([]byte, error) {
	if !c.complete {
		return nil, ErrNotComplete
	}
	out := c.buf[:c.written]
	c.reset()
	return out, nil
}

// Clear releases the session buffer. It refuses while recording.
func (c *Capture) Clear() error {
	if c.active {
		slog.Warn("⚠️ refusing to clear an active capture session")
		return ErrAlreadyRecording
	}
	c.reset()
	return nil
}

func (c *Capture) reset() {
	c.buf = nil
	c.target = 0
	c.written = 0
	c.active = false
	c.complete = false
}

// IsRecording reports whether a session is accepting input.
func (c *Capture) IsRecording() bool { return c.active }

// IsComplete reports whether a finished session is waiting to be taken.
func (c *Capture) IsComplete() bool { return c.complete }

// Recorded returns the bytes recorded so far. The slice aliases the
// session buffer and is only valid until the next Feed, Take or Clear.
func (c *Capture) Recorded() []byte { return c.buf[:c.written] }

// Remaining returns how many bytes the session still expects.
func (c *Capture) Remaining() int { return c.target - c.written }

// Gain returns the current gain factor.
func (c *Capture) Gain() float64 { return c.cfg.Gain }

// SetGain changes the gain applied to subsequently fed samples.
func (c *Capture) SetGain(g float64) error {
	if !validGain(g) {
		return fmt.Errorf("%w: %.2f (want %.1f-%.1f)", ErrInvalidGain, g, MinGain, MaxGain)
	}
	c.cfg.Gain = g
	return nil
}

func validGain(g float64) bool {
	return !math.IsNaN(g) && g >= MinGain && g <= MaxGain
}

// MaxDuration returns the session ceiling.
func (c *Capture) MaxDuration() time.Duration { return c.cfg.MaxDuration }

func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		SampleRate:      c.sampleRate,
		PlannedSamples:  c.target / BytesPerSample,
		PlannedBytes:    c.target,
		RecordedSamples: c.written / BytesPerSample,
		Active:          c.active,
		Complete:        c.complete,
	}
}

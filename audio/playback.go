package audio

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
)

var (
	ErrAlreadyPlaying = errors.New("playback session already active")
	ErrNoAudio        = errors.New("no audio to play")
)

// PlaybackConfig describes the output device.
type PlaybackConfig struct {
	Volume     float64
	Channels   int
	SampleRate int
}

// PlaybackStats describes the current or last playback session.
type PlaybackStats struct {
	SampleRate   int
	Channels     int
	TotalSamples int
	Position     int
	Playing      bool
}

// Playback holds one mono PCM clip and drains it to the speaker, expanding
// to the device channel count as it goes.
type Playback struct {
	volume     float64
	channels   int
	sampleRate int

	store   []byte
	scratch []byte
	cursor  int
	playing bool
}

// NewPlayback returns an idle playback buffer. Channels defaults to 1 and
// volume is clamped to [0, 1].
func NewPlayback(cfg PlaybackConfig) *Playback {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Playback{
		volume:     clampVolume(cfg.Volume),
		channels:   cfg.Channels,
		sampleRate: cfg.SampleRate,
	}
}

// Start copies pcm into the backing store, applies volume and begins a
// session. Call Stop first to replace a clip that is still playing.
func (p *Playback) Start(pcm []byte) error {
	if p.playing {
		return ErrAlreadyPlaying
	}
	n := len(pcm) &^ 1
	if n == 0 {
		return ErrNoAudio
	}
	p.store = append(p.store[:0], pcm[:n]...)
	Scale(p.store, p.volume)
	p.cursor = 0
	p.playing = true
	slog.Debug("🔊 playback started", "bytes", n, "channels", p.channels)
	return nil
}

// Drain returns up to maxBytes of device-format PCM and advances the
// cursor. The returned slice is only valid until the next call on p.
// It returns nil when nothing is playing or maxBytes is below one frame.
func (p *Playback) Drain(maxBytes int) []byte {
	if !p.playing {
		return nil
	}
	frame := BytesPerSample * p.channels
	samples := min(maxBytes/frame, (len(p.store)-p.cursor)/BytesPerSample)
	if samples <= 0 {
		return nil
	}
	src := p.store[p.cursor : p.cursor+samples*BytesPerSample]
	p.cursor += len(src)
	if p.cursor >= len(p.store) {
		p.playing = false
		slog.Debug("🔊 playback complete", "bytes", len(p.store))
	}

	if p.channels == 1 {
		return src
	}
	need := samples * frame
	if cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	out := p.scratch[:need]
	for i := 0; i < samples; i++ {
		s := binary.LittleEndian.Uint16(src[i*BytesPerSample:])
		for ch := 0; ch < p.channels; ch++ {
			binary.LittleEndian.PutUint16(out[(i*p.channels+ch)*BytesPerSample:], s)
		}
	}
	return out
}

// IsPlaying reports whether samples remain to be drained.
func (p *Playback) IsPlaying() bool { return p.playing }

// Stop halts the session and rewinds, keeping the backing store for reuse.
func (p *Playback) Stop() {
	p.playing = false
	p.cursor = 0
	p.store = p.store[:0]
}

// Clear stops and releases all memory.
func (p *Playback) Clear() {
	p.Stop()
	p.store = nil
	p.scratch = nil
}

// Remaining returns the mono bytes left to drain.
func (p *Playback) Remaining() int {
	if !p.playing {
		return 0
	}
	return len(p.store) - p.cursor
}

// Volume returns the current volume.
func (p *Playback) Volume() float64 { return p.volume }

// SetVolume clamps v to [0, 1]; NaN mutes. It applies to the next Start.
func (p *Playback) SetVolume(v float64) { p.volume = clampVolume(v) }

// Channels returns the output channel count.
func (p *Playback) Channels() int { return p.channels }

func (p *Playback) Stats() PlaybackStats {
	return PlaybackStats{
		SampleRate:   p.sampleRate,
		Channels:     p.channels,
		TotalSamples: len(p.store) / BytesPerSample,
		Position:     p.cursor / BytesPerSample,
		Playing:      p.playing,
	}
}

func clampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

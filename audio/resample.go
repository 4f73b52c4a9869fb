package audio

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ParseFormat reads a wire format such as "pcm_16000" and returns its
// sample rate. Only 16-bit PCM formats are accepted.
func ParseFormat(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("unsupported audio format %q", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sample rate in audio format %q", format)
	}
	return n, nil
}

// Resampler converts 16-bit mono PCM between two sample rates. It keeps
// filter state across calls, so it must see one continuous stream.
type Resampler struct {
	from, to int
	r        resampling.Resampler
	in       []float64
	out      []byte
}

// NewResampler returns a resampler from one rate to another. Equal rates
// give a passthrough resampler.
func NewResampler(from, to int) (*Resampler, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, from, to)
	}
	rs := &Resampler{from: from, to: to}
	if from == to {
		return rs, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	rs.r = r
	return rs, nil
}

// Passthrough reports whether Process returns its input unchanged.
func (rs *Resampler) Passthrough() bool { return rs.r == nil }

// Process resamples pcm. The returned slice is reused by the next call.
func (rs *Resampler) Process(pcm []byte) ([]byte, error) {
	if rs.r == nil {
		return pcm, nil
	}

	n := len(pcm) / BytesPerSample
	if cap(rs.in) < n {
		rs.in = make([]float64, n)
	}
	in := rs.in[:n]
	for i := range in {
		in[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))) / 32768.0
	}

	output, err := rs.r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	need := len(output) * BytesPerSample
	if cap(rs.out) < need {
		rs.out = make([]byte, need)
	}
	out := rs.out[:need]
	for i, s := range output {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(floatSample(s)))
	}
	return out, nil
}

func floatSample(s float64) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int16(s * 32767)
	}
}

package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is the size of one 16-bit mono sample.
const BytesPerSample = 2

// Scale multiplies every sample in pcm by factor in place. Results are
// clipped to the int16 range; they never wrap. A trailing odd byte is left
// untouched.
func Scale(pcm []byte, factor float64) {
	if factor == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += BytesPerSample {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(ScaleSample(s, factor)))
	}
}

// ScaleSample applies factor to a single sample with saturation.
func ScaleSample(s int16, factor float64) int16 {
	v := float64(s) * factor
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// BytesFor returns the byte size of d seconds of mono audio at sampleRate.
// Sizes too large to represent saturate at math.MaxInt.
func BytesFor(sampleRate int, d time.Duration) int {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	if int64(sampleRate) > math.MaxInt64/int64(d) {
		return math.MaxInt
	}
	samples := int64(sampleRate) * int64(d) / int64(time.Second)
	if samples > math.MaxInt/BytesPerSample {
		return math.MaxInt
	}
	return int(samples) * BytesPerSample
}

// DurationOf returns the playing time of n bytes of mono audio at sampleRate.
func DurationOf(sampleRate, n int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/BytesPerSample) * time.Second / time.Duration(sampleRate)
}

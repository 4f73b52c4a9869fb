package server

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/room4-2/voicelink/audio"
)

const toneAmplitude = 0.3 * math.MaxInt16

// Tone returns d of a sine wave at hz as 16-bit mono PCM, faded in and out
// over 10 ms so chunk boundaries do not click.
func Tone(sampleRate int, hz float64, d time.Duration) []byte {
	n := audio.BytesFor(sampleRate, d) / audio.BytesPerSample
	fade := sampleRate / 100
	out := make([]byte, n*audio.BytesPerSample)
	for i := 0; i < n; i++ {
		env := 1.0
		if i < fade {
			env = float64(i) / float64(fade)
		} else if n-i < fade {
			env = float64(n-i) / float64(fade)
		}
		v := toneAmplitude * env * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*audio.BytesPerSample:], uint16(int16(v)))
	}
	return out
}

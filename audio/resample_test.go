package audio

import (
	"math"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want int
		ok   bool
	}{
		{"pcm_16000", 16000, true},
		{"pcm_44100", 44100, true},
		{"ulaw_8000", 0, false},
		{"pcm_", 0, false},
		{"pcm_-1", 0, false},
		{"", 0, false},
	} {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestResamplerPassthrough(t *testing.T) {
	rs, err := NewResampler(16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if !rs.Passthrough() {
		t.Fatal("equal rates should pass through")
	}
	in := pcm16(1, 2, 3)
	out, err := rs.Process(in)
	if err != nil || &out[0] != &in[0] {
		t.Fatalf("Process() copied or failed: %v", err)
	}
}

func TestResamplerRejectsBadRates(t *testing.T) {
	if _, err := NewResampler(0, 16000); err == nil {
		t.Fatal("zero input rate accepted")
	}
}

func TestResamplerDownsamplesStream(t *testing.T) {
	rs, err := NewResampler(16000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	// One second of 440 Hz in 100 ms frames.
	total := 0
	for frame := 0; frame < 10; frame++ {
		samples := make([]int16, 1600)
		for i := range samples {
			n := frame*1600 + i
			samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(n)/16000))
		}
		out, err := rs.Process(pcm16(samples...))
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if len(out)%BytesPerSample != 0 {
			t.Fatalf("odd output length %d", len(out))
		}
		total += len(out)
	}

	want := 8000 * BytesPerSample
	if total < want/2 || total > want+256 {
		t.Fatalf("resampled %d bytes, want about %d", total, want)
	}
}

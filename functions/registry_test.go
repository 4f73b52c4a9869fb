package functions

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/room4-2/voicelink/audio"
)

type fakeDevice struct {
	volume float64
	gain   float64
}

func (d *fakeDevice) Status() DeviceStatus {
	return DeviceStatus{State: "waiting_for_trigger", Volume: d.volume, MicGain: d.gain, SampleRate: 16000}
}

func (d *fakeDevice) SetVolume(v float64) { d.volume = min(max(v, 0), 1) }

func (d *fakeDevice) SetMicGain(g float64) error {
	if g < audio.MinGain || g > audio.MaxGain {
		return audio.ErrInvalidGain
	}
	d.gain = g
	return nil
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Call(context.Background(), "launch_rockets", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("Call() error = %v, want ErrUnknownTool", err)
	}
}

func TestDeviceTools(t *testing.T) {
	d := &fakeDevice{volume: 0.7, gain: 2}
	r := NewRegistry()
	RegisterDeviceTools(r, d)

	if names := r.Names(); len(names) != 3 || names[0] != ToolGetDeviceStatus {
		t.Fatalf("Names() = %v", names)
	}

	out, err := r.Call(context.Background(), ToolGetDeviceStatus, nil)
	if err != nil || !strings.Contains(out, `"volume":0.7`) || !strings.Contains(out, `"mic_gain":2`) {
		t.Fatalf("get_device_status = %q, %v", out, err)
	}

	if _, err := r.Call(context.Background(), ToolSetVolume, map[string]any{"volume": 0.25}); err != nil {
		t.Fatalf("set_volume error = %v", err)
	}
	if d.volume != 0.25 {
		t.Fatalf("volume = %v, want 0.25", d.volume)
	}
	if _, err := r.Call(context.Background(), ToolSetVolume, map[string]any{"volume": "loud"}); err == nil {
		t.Fatal("set_volume accepted a non-numeric volume")
	}
	if _, err := r.Call(context.Background(), ToolSetVolume, nil); err == nil {
		t.Fatal("set_volume accepted a missing volume")
	}

	if _, err := r.Call(context.Background(), ToolSetMicGain, map[string]any{"gain": "4"}); err != nil || d.gain != 4 {
		t.Fatalf("set_mic_gain error = %v, gain = %v", err, d.gain)
	}
	if _, err := r.Call(context.Background(), ToolSetMicGain, map[string]any{"gain": 50.0}); !errors.Is(err, audio.ErrInvalidGain) {
		t.Fatalf("set_mic_gain(50) error = %v", err)
	}
}

func TestDeviceToolsRejectNonFinite(t *testing.T) {
	d := &fakeDevice{volume: 0.7, gain: 2}
	r := NewRegistry()
	RegisterDeviceTools(r, d)

	for _, tt := range []struct {
		tool   string
		params map[string]any
	}{
		{ToolSetMicGain, map[string]any{"gain": "NaN"}},
		{ToolSetMicGain, map[string]any{"gain": math.Inf(1)}},
		{ToolSetVolume, map[string]any{"volume": "NaN"}},
		{ToolSetVolume, map[string]any{"volume": math.NaN()}},
		{ToolSetVolume, map[string]any{"volume": "-Inf"}},
	} {
		if _, err := r.Call(context.Background(), tt.tool, tt.params); err == nil {
			t.Fatalf("%s(%v) accepted a non-finite value", tt.tool, tt.params)
		}
	}
	if d.volume != 0.7 || d.gain != 2 {
		t.Fatalf("device changed to volume %v, gain %v", d.volume, d.gain)
	}

	out, err := r.Call(context.Background(), ToolGetDeviceStatus, nil)
	if err != nil || !strings.Contains(out, `"volume":0.7`) {
		t.Fatalf("get_device_status = %q, %v", out, err)
	}
}

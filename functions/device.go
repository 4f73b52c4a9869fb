package functions

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
)

const (
	ToolGetDeviceStatus = "get_device_status"
	ToolSetVolume       = "set_volume"
	ToolSetMicGain      = "set_mic_gain"
)

// DeviceStatus is reported by get_device_status.
type DeviceStatus struct {
	State          string  `json:"state"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Volume         float64 `json:"volume"`
	MicGain        float64 `json:"mic_gain"`
	SampleRate     int     `json:"sample_rate"`
	AutoMode       bool    `json:"auto_mode"`
}

// Device is the part of the device the built-in tools control.
type Device interface {
	Status() DeviceStatus
	SetVolume(v float64)
	SetMicGain(g float64) error
}

// RegisterDeviceTools adds get_device_status, set_volume and set_mic_gain.
func RegisterDeviceTools(r *Registry, d Device) {
	r.Register(ToolGetDeviceStatus, "Report the device state, speaker volume and microphone gain",
		func(context.Context, map[string]any) (string, error) {
			b, err := sonic.Marshal(d.Status())
			if err != nil {
				return "", err
			}
			return string(b), nil
		})

	r.Register(ToolSetVolume, "Set the speaker volume between 0 and 1",
		func(_ context.Context, params map[string]any) (string, error) {
			v, err := floatParam(params, "volume")
			if err != nil {
				return "", err
			}
			d.SetVolume(v)
			return fmt.Sprintf("volume set to %.2f", d.Status().Volume), nil
		})

	r.Register(ToolSetMicGain, "Set the microphone gain between 0.1 and 10",
		func(_ context.Context, params map[string]any) (string, error) {
			g, err := floatParam(params, "gain")
			if err != nil {
				return "", err
			}
			if err := d.SetMicGain(g); err != nil {
				return "", err
			}
			return fmt.Sprintf("microphone gain set to %.2f", g), nil
		})
}

func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return finite(key, v)
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return finite(key, f)
	case nil:
		return 0, fmt.Errorf("missing parameter %q", key)
	default:
		return 0, fmt.Errorf("parameter %q has type %T, want number", key, v)
	}
}

func finite(key string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: %v is not a finite number", key, v)
	}
	return v, nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAgentURL = "wss://api.elevenlabs.io/v1/convai/conversation"

// Config holds all device configuration
type Config struct {
	AgentID  string
	APIKey   string
	AgentURL string

	SampleRate       int
	OutputSampleRate int
	OutputChannels   int
	MicGain          float64
	SpeakerVolume    float64
	RecordDuration   time.Duration // negative records until the source runs dry
	MaxRecord        time.Duration
	CountdownSeconds int
	MemoryBudget     int // bytes available to one recording
	ChunkSize        int
	ChunkPacing      time.Duration

	ReconnectBase    time.Duration
	ReconnectCap     time.Duration
	HandshakeTimeout time.Duration
	ResponseTimeout  time.Duration

	AutoMode      bool
	StreamAudio   bool
	OverrideAudio bool
	CustomPrompt  string
	FirstMessage  string

	RedisURL      string // empty disables the session store
	RedisPassword string
	SessionTTL    time.Duration

	MicSource   string // "sox" or a PCM/WAV path
	SpeakerSink string // "sox" or "discard"
	LogLevel    slog.Level
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		AgentURL:         DefaultAgentURL,
		SampleRate:       16000,
		OutputSampleRate: 16000,
		OutputChannels:   2,
		MicGain:          2.0,
		SpeakerVolume:    0.7,
		RecordDuration:   5 * time.Second,
		MaxRecord:        60 * time.Second,
		CountdownSeconds: 3,
		MemoryBudget:     6 * 1024 * 1024,
		ChunkSize:        8000,
		ChunkPacing:      10 * time.Millisecond,
		ReconnectBase:    5 * time.Second,
		ReconnectCap:     60 * time.Second,
		HandshakeTimeout: 15 * time.Second,
		ResponseTimeout:  30 * time.Second,
		OverrideAudio:    true,
		SessionTTL:       30 * time.Minute,
		MicSource:        "sox",
		SpeakerSink:      "sox",
		LogLevel:         slog.LevelInfo,
	}

	// Required: AGENT_ID
	config.AgentID = os.Getenv("AGENT_ID")
	if config.AgentID == "" {
		return nil, errors.New("AGENT_ID environment variable is required")
	}

	config.APIKey = os.Getenv("API_KEY")
	if agentURL := os.Getenv("AGENT_URL"); agentURL != "" {
		config.AgentURL = agentURL
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SAMPLE_RATE", &config.SampleRate},
		{"OUTPUT_SAMPLE_RATE", &config.OutputSampleRate},
		{"OUTPUT_CHANNELS", &config.OutputChannels},
		{"COUNTDOWN_SECONDS", &config.CountdownSeconds},
		{"MEMORY_BUDGET", &config.MemoryBudget},
		{"CHUNK_SIZE", &config.ChunkSize},
	}
	for _, v := range ints {
		if err := intEnv(v.key, v.dst); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key  string
		unit time.Duration
		dst  *time.Duration
	}{
		{"RECORD_SECONDS", time.Second, &config.RecordDuration},
		{"MAX_RECORD_SECONDS", time.Second, &config.MaxRecord},
		{"CHUNK_PACING_MS", time.Millisecond, &config.ChunkPacing},
		{"RECONNECT_BASE_MS", time.Millisecond, &config.ReconnectBase},
		{"RECONNECT_CAP_MS", time.Millisecond, &config.ReconnectCap},
		{"HANDSHAKE_TIMEOUT", time.Second, &config.HandshakeTimeout},
		{"RESPONSE_TIMEOUT", time.Second, &config.ResponseTimeout},
		{"SESSION_TTL", time.Minute, &config.SessionTTL},
	}
	for _, v := range durations {
		if err := durationEnv(v.key, v.unit, v.dst); err != nil {
			return nil, err
		}
	}

	// Optional: MIC_GAIN (0.1 - 10)
	if err := floatEnv("MIC_GAIN", &config.MicGain); err != nil {
		return nil, err
	}
	if config.MicGain < 0.1 || config.MicGain > 10 {
		return nil, fmt.Errorf("invalid MIC_GAIN: %v is outside 0.1-10", config.MicGain)
	}

	// Optional: SPEAKER_VOLUME (0 - 1)
	if err := floatEnv("SPEAKER_VOLUME", &config.SpeakerVolume); err != nil {
		return nil, err
	}
	if config.SpeakerVolume < 0 || config.SpeakerVolume > 1 {
		return nil, fmt.Errorf("invalid SPEAKER_VOLUME: %v is outside 0-1", config.SpeakerVolume)
	}

	for key, dst := range map[string]*bool{
		"AUTO_MODE":      &config.AutoMode,
		"STREAM_AUDIO":   &config.StreamAudio,
		"OVERRIDE_AUDIO": &config.OverrideAudio,
	} {
		if err := boolEnv(key, dst); err != nil {
			return nil, err
		}
	}

	config.CustomPrompt = os.Getenv("CUSTOM_PROMPT")
	config.FirstMessage = os.Getenv("FIRST_MESSAGE")
	config.RedisURL = os.Getenv("REDIS_URL")
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if source := os.Getenv("MIC_SOURCE"); source != "" {
		config.MicSource = source
	}

	// Optional: SPEAKER_SINK ("sox" or "discard")
	if sink := os.Getenv("SPEAKER_SINK"); sink != "" {
		switch sink {
		case "sox", "discard":
			config.SpeakerSink = sink
		default:
			return nil, fmt.Errorf("invalid SPEAKER_SINK: must be 'sox' or 'discard'")
		}
	}

	// Optional: LOG_LEVEL (debug, info, warn, error)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := config.LogLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	if config.SampleRate <= 0 || config.OutputSampleRate <= 0 {
		return nil, errors.New("invalid sample rate: must be positive")
	}
	if config.OutputChannels != 1 && config.OutputChannels != 2 {
		return nil, fmt.Errorf("invalid OUTPUT_CHANNELS: %d", config.OutputChannels)
	}
	if config.MemoryBudget <= 0 {
		return nil, fmt.Errorf("invalid MEMORY_BUDGET: %d must be positive", config.MemoryBudget)
	}

	return config, nil
}

func intEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func durationEnv(key string, unit time.Duration, dst *time.Duration) error {
	var n int
	if err := intEnv(key, &n); err != nil {
		return err
	}
	if os.Getenv(key) != "" {
		*dst = time.Duration(n) * unit
	}
	return nil
}

func floatEnv(key string, dst *float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid %s: %q is not a finite number", key, raw)
	}
	*dst = v
	return nil
}

func boolEnv(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

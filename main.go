package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/voicelink/agent"
	"github.com/room4-2/voicelink/config"
	"github.com/room4-2/voicelink/conversation"
	"github.com/room4-2/voicelink/device"
	"github.com/room4-2/voicelink/functions"
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

const loopTick = 10 * time.Millisecond

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("device stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("👋 device stopped")
}

func run(cfg *config.Config) error {
	store := session.NewStore(session.StoreConfig{
		RedisURL:      cfg.RedisURL,
		RedisPassword: cfg.RedisPassword,
		TTL:           cfg.SessionTTL,
	})
	defer store.Close()

	prompt := cfg.CustomPrompt
	if prompt == "" {
		prompt = session.DefaultSystemPrompt
	}
	client := agent.NewClient(agent.Config{
		ChunkSize:        cfg.ChunkSize,
		ReconnectBase:    cfg.ReconnectBase,
		ReconnectCap:     cfg.ReconnectCap,
		HandshakeTimeout: cfg.HandshakeTimeout,
		AutoReconnect:    true,
		Initiation: messages.ConversationInitiation{
			OverrideAudio: cfg.OverrideAudio,
			Prompt:        prompt,
			FirstMessage:  cfg.FirstMessage,
		},
	}, agent.WithRecorder(store))

	mic, err := device.NewMicrophone(cfg.MicSource)
	if err != nil {
		return err
	}
	spk, err := device.NewSpeaker(cfg.SpeakerSink)
	if err != nil {
		return err
	}

	tools := functions.NewRegistry()
	orch, err := conversation.New(conversation.Config{
		SampleRate:       cfg.SampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
		OutputChannels:   cfg.OutputChannels,
		MicGain:          cfg.MicGain,
		SpeakerVolume:    cfg.SpeakerVolume,
		MaxRecord:        cfg.MaxRecord,
		MemoryBudget:     cfg.MemoryBudget,
		RecordDuration:   cfg.RecordDuration,
		CountdownSeconds: cfg.CountdownSeconds,
		ChunkSize:        cfg.ChunkSize,
		ChunkPacing:      cfg.ChunkPacing,
		ResponseTimeout:  cfg.ResponseTimeout,
		AutoMode:         cfg.AutoMode,
		StreamAudio:      cfg.StreamAudio,
	}, client, mic, spk, conversation.WithTools(tools))
	if err != nil {
		return err
	}
	functions.RegisterDeviceTools(tools, orch)

	if err := orch.Start(); err != nil {
		return err
	}
	defer orch.Close()

	if err := client.Connect(agent.Endpoint{URL: cfg.AgentURL, AgentID: cfg.AgentID, APIKey: cfg.APIKey}); err != nil {
		return err
	}
	defer client.Disconnect()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var triggers <-chan struct{}
	if !cfg.AutoMode {
		triggers = readTriggers(ctx)
		slog.Info("🔘 press Enter to talk")
	}

	if err := orch.Run(ctx, loopTick, triggers); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("received shutdown signal")
	return nil
}

// readTriggers turns each line on stdin into a button press.
func readTriggers(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case out <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return out
}

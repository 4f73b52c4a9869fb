// Command mock-agent serves a local conversational agent for development.
//
// Usage:
//
//	mock-agent [--port 8080] [--first-message "Hello"] [--ping 5s]
//
// Point a device at it with AGENT_URL=ws://localhost:8080/v1/convai/conversation.
// Send the text "/interrupt" to receive an interruption, or
// "/tool <name>" to receive a client tool call.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/room4-2/voicelink/server"
)

var (
	port         int
	firstMessage string
	pingInterval time.Duration
	sampleRate   int
	toneHz       float64
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:          "mock-agent",
	Short:        "Run a local conversational agent speaking the device protocol",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		srv := server.New(server.Config{
			Port:         port,
			FirstMessage: firstMessage,
			PingInterval: pingInterval,
			SampleRate:   sampleRate,
			ToneHz:       toneHz,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("server shutdown error", "error", err)
			}
		}()

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	rootCmd.Flags().StringVar(&firstMessage, "first-message", "Hello! How can I help you today?", "greeting sent after the handshake")
	rootCmd.Flags().DurationVar(&pingInterval, "ping", 5*time.Second, "ping interval, 0 disables pings")
	rootCmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "sample rate of the reply audio")
	rootCmd.Flags().Float64Var(&toneHz, "tone", 440, "frequency of the reply tone in Hz")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

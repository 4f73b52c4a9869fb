// Command text-chat holds a text-only conversation with an agent and
// prints its replies.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/room4-2/voicelink/agent"
	"github.com/room4-2/voicelink/config"
	"github.com/room4-2/voicelink/messages"
	"github.com/room4-2/voicelink/session"
)

var (
	agentURL  string
	agentID   string
	apiKey    string
	texts     []string
	turnLimit time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "text-chat",
	Short: "Send text messages to an agent and print its replies",
	Long: `Connects to the agent, waits for the conversation to start and sends
each --message in turn, waiting for the agent's reply before the next one.

Examples:
  # Talk to a local mock agent
  text-chat --url ws://localhost:8080/v1/convai/conversation --agent-id dev -m "Hi" -m "/interrupt"`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if agentID == "" {
			return errors.New("--agent-id or AGENT_ID is required")
		}
		return chat()
	},
}

func init() {
	// Flags default to the device's .env settings.
	_ = godotenv.Load()

	url := os.Getenv("AGENT_URL")
	if url == "" {
		url = config.DefaultAgentURL
	}
	rootCmd.Flags().StringVar(&agentURL, "url", url, "agent WebSocket URL")
	rootCmd.Flags().StringVar(&agentID, "agent-id", os.Getenv("AGENT_ID"), "agent id")
	rootCmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("API_KEY"), "API key for private agents")
	rootCmd.Flags().StringArrayVarP(&texts, "message", "m", []string{"Hello! Can you introduce yourself?"}, "message to send, repeatable")
	rootCmd.Flags().DurationVar(&turnLimit, "timeout", 30*time.Second, "how long to wait for each reply")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func chat() error {
	client := agent.NewClient(agent.Config{
		Initiation: messages.ConversationInitiation{},
	})

	replied := false
	var failure error
	client.Handle(agent.Handlers{
		OnConversationInit: func(m *messages.ConversationInit) {
			fmt.Println("Conversation started with ID:", m.ConversationID)
		},
		OnAgentResponse: func(text string) {
			fmt.Println("Agent:", text)
			replied = true
		},
		OnAgentResponseCorrection: func(text string) { fmt.Println("Agent (corrected):", text) },
		OnInterruption:            func(eventID uint32) { fmt.Println("Interrupted at event", eventID) },
		OnAgentError: func(message string) {
			fmt.Println("Error:", message)
			replied = true
		},
		OnError: func(err error) { failure = err },
	})

	if err := client.Connect(agent.Endpoint{URL: agentURL, AgentID: agentID, APIKey: apiKey}); err != nil {
		return err
	}
	defer client.Disconnect()

	if !pollUntil(client, turnLimit, func() bool { return client.State() == session.SessionActive || failure != nil }) || failure != nil {
		return fmt.Errorf("conversation did not start: %v (handshake %s)", failure, client.Handshake())
	}
	// Let a first message from the agent arrive before talking over it.
	pollUntil(client, time.Second, func() bool { return replied })

	for _, text := range texts {
		replied = false
		fmt.Println("You:", text)
		if err := client.SendText(text); err != nil {
			return err
		}
		if !pollUntil(client, turnLimit, func() bool { return replied || client.State() != session.SessionActive }) {
			fmt.Println("(no reply)")
		}
		if client.State() != session.SessionActive {
			return fmt.Errorf("connection lost: %v", failure)
		}
	}
	return nil
}

func pollUntil(c *agent.Client, limit time.Duration, done func() bool) bool {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		c.Poll()
		if done() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Package server runs a local stand-in for the conversational agent. It
// speaks the same WebSocket protocol as the hosted service, so the device
// and the client can be exercised without an account or a network.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	ConversationPath = "/v1/convai/conversation"

	defaultSampleRate   = 16000
	defaultToneHz       = 440
	defaultToneDuration = 600 * time.Millisecond
	defaultChunkBytes   = 4000
	defaultTurnSilence  = 700 * time.Millisecond
)

// Config tunes the mock agent. Zero values pick the defaults.
type Config struct {
	Port         int
	FirstMessage string
	// PingInterval of zero disables pings.
	PingInterval time.Duration
	SampleRate   int
	ToneHz       float64
	ToneDuration time.Duration
	ChunkBytes   int
	// TurnSilence is how long the user's audio must pause before the
	// agent answers it.
	TurnSilence time.Duration
}

func (c *Config) setDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.ToneHz <= 0 {
		c.ToneHz = defaultToneHz
	}
	if c.ToneDuration <= 0 {
		c.ToneDuration = defaultToneDuration
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = defaultChunkBytes
	}
	if c.TurnSilence <= 0 {
		c.TurnSilence = defaultTurnSilence
	}
}

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	cfg        Config
	active     atomic.Int64
}

func New(cfg Config) *Server {
	cfg.setDefaults()
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler routes the conversation endpoint and the health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ConversationPath, s.handleConversation)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins listening for connections
func (s *Server) Start() error {
	slog.Info("🚀 mock agent starting", "port", s.cfg.Port)
	slog.Info("📡 conversation endpoint", "url", fmt.Sprintf("ws://localhost:%d%s", s.cfg.Port, ConversationPath))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("🛑 shutting down mock agent")
	return s.httpServer.Shutdown(ctx)
}

// ActiveConversations returns how many sockets are open.
func (s *Server) ActiveConversations() int {
	return int(s.active.Load())
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	c := newConversation(conn, s.cfg, agentID)
	slog.Info("✅ conversation opened", "conversation_id", c.id, "agent_id", agentID)
	c.run()
	slog.Info("🔌 conversation closed", "conversation_id", c.id)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body, _ := sonic.Marshal(map[string]any{"status": "ok", "conversations": s.ActiveConversations()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

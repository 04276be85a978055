// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/agentchat/internal/backend"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the client's default backend URL.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultChunkSize is small and odd so most multi-byte characters get
	// split across writes.
	DefaultChunkSize = 5

	DefaultChunkDelay = 25 * time.Millisecond

	// HistoryLimit is the number of turns kept per conversation.
	HistoryLimit = 10

	// fileContextLimit bounds how much file content a reply quotes.
	fileContextLimit = 2000

	// maxRequestBody bounds the stream request body.
	maxRequestBody = 1 << 20

	errFileNotFound = "File not found or could not be read"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Turn is one remembered message of a conversation.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// ReplyFunc produces the full reply text for a message.
type ReplyFunc func(message, fileContent string, history []Turn) string

// Config configures the development backend.
type Config struct {
	Addr      string
	AgentName string
	Model     string

	// ChunkSize is the number of reply bytes per write.
	ChunkSize int
	// ChunkDelay is the pause between writes.
	ChunkDelay time.Duration

	// Files maps file IDs to paths on disk.
	Files map[string]string

	// Reply generates replies (default EchoReply).
	Reply ReplyFunc

	// RequestsPerSecond limits each client IP (0 = unlimited).
	RequestsPerSecond float64
	Burst             int

	CORS *CORSConfig
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.AgentName == "" {
		c.AgentName = "Echo Agent"
	}
	if c.Model == "" {
		c.Model = "echo-1"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkDelay < 0 {
		c.ChunkDelay = 0
	}
	if c.Reply == nil {
		c.Reply = EchoReply
	}
	if c.CORS == nil {
		c.CORS = DefaultCORSConfig()
	}
}

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts server activity.
type Stats struct {
	Conversations atomic.Int64
	Streams       atomic.Int64
	Interrupted   atomic.Int64
	BytesStreamed atomic.Int64
	StartTime     time.Time
}

// Uptime returns the server uptime duration.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the development agent backend.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	mux     *http.ServeMux
	stats   *Stats
	limiter *RateLimiter

	mu       sync.Mutex
	history  map[string][]Turn
	lastUsed *time.Time

	srvMu  sync.Mutex
	server *http.Server
}

// New creates a Server. A nil logger discards logs.
func New(cfg Config, logger *slog.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		mux:     http.NewServeMux(),
		stats:   &Stats{StartTime: time.Now()},
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		history: make(map[string][]Turn),
	}
	s.setupRoutes()
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/chat/start", s.handleStart)
	s.mux.HandleFunc("POST /api/chat/stream/{id}", s.handleStream)
	s.mux.HandleFunc("GET /api/chat/status", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RequestIDMiddleware(),
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cfg.CORS),
		RateLimitMiddleware(s.limiter),
	)(s.mux)
}

// Stats returns the live counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// History returns a copy of the turns remembered for conversationID.
func (s *Server) History(conversationID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history[conversationID]...)
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	s.mu.Lock()
	s.history[id] = nil
	s.mu.Unlock()
	s.stats.Conversations.Add(1)

	s.logger.Info("conversation started", "conversation_id", id)
	writeJSON(w, http.StatusOK, backend.StartResponse{ConversationID: id, Status: "started"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req backend.StreamRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "message is required"})
		return
	}

	var fileContent string
	if req.FileID != nil {
		content, err := s.readFile(*req.FileID)
		if err != nil {
			s.logger.Warn("file context unavailable", "file_id", *req.FileID, "error", err)
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: errFileNotFound})
			return
		}
		fileContent = content
	}

	if strings.HasPrefix(req.Message, "/error") {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Chat error: simulated failure"})
		return
	}

	reply := s.cfg.Reply(req.Message, fileContent, s.History(id))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.stats.Streams.Add(1)
	if err := s.streamReply(r.Context(), w, []byte(reply)); err != nil {
		s.stats.Interrupted.Add(1)
		s.logger.Info("stream interrupted", "conversation_id", id, "error", err)
		return
	}
	s.remember(id, req.Message, reply)
}

// streamReply writes reply in ChunkSize pieces, flushing after each.
func (s *Server) streamReply(ctx context.Context, w http.ResponseWriter, reply []byte) error {
	rc := http.NewResponseController(w)

	for i, chunk := range SplitBytes(reply, s.cfg.ChunkSize) {
		if i > 0 && s.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := w.Write(chunk)
		s.stats.BytesStreamed.Add(int64(n))
		if err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	return nil
}

func (s *Server) remember(id, message, reply string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.history[id],
		Turn{Role: "user", Content: message, Timestamp: now},
		Turn{Role: "assistant", Content: reply, Timestamp: now},
	)
	if len(turns) > HistoryLimit {
		turns = turns[len(turns)-HistoryLimit:]
	}
	s.history[id] = turns
	s.lastUsed = &now
}

func (s *Server) readFile(fileID string) (string, error) {
	path, ok := s.cfg.Files[fileID]
	if !ok {
		return "", fmt.Errorf("unknown file id %q", fileID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("file %q is empty", fileID)
	}
	return string(data), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	lastUsed := s.lastUsed
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, backend.AgentStatus{
		AgentName: s.cfg.AgentName,
		Status:    "online",
		Model:     s.cfg.Model,
		Available: true,
		LastUsed:  lastUsed,
	})
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSecs    int64  `json:"uptime_secs"`
	Conversations int64  `json:"conversations"`
	Streams       int64  `json:"streams"`
	Interrupted   int64  `json:"interrupted"`
	BytesStreamed int64  `json:"bytes_streamed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSecs:    int64(s.stats.Uptime().Seconds()),
		Conversations: s.stats.Conversations.Load(),
		Streams:       s.stats.Streams.Load(),
		Interrupted:   s.stats.Interrupted.Load(),
		BytesStreamed: s.stats.BytesStreamed.Load(),
	})
}

// ============================================================================
// REPLIES
// ============================================================================

// EchoReply answers with the message, a turn counter and a preview of the
// file context. It always contains multi-byte characters.
func EchoReply(message, fileContent string, history []Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Echo #%d → %s", len(history)/2+1, message)
	if fileContent != "" {
		fmt.Fprintf(&b, "\n\n📄 File context (%d bytes):\n%s", len(fileContent), truncateRunes(fileContent, fileContextLimit))
	}
	return b.String()
}

// SplitBytes cuts b into pieces of at most size bytes without regard for
// character boundaries.
func SplitBytes(b []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]byte, 0, len(b)/size+1)
	for len(b) > size {
		chunks = append(chunks, b[:size])
		b = b[size:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}

// truncateRunes truncates s to maxLen runes, appending "..." when cut.
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.srvMu.Lock()
	s.server = srv
	s.srvMu.Unlock()

	s.logger.Info("server started", "addr", ln.Addr().String(), "agent", s.cfg.AgentName, "files", len(s.cfg.Files))
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.server
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down",
		"streams", s.stats.Streams.Load(),
		"bytes_streamed", s.stats.BytesStreamed.Load(),
	)
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// errorResponse is the {"detail": ...} error shape of the agent API.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/session"
	"github.com/jeranaias/agentchat/internal/stream"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the part of the backend client the controller needs.
type Backend interface {
	StartConversation(ctx context.Context) (string, error)
	OpenStream(ctx context.Context, conversationID string, req backend.StreamRequest) (io.ReadCloser, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// DefaultBootstrapTimeout bounds the start-conversation request.
const DefaultBootstrapTimeout = 30 * time.Second

// Options configures a Controller. All callbacks are optional. They run on
// the controller's goroutines and must not call back into the Controller
// synchronously.
type Options struct {
	// ConversationID resumes an existing conversation instead of asking
	// the backend for a new one.
	ConversationID string

	// BootstrapTimeout bounds StartConversation (default 30s).
	BootstrapTimeout time.Duration

	// ChunkSize is the read size for reply bodies (default 4096).
	ChunkSize int

	Logger *slog.Logger

	// OnError receives Failed exchanges and bootstrap failures.
	OnError func(error)

	// OnStateChange receives every exchange transition.
	OnStateChange func(ex *Exchange, state State)

	// OnBusy fires when the busy indicator flips.
	OnBusy func(busy bool)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs exchanges against the backend for one Session.
type Controller struct {
	sess    *session.Session
	backend Backend
	opts    Options
	logger  *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	bootOnce sync.Once

	// mu guards the fields below. notifyMu is never taken while mu is
	// held.
	mu      sync.Mutex
	current *Exchange
	bootErr error
	closed  bool

	// notifyMu serializes busy computation with its callback so OnBusy
	// observes flips in order.
	notifyMu sync.Mutex
	busy     atomic.Bool

	wg sync.WaitGroup
}

// NewController creates a controller for sess using b.
func NewController(sess *session.Session, b Backend, opts Options) *Controller {
	if opts.BootstrapTimeout <= 0 {
		opts.BootstrapTimeout = DefaultBootstrapTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = stream.DefaultChunkSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		sess:       sess,
		backend:    b,
		opts:       opts,
		logger:     logger.With("component", "chat"),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// Bootstrap obtains the conversation ID and restores its persisted log.
// It runs at most once; later calls return the first call's result.
func (c *Controller) Bootstrap(ctx context.Context) error {
	c.bootOnce.Do(func() {
		err := c.bootstrap(ctx)
		c.mu.Lock()
		c.bootErr = err
		c.mu.Unlock()
		if err != nil && c.opts.OnError != nil {
			c.opts.OnError(err)
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bootErr
}

func (c *Controller) bootstrap(ctx context.Context) error {
	id := c.opts.ConversationID
	if id == "" {
		startCtx, cancel := context.WithTimeout(ctx, c.opts.BootstrapTimeout)
		defer cancel()

		var err error
		id, err = c.backend.StartConversation(startCtx)
		if err != nil {
			c.logger.Error("failed to start conversation", "error", err)
			return &Error{Kind: KindBootstrap, Op: "start conversation", Err: err}
		}
		c.logger.Info("conversation started", "conversation_id", id)
	}

	restored := c.sess.Attach(id)
	if restored > 0 {
		c.logger.Info("conversation restored", "conversation_id", id, "messages", restored)
	}
	return nil
}

// =============================================================================
// SEND / CANCEL
// =============================================================================

// Send submits text, preempting any reply still streaming, and returns
// immediately. The reply streams into the session log in the background.
func (c *Controller) Send(text string, file *FileRef) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	convID := c.sess.ConversationID()
	if convID == "" {
		bootErr := c.bootErr
		c.mu.Unlock()
		if bootErr != nil {
			return nil, bootErr
		}
		return nil, &Error{Kind: KindNotReady, Op: "send", Err: errors.New("conversation has not started")}
	}

	// Begin supersedes the previous token before its request is
	// cancelled, so the old stream can no longer write to the log.
	ctx, cancel := context.WithCancel(c.baseCtx)
	token, user, reply := c.sess.Begin(text)
	if prev := c.current; prev != nil {
		prev.cancel()
	}
	ex := newExchange(token, text, file, user.ID, reply.ID, cancel)
	ex.setState(StateSending)
	c.current = ex
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("exchange started", "conversation_id", convID, "token", token, "file", fileID(file))
	c.emitState(ex, StateSending)
	c.updateBusy()

	go c.run(ctx, convID, ex)
	return ex, nil
}

// Cancel stops the reply that is currently streaming, if any. The partial
// reply stays in the log.
func (c *Controller) Cancel() {
	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()
	if ex != nil {
		ex.cancel()
	}
}

// =============================================================================
// STREAMING
// =============================================================================

func (c *Controller) run(ctx context.Context, convID string, ex *Exchange) {
	defer c.wg.Done()

	req := backend.StreamRequest{Message: ex.Text}
	if ex.File != nil && ex.File.ID != "" {
		id := ex.File.ID
		req.FileID = &id
	}

	body, err := c.backend.OpenStream(ctx, convID, req)
	if err != nil {
		c.finish(ctx, ex, err, 0)
		return
	}
	defer body.Close()

	if c.sess.IsActive(ex.Token) && ex.setState(StateStreaming) {
		c.logger.Debug("stream opened", "conversation_id", convID, "token", ex.Token)
		c.emitState(ex, StateStreaming)
	}

	reader := stream.NewReaderSize(body, c.opts.ChunkSize)
	err = reader.Process(ctx, func(fragment string) {
		c.apply(ex, fragment)
	})
	c.finish(ctx, ex, err, reader.BytesRead())
}

// apply writes the accumulated reply into the log if ex still owns it.
func (c *Controller) apply(ex *Exchange, fragment string) {
	if !c.sess.IsActive(ex.Token) {
		return
	}
	content := ex.appendReply(fragment)
	c.sess.Apply(ex.Token, ex.ReplyID, content)
}

// finish moves ex to its terminal state. streamErr is nil when the body
// ended normally.
func (c *Controller) finish(ctx context.Context, ex *Exchange, streamErr error, bytesRead int64) {
	closed := c.sess.Finish(ex.Token, ex.ReplyID)

	var (
		final    State
		reported error
	)
	switch {
	case streamErr == nil && closed:
		final = StateCompleted
	case streamErr == nil:
		// Body ended after a newer send took over.
		final = StateCancelled
	case ctx.Err() != nil || backend.IsCancelled(streamErr):
		final = StateCancelled
	default:
		final = StateFailed
		reported = &Error{
			Kind:           KindTransport,
			Op:             "stream",
			ConversationID: c.sess.ConversationID(),
			Partial:        ex.Reply(),
			Err:            streamErr,
		}
	}

	ex.end(final, reported)
	ex.cancel()

	attrs := []any{
		"conversation_id", c.sess.ConversationID(),
		"token", ex.Token,
		"state", final.String(),
		"bytes", bytesRead,
		"duration_ms", ex.Duration().Milliseconds(),
	}
	if reported != nil {
		c.logger.Error("exchange failed", append(attrs, "error", streamErr)...)
	} else {
		c.logger.Info("exchange finished", attrs...)
	}

	c.emitState(ex, final)
	if reported != nil && c.opts.OnError != nil {
		c.opts.OnError(reported)
	}
	c.updateBusy()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (c *Controller) emitState(ex *Exchange, s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(ex, s)
	}
}

// updateBusy recomputes the busy indicator from the active exchange.
func (c *Controller) updateBusy() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()

	busy := ex != nil && ex.State().Active()
	if c.busy.Swap(busy) != busy && c.opts.OnBusy != nil {
		c.opts.OnBusy(busy)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Busy reports whether the most recent exchange is sending or streaming.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// ConversationID returns the conversation ID, or "" before Bootstrap.
func (c *Controller) ConversationID() string {
	return c.sess.ConversationID()
}

// Session returns the controlled session.
func (c *Controller) Session() *session.Session {
	return c.sess
}

// Messages returns a snapshot of the message log.
func (c *Controller) Messages() []model.Message {
	return c.sess.Log().Messages()
}

// Current returns the most recent exchange, or nil.
func (c *Controller) Current() *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Wait blocks until every exchange goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels all exchanges and waits for them to end. Send fails with
// ErrClosed afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.baseCancel()
	c.wg.Wait()
}

func fileID(f *FileRef) string {
	if f == nil {
		return ""
	}
	return f.ID
}

package ws

import (
	"context"
	"sync/atomic"
	"time"

	"aeye-server-go/internal/utils"
)

const defaultCloseTimeout = 5 * time.Second

// SessionHandler drives one websocket session. For the screening service it
// greets the client, then runs submitted requests through the pipeline one at
// a time. Handle blocks until the session ends and must return once ctx is
// cancelled; a run in progress at that point is abandoned, not reported.
// Close may be called from another goroutine while Handle is running.
type SessionHandler interface {
	Handle(ctx context.Context) error
	Close()
	GetSessionID() string
}

// Session owns one upgraded connection from registration in the Hub until the
// handler returns. Close cancels the session context with the given reason,
// ErrSessionShutdown when none is given or the hub shuts everything down.
type Session struct {
	id      string
	handler SessionHandler
	conn    *Connection
	logger  *utils.Logger
	started time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, handler SessionHandler, conn *Connection, logger *utils.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      handler.GetSessionID(),
		handler: handler,
		conn:    conn,
		logger:  logger,
		ctx:     sessionCtx,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Duration reports how long the session has been open.
func (s *Session) Duration() time.Duration {
	return time.Since(s.started)
}

// Run executes the handler, closes the session and then calls onDone with the
// handler's error. A client that simply disconnects yields a nil error.
func (s *Session) Run(onDone func(error)) {
	var runErr error
	defer func() {
		s.Close(runErr)
		if onDone != nil {
			onDone(runErr)
		}
	}()

	runErr = s.handler.Handle(s.ctx)
}

// Close attempts to gracefully terminate the session.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel(reason)
	}

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, reason)
	defer cancel()

	if s.handler != nil {
		done := make(chan struct{})
		go func() {
			s.handler.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			if s.logger != nil {
				s.logger.WarnTag("WebSocket", "session %s handler close timed out: %v", s.id, context.Cause(shutdownCtx))
			}
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil && s.logger != nil {
			s.logger.WarnTag("WebSocket", "session %s connection close failed: %v", s.id, err)
		}
	}
}

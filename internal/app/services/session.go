package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"aeye-server-go/internal/transport/ws"
	"aeye-server-go/internal/utils"
)

const defaultQueueSize = 8

// Conn is the part of ws.Connection a session needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
}

// ScreeningSession 处理单个WebSocket连接上的筛查请求
type ScreeningSession struct {
	id       string
	conn     Conn
	pipeline *Pipeline
	logger   *utils.Logger

	// 客户端请求队列，读协程写入，Handle顺序消费
	queue chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewScreeningSession binds a pipeline to one connection.
func NewScreeningSession(id string, conn Conn, deps Dependencies, queueSize int) *ScreeningSession {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &ScreeningSession{
		id:     id,
		conn:   conn,
		logger: deps.Logger,
		queue:  make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}
	s.pipeline = NewPipeline(deps, connSender{conn: conn}, id)
	return s
}

// GetSessionID implements ws.SessionHandler.
func (s *ScreeningSession) GetSessionID() string {
	return s.id
}

// Pipeline exposes the session's pipeline.
func (s *ScreeningSession) Pipeline() *Pipeline {
	return s.pipeline
}

// Handle implements ws.SessionHandler. It greets the client, then runs queued
// requests one at a time until the client leaves or ctx is cancelled.
func (s *ScreeningSession) Handle(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	if err := s.pipeline.Greet(); err != nil {
		if ws.IsClientGone(err) {
			return nil
		}
		return fmt.Errorf("send greeting: %w", err)
	}

	go s.readLoop(ctx, cancel)

	for {
		select {
		case <-ctx.Done():
			return s.exitReason(ctx)
		case <-s.closed:
			return nil
		case raw := <-s.queue:
			if err := s.pipeline.Handle(ctx, raw); err != nil {
				if ctx.Err() != nil {
					return s.exitReason(ctx)
				}
				if ws.IsClientGone(err) {
					return nil
				}
				return fmt.Errorf("session %s: %w", s.id, err)
			}
		}
	}
}

// Close implements ws.SessionHandler.
func (s *ScreeningSession) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *ScreeningSession) readLoop(ctx context.Context, cancel context.CancelCauseFunc) {
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if ws.IsClientGone(err) {
				cancel(ws.ErrClientDisconnected)
			} else {
				cancel(fmt.Errorf("%w: %v", ws.ErrClientDisconnected, err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			s.logger.WarnTag("WebSocket", "session %s: ignoring non-text frame type=%d", s.id, messageType)
			continue
		}

		select {
		case s.queue <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// exitReason maps the cancel cause to Handle's return value. A departing
// client or a server shutdown is a normal end.
func (s *ScreeningSession) exitReason(ctx context.Context) error {
	cause := context.Cause(ctx)
	switch {
	case stderrors.Is(cause, ws.ErrClientDisconnected),
		stderrors.Is(cause, ws.ErrSessionShutdown),
		stderrors.Is(cause, context.Canceled):
		s.logger.DebugTag("WebSocket", "session %s ended: %v", s.id, cause)
		return nil
	default:
		return cause
	}
}

type connSender struct {
	conn Conn
}

func (c connSender) Send(msg Message) error {
	return c.conn.WriteJSON(msg)
}

// NewSessionBuilder returns the ws.HandlerBuilder that starts a screening
// session on every upgraded connection.
func NewSessionBuilder(deps Dependencies, queueSize int) ws.HandlerBuilder {
	return func(conn *ws.Connection, _ *http.Request) (ws.SessionHandler, error) {
		if conn == nil {
			return nil, stderrors.New("nil websocket connection")
		}
		return NewScreeningSession(conn.GetID(), conn, deps, queueSize), nil
	}
}

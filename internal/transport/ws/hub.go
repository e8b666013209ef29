package ws

import (
	"sync"
	"sync/atomic"

	"aeye-server-go/internal/utils"
)

// Hub tracks the screening sessions of one server. A session is registered
// after the upgrade succeeds and removed when its handler returns, so Active
// is the number of clients that can still submit requests. CloseAll is the
// shutdown path: every in-flight pipeline run is abandoned.
type Hub struct {
	logger   *utils.Logger
	sessions sync.Map // map[string]*Session
	served   atomic.Int64
}

// NewHub builds a fresh session hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		logger: logger,
	}
}

// Register adds a session. A reused Session-Id replaces the older entry.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	if _, loaded := h.sessions.Swap(session.ID(), session); loaded {
		h.logger.WarnTag("WebSocket", "session id %s reused, dropping previous registration", session.ID())
	}
	h.served.Add(1)
}

// Unregister removes the session once its handler has returned. An entry
// that was already replaced by a newer session with the same id is kept.
func (h *Hub) Unregister(session *Session) {
	if session == nil {
		return
	}
	h.sessions.CompareAndDelete(session.ID(), session)
}

// CloseAll terminates all active sessions.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Counts returns the live sessions and how many sessions were accepted since start.
func (h *Hub) Counts() (active int, served int) {
	h.sessions.Range(func(key, value any) bool {
		active++
		return true
	})
	return active, int(h.served.Load())
}

// Active returns the number of registered sessions.
func (h *Hub) Active() int {
	n, _ := h.Counts()
	return n
}

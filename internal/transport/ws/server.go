package ws

import (
	"context"
	"net/http"
	"time"

	"aeye-server-go/internal/utils"
)

// ServerConfig stores the settings required to expose the websocket transport.
type ServerConfig struct {
	Addr             string
	Path             string
	HandshakeTimeout time.Duration
}

// Server serves websocket upgrades on Path and delegates every other request
// to the fallback handler (the REST API and static web app).
type Server struct {
	cfg      ServerConfig
	hub      *Hub
	router   *Router
	fallback http.Handler
	logger   *utils.Logger
	httpSrv  *http.Server
}

// NewServer builds a websocket transport server.
func NewServer(cfg ServerConfig, router *Router, hub *Hub, fallback http.Handler, logger *utils.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	return &Server{
		cfg:      cfg,
		router:   router,
		hub:      hub,
		fallback: fallback,
		logger:   logger,
	}
}

// SetHandlerBuilder wires the handler construction callback.
func (s *Server) SetHandlerBuilder(builder HandlerBuilder) {
	s.router.SetHandlerBuilder(builder)
}

// Handler returns the combined websocket + fallback handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.router.Handle)
	if s.fallback != nil && s.cfg.Path != "/" {
		mux.Handle("/", s.fallback)
	}
	return mux
}

// Start boots the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.httpSrv != nil {
		return nil
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			_ = s.Stop()
		}()
	}

	s.logger.InfoTag("WebSocket", "监听地址 %s%s", s.cfg.Addr, s.cfg.Path)

	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the websocket server and active sessions.
func (s *Server) Stop() error {
	srv := s.httpSrv
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, ErrSessionShutdown)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	s.hub.CloseAll(ErrSessionShutdown)
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Counts returns live sessions and sessions accepted since start.
func (s *Server) Counts() (int, int) {
	return s.hub.Counts()
}

// Package server serves the course viewer over HTTP and pushes display
// surface changes to connected browsers.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/courseview/internal/config"
	"github.com/conneroisu/courseview/internal/dom"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/viewer"
	"github.com/conneroisu/courseview/internal/watcher"
	"github.com/conneroisu/courseview/internal/websocket"
)

// Options wires a Server. Config and Viewer are required; Watcher enables
// live reload of the module on the surface.
type Options struct {
	Config      *config.Config
	Viewer      *viewer.Controller
	Highlighter *highlight.Chroma
	Watcher     *watcher.FileWatcher
	Logger      logging.Logger
}

// Server exposes one viewer to browsers.
type Server struct {
	config      *config.Config
	viewer      *viewer.Controller
	highlighter *highlight.Chroma
	hub         *websocket.Hub
	watcher     *watcher.FileWatcher
	limiter     *RateLimiter
	origins     websocket.AllowedOrigins
	logger      logging.Logger

	httpServer   *http.Server
	serverMutex  sync.RWMutex // Protects httpServer
	shutdownOnce sync.Once
}

// New creates a server and subscribes it to the viewer's events.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if opts.Viewer == nil {
		return nil, fmt.Errorf("server: viewer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	hl := opts.Highlighter
	if hl == nil {
		hl = highlight.New(opts.Config.Highlight.Aliases)
	}

	origins := websocket.AllowedOrigins(opts.Config.Server.AllowedOrigins)
	s := &Server{
		config:      opts.Config,
		viewer:      opts.Viewer,
		highlighter: hl,
		hub: websocket.NewHub(origins,
			websocket.WithMaxClientsPerIP(opts.Config.Server.MaxClientsPerIP),
			websocket.WithLogger(logger)),
		watcher: opts.Watcher,
		limiter: NewRateLimiter(DefaultRateLimitConfig(), logger),
		origins: origins,
		logger:  logger,
	}

	opts.Viewer.Subscribe(s.handleEvent)
	return s, nil
}

// Hub returns the websocket hub.
func (s *Server) Hub() *websocket.Hub { return s.hub }

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /content", s.handleContent)
	mux.HandleFunc("POST /modules/{id}", s.handleActivate)
	mux.HandleFunc("GET /api/modules", s.handleModules)
	mux.HandleFunc("GET /api/progress/{id}/{index}", s.handleGetProgress)
	mux.HandleFunc("POST /api/progress/{id}/{index}", s.handleSetProgress)
	mux.HandleFunc("POST /api/theme/toggle", s.handleThemeToggle)
	mux.HandleFunc("GET /static/highlight.css", s.handleHighlightCSS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /ws", s.hub)

	return s.addMiddleware(mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve starts the viewer and the watcher and serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.viewer.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("starting viewer: %w", err)
	}

	if s.watcher != nil {
		s.setupFileWatcher(ctx)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.Server.ReadHeaderTimeout,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving course",
		"addr", ln.Addr().String(),
		"modules", s.viewer.Registry().Count(),
		"watch", s.watcher != nil)

	if err := server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupFileWatcher(ctx context.Context) {
	root := s.config.WatchRoot()
	if root == "" {
		s.logger.Warn(ctx, nil, "Live reload needs local content; watcher disabled")
		return
	}

	s.watcher.AddFilter(watcher.ExtensionFilter(s.viewer.Layout()))
	s.watcher.AddFilter(watcher.NoHiddenFilter)
	s.watcher.AddHandler(watcher.ModuleHandler(root, s.viewer.Layout(), func(moduleID string) error {
		reloaded, err := s.viewer.Reload(ctx, moduleID)
		if reloaded {
			s.logger.Info(ctx, "Module reloaded", "module", moduleID)
		}
		return err
	}))

	if err := s.watcher.AddRecursive(root); err != nil {
		s.logger.Warn(ctx, err, "Failed to watch content", "path", root)
		return
	}
	if err := s.watcher.Start(ctx); err != nil {
		s.logger.Warn(ctx, err, "Failed to start file watcher")
	}
}

// handleEvent forwards viewer changes to the browsers. Content and progress
// events carry the new content area; theme events carry the theme name.
func (s *Server) handleEvent(ev viewer.Event) {
	msg := websocket.UpdateMessage{Type: ev.Type, Target: ev.Target, Timestamp: time.Now()}

	switch ev.Type {
	case viewer.EventContent, viewer.EventProgress:
		markup, err := s.viewer.Surface().InnerHTML(dom.ContentAreaID)
		if err != nil {
			s.logger.Error(context.Background(), err, "Failed to serialize content area")
			return
		}
		msg.Content = markup
	case viewer.EventTheme:
		msg.Content = string(s.viewer.Theme().Current())
	}

	s.hub.Broadcast(msg)
}

// Shutdown stops the watcher, the websocket hub and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		s.limiter.Stop()

		var errs []error
		if err := s.hub.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("websocket hub: %w", err))
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http server: %w", err))
			}
		}
		shutdownErr = stderrors.Join(errs...)
	})

	return shutdownErr
}

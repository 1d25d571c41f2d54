package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/logging"
)

// HTTPService serves an http.Handler with graceful shutdown.
type HTTPService struct {
	name            string
	addr            string
	handler         http.Handler
	logger          *logging.Logger
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxHeaderBytes  int

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// HTTPServiceOption configures an HTTPService.
type HTTPServiceOption func(*HTTPService)

func WithReadTimeout(timeout time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.readTimeout = timeout }
}

func WithWriteTimeout(timeout time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.writeTimeout = timeout }
}

// WithShutdownTimeout bounds Stop when its context has no deadline.
func WithShutdownTimeout(timeout time.Duration) HTTPServiceOption {
	return func(s *HTTPService) { s.shutdownTimeout = timeout }
}

func WithMaxHeaderBytes(bytes int) HTTPServiceOption {
	return func(s *HTTPService) { s.maxHeaderBytes = bytes }
}

// WithAddr overrides the listen address, e.g. "127.0.0.1:0" in tests.
func WithAddr(addr string) HTTPServiceOption {
	return func(s *HTTPService) { s.addr = addr }
}

func WithLogger(logger *logging.Logger) HTTPServiceOption {
	return func(s *HTTPService) { s.logger = logger }
}

// NewHTTPService builds a service listening on cfg.HTTPPort with cfg's timeouts. Zero
// values in cfg keep the built-in defaults.
func NewHTTPService(name string, cfg config.ServerConfig, handler http.Handler, opts ...HTTPServiceOption) *HTTPService {
	s := &HTTPService{
		name:            name,
		addr:            fmt.Sprintf(":%d", cfg.HTTPPort),
		handler:         handler,
		logger:          logging.Nop(),
		readTimeout:     durationOr(cfg.ReadTimeout, 10*time.Second),
		writeTimeout:    durationOr(cfg.WriteTimeout, 10*time.Second),
		shutdownTimeout: durationOr(cfg.ShutdownTimeout, 30*time.Second),
		maxHeaderBytes:  1 << 20,
	}
	if cfg.MaxHeaderBytes > 0 {
		s.maxHeaderBytes = cfg.MaxHeaderBytes
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("http")
	return s
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Start binds the listener and serves in the background. Bind errors are returned
// directly.
func (s *HTTPService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("service %s already started", s.name)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP service %s: %w", s.name, err)
	}

	s.server = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.listener = ln
	s.serveErr = make(chan error, 1)

	go func(srv *http.Server, errc chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
		close(errc)
	}(s.server, s.serveErr)

	s.logger.Info().Str("service", s.name).Str("addr", ln.Addr().String()).Msg("http service listening")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed, after delivering any serve error, once the server stops.
func (s *HTTPService) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Stop shuts the server down, waiting for in-flight requests until ctx expires or the
// shutdown timeout elapses.
func (s *HTTPService) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP service %s: %w", s.name, err)
	}
	s.logger.Info().Str("service", s.name).Msg("http service stopped")
	return nil
}

func (s *HTTPService) Name() string {
	return s.name
}

func (s *HTTPService) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("service %s not running", s.name)
	}
	return nil
}

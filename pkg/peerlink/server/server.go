// Package server accepts peer connections, upgrades them to WebSocket and runs
// one independent session per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcuoli/go-peerlink/pkg/peerlink/session"
)

const (
	// DefaultPort is the well-known session port.
	DefaultPort = 15446
	// DefaultAddr listens on every interface.
	DefaultAddr = "0.0.0.0:15446"
	// DefaultHandshakeTimeout bounds the upgrade handshake.
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultMaxMessageSize limits one inbound frame.
	DefaultMaxMessageSize = 16 << 20
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("peerlink server closed")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from server operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Config configures a Server.
type Config struct {
	Addr              string
	Path              string
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	HandshakeTimeout  time.Duration
	MaxMessageSize    int64
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              DefaultAddr,
		Path:              "/",
		HeartbeatInterval: session.DefaultHeartbeatInterval,
		WriteTimeout:      session.DefaultWriteTimeout,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		MaxMessageSize:    DefaultMaxMessageSize,
	}
}

// Server is the connection acceptor.
type Server struct {
	cfg            Config
	sink           session.EventSink
	approver       session.Approver
	newPayloadSink session.PayloadSinkFactory
	onError        ErrorHandler

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
	active   int64
}

// ErrorHandler receives the error that ended a session. Peer closes and
// protocol violations end sessions without one.
type ErrorHandler func(peer net.Addr, err error)

// Option customises a Server.
type Option func(*Server)

// WithApprover installs an approval gate for file offers.
func WithApprover(a session.Approver) Option {
	return func(s *Server) { s.approver = a }
}

// WithPayloadSink sets the factory for file payload sinks.
func WithPayloadSink(f session.PayloadSinkFactory) Option {
	return func(s *Server) { s.newPayloadSink = f }
}

// WithErrorHandler reports session failures to fn. It is called from the
// session's goroutine.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(s *Server) { s.onError = fn }
}

// New creates a server delivering session events to sink.
func New(cfg Config, sink session.EventSink, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			// Peers are local processes, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleUpgrade)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.HandshakeTimeout,
	}
	return s
}

// Listen binds the listening socket. Calling it is optional; Serve listens if needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	debugLog("listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Close is called.
// It returns ErrServerClosed after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}
	return err
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Close stops accepting, cancels every running session and waits for them.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	s.cancel()
	err := s.httpSrv.Close()
	if ln != nil {
		// Serve may never have taken ownership of the listener.
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	s.sessions.Wait()
	return err
}

// ActiveSessions returns the number of sessions currently running.
func (s *Server) ActiveSessions() int {
	return int(atomic.LoadInt64(&s.active))
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		debugLog("%s: handshake failed: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.runSession(conn)
}

func (s *Server) runSession(conn *websocket.Conn) {
	peer := conn.RemoteAddr()
	n := atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)
	debugLog("new connection: %s (%d active)", peer, n)

	h := session.NewHandler(conn, session.Options{
		Sink:              s.sink,
		Approver:          s.approver,
		NewPayloadSink:    s.newPayloadSink,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
		WriteTimeout:      s.cfg.WriteTimeout,
	})
	if err := h.Run(s.ctx); err != nil {
		debugLog("error processing connection %s: %v", peer, err)
		if s.onError != nil {
			s.onError(peer, err)
		}
		return
	}
	debugLog("connection %s finished", peer)
}

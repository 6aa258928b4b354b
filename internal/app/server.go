package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/frame"
	"github.com/bft-labs/lottery/internal/ports"
)

// Default server configuration values.
const (
	DefaultListenAddr = "0.0.0.0:12345"
	DefaultBacklog    = 5
	DefaultAgencies   = 5
)

// ServerConfig holds the listener and protocol settings.
type ServerConfig struct {
	ListenAddr   string
	Backlog      int
	Agencies     int
	LengthBytes  int
	PollInterval time.Duration

	// AcceptRate limits new sessions per second. Zero means unlimited.
	AcceptRate  float64
	AcceptBurst int

	ShutdownTimeout time.Duration
}

// Validate checks the configuration.
func (c ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", domain.ErrInvalidConfig)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("%w: backlog must be >= 0", domain.ErrInvalidConfig)
	}
	if c.Agencies < 1 {
		return fmt.Errorf("%w: agencies must be >= 1", domain.ErrInvalidConfig)
	}
	if c.LengthBytes < 0 {
		return fmt.Errorf("%w: length bytes must be >= 0", domain.ErrInvalidConfig)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("%w: accept rate must be >= 0", domain.ErrInvalidConfig)
	}
	return nil
}

// Server accepts agency connections and runs one Session per connection.
type Server struct {
	cfg       ServerConfig
	store     *LockedStore
	logger    ports.Logger
	emitter   SessionEventEmitter
	lifecycle *Lifecycle
	barrier   *Barrier
	limiter   *rate.Limiter

	mu       sync.Mutex
	started  bool
	listener net.Listener
	cancel   context.CancelFunc
	conns    map[net.Conn]struct{}
}

// NewServer creates a server. store is wrapped in a LockedStore so that
// concurrent sessions never interleave writes.
func NewServer(
	cfg ServerConfig,
	store ports.BetStore,
	logger ports.Logger,
	emitter SessionEventEmitter,
	stateEmitter EventEmitter,
) *Server {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = ShutdownTimeout
	}
	if cfg.LengthBytes == 0 {
		cfg.LengthBytes = frame.DefaultLengthBytes
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = frame.DefaultPollInterval
	}

	var limiter *rate.Limiter
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}

	return &Server{
		cfg:       cfg,
		store:     NewLockedStore(store),
		logger:    logger,
		emitter:   emitter,
		lifecycle: NewLifecycle(logger, stateEmitter),
		barrier:   NewBarrier(cfg.Agencies),
		limiter:   limiter,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound. Cancelling ctx
// afterwards has the same effect as calling Stop. A Server runs once;
// the barrier cannot be rearmed after Stop.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.started || !s.lifecycle.CanStart() {
		s.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()

	if err := s.lifecycle.TransitionTo(StateStarting, "start requested"); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, "bind failed")
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	if err := applyBacklog(ln, s.cfg.Backlog); err != nil {
		s.logger.Warn("could not apply listen backlog",
			ports.Int("backlog", s.cfg.Backlog),
			ports.Err(err),
		)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.lifecycle.TransitionTo(StateRunning, "listening"); err != nil {
		cancel()
		_ = ln.Close()
		return err
	}

	s.logger.Info("server listening",
		ports.String("addr", ln.Addr().String()),
		ports.Int("agencies", s.cfg.Agencies),
		ports.Int("backlog", s.cfg.Backlog),
	)

	// Cancelling the caller's context stops the server like Stop does.
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-runCtx.Done():
		}
	}()

	s.lifecycle.Go(func() {
		if err := s.acceptLoop(runCtx, ln); err != nil {
			s.logger.Error("accept loop failed", ports.Err(err))
			_ = s.lifecycle.TransitionTo(StateCrashed, err.Error())
		}
	})
	return nil
}

// acceptLoop accepts until ln is closed. It returns nil on a requested
// shutdown and the accept error otherwise.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.lifecycle.Go(func() {
			defer s.untrack(conn)
			s.serve(ctx, conn)
		})
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()

	channel := frame.New(conn, ctx.Done(),
		frame.WithLengthBytes(s.cfg.LengthBytes),
		frame.WithPollInterval(s.cfg.PollInterval),
	)
	session := NewSession(id, remote, channel, s.store, s.barrier, s.logger, s.emitter)

	s.emitter.OnSessionOpened()
	s.logger.Debug("session opened", ports.String("session", id), ports.String("remote", remote))

	err := session.Run(ctx)
	s.emitter.OnSessionClosed(err)

	switch {
	case err == nil:
		s.logger.Debug("session closed", ports.String("session", id))
	case errors.Is(err, domain.ErrConnectionClosed),
		errors.Is(err, domain.ErrCancelled),
		errors.Is(err, domain.ErrShuttingDown):
		s.logger.Info("session ended",
			ports.String("session", id),
			ports.String("remote", remote),
			ports.Err(err),
		)
	default:
		s.logger.Warn("session failed",
			ports.String("session", id),
			ports.String("remote", remote),
			ports.Err(err),
		)
	}
}

// track registers conn so Stop can close it. It reports false once the
// server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Stop stops accepting, releases sessions blocked on the barrier and
// waits for every session to exit. It is safe to call more than once.
func (s *Server) Stop() error {
	if !s.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(StateStopping, "stop requested"); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()
	s.barrier.Shutdown()

	if err := s.lifecycle.WaitWithTimeout(s.cfg.ShutdownTimeout); err != nil {
		// Force the remaining sessions off their sockets.
		s.closeConns()
		_ = s.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
		return err
	}

	s.mu.Lock()
	s.conns = nil
	s.mu.Unlock()

	s.logger.Info("server stopped")
	return s.lifecycle.TransitionTo(StateStopped, "stopped")
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return s.lifecycle.State()
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Barrier returns the completion barrier shared by all sessions.
func (s *Server) Barrier() *Barrier {
	return s.barrier
}

// ActiveSessions returns the number of running sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

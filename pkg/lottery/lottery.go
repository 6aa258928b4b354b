package lottery

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bft-labs/lottery/internal/adapters/fs"
	"github.com/bft-labs/lottery/internal/adapters/memory"
	"github.com/bft-labs/lottery/internal/adapters/metrics"
	"github.com/bft-labs/lottery/internal/adapters/redis"
	"github.com/bft-labs/lottery/internal/app"
	"github.com/bft-labs/lottery/internal/cliconfig"
	"github.com/bft-labs/lottery/internal/ports"
)

// Config holds the server configuration.
type Config = cliconfig.ServerConfig

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultServerConfig()
}

// Lottery is a bet server that can be embedded in other applications.
// Use New() to create an instance, then Start() to begin accepting agencies.
type Lottery struct {
	config   Config
	server   *app.Server
	store    ports.BetStore
	closer   io.Closer
	recorder *metrics.Recorder
	logger   ports.Logger

	mu            sync.Mutex
	metricsCancel context.CancelFunc
	metricsDone   chan struct{}
	closeOnce     sync.Once
}

// New creates a new Lottery with the given configuration.
// The instance is created in StateStopped; call Start() to begin serving.
// Returns an error if configuration is invalid or the store cannot be built.
func New(cfg Config, opts ...Option) (*Lottery, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	store := o.store
	var closer io.Closer
	if store == nil {
		var err error
		store, closer, err = newStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	recorder := metrics.NewRecorder()
	sessionEmitter := sessionEmitters{recorder}
	stateEmitter := stateEmitters{recorder}
	if o.eventHandler != nil {
		wrapper := &eventEmitterWrapper{handler: o.eventHandler}
		sessionEmitter = append(sessionEmitter, wrapper)
		stateEmitter = append(stateEmitter, wrapper)
	}

	return &Lottery{
		config:   cfg,
		server:   app.NewServer(cfg.App(), store, logger, sessionEmitter, stateEmitter),
		store:    store,
		closer:   closer,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// newStore builds the store backend named by cfg.Store.
func newStore(cfg Config) (ports.BetStore, io.Closer, error) {
	switch cfg.Store {
	case cliconfig.StoreMemory:
		return memory.NewStore(cfg.WinningNumber), nil, nil
	case cliconfig.StoreRedis:
		s, err := redis.NewStore(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisNamespace, cfg.WinningNumber)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return fs.NewCSVStore(cfg.DataDir, cfg.WinningNumber), nil, nil
	}
}

// Start binds the listener and begins accepting agencies in the background.
// Returns an error if already running or if the address cannot be bound.
// Cancelling ctx stops the server.
func (l *Lottery) Start(ctx context.Context) error {
	if err := l.server.Start(ctx); err != nil {
		return err
	}

	if l.config.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		l.mu.Lock()
		l.metricsCancel = cancel
		l.metricsDone = done
		l.mu.Unlock()

		go func() {
			defer close(done)
			l.logger.Info("serving metrics", ports.String("addr", l.config.MetricsAddr))
			if err := l.recorder.Serve(mctx, l.config.MetricsAddr); err != nil {
				l.logger.Error("metrics server failed", ports.Err(err))
			}
		}()
	}
	return nil
}

// Stop stops accepting agencies and waits for open sessions to end.
// Returns nil on graceful shutdown, domain.ErrShutdownTimeout if forced.
// The metrics endpoint and the store are released even when the server
// had already stopped because the Start context ended.
func (l *Lottery) Stop() error {
	err := l.server.Stop()

	l.mu.Lock()
	cancel, done := l.metricsCancel, l.metricsDone
	l.metricsCancel, l.metricsDone = nil, nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	if l.server.Addr() != nil && l.server.State() != app.StateRunning {
		l.closeOnce.Do(func() {
			if l.closer == nil {
				return
			}
			if cerr := l.closer.Close(); cerr != nil {
				l.logger.Warn("closing store failed", ports.Err(cerr))
			}
		})
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (l *Lottery) Status() State {
	return convertState(l.server.State())
}

// Addr returns the bound listener address, or nil before Start.
func (l *Lottery) Addr() net.Addr {
	return l.server.Addr()
}

// FinishedAgencies returns how many agencies have sent FIN.
func (l *Lottery) FinishedAgencies() int {
	return l.server.Barrier().Count()
}

// MetricsHandler returns an HTTP handler serving Prometheus metrics.
func (l *Lottery) MetricsHandler() http.Handler {
	return l.recorder.Handler()
}

package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/lottery/internal/adapters/memory"
	"github.com/bft-labs/lottery/internal/codec"
	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/frame"
)

func testServerConfig(agencies int) ServerConfig {
	return ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		Backlog:         DefaultBacklog,
		Agencies:        agencies,
		PollInterval:    pollInterval,
		ShutdownTimeout: 2 * time.Second,
	}
}

func startServer(t *testing.T, agencies int) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore(domain.DefaultWinningNumber)
	srv := NewServer(testServerConfig(agencies), store, &mockLogger{}, nil, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if srv.State() == StateRunning {
			_ = srv.Stop()
		}
	})
	return srv, store
}

func dial(t *testing.T, srv *Server) (*frame.Channel, net.Conn) {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return frame.New(conn, nil), conn
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{"valid", func(c *ServerConfig) {}, false},
		{"empty addr", func(c *ServerConfig) { c.ListenAddr = "" }, true},
		{"no agencies", func(c *ServerConfig) { c.Agencies = 0 }, true},
		{"negative backlog", func(c *ServerConfig) { c.Backlog = -1 }, true},
		{"negative rate", func(c *ServerConfig) { c.AcceptRate = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testServerConfig(1)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestServer_ThreeAgencies(t *testing.T) {
	srv, store := startServer(t, 3)

	var wg sync.WaitGroup
	results := make([][]string, 4)
	errs := make([]error, 4)

	for agency := 1; agency <= 3; agency++ {
		wg.Add(1)
		go func(agency int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				errs[agency] = err
				return
			}
			defer conn.Close()
			ch := frame.New(conn, nil)

			batch := "BATCH,2," + record(agency, "win", 7574) + ":" + record(agency, "lose", 1)
			if err := ch.Send([]byte(batch)); err != nil {
				errs[agency] = err
				return
			}
			reply, err := ch.Receive()
			if err != nil || string(reply) != codec.ReplySuccess {
				errs[agency] = errors.New("batch not acknowledged: " + string(reply))
				return
			}
			if err := ch.Send(codec.EncodeFin(agency)); err != nil {
				errs[agency] = err
				return
			}
			if err := ch.Send(codec.EncodeWinnersQuery(agency)); err != nil {
				errs[agency] = err
				return
			}
			reply, err = ch.Receive()
			if err != nil {
				errs[agency] = err
				return
			}
			results[agency], errs[agency] = codec.ParseWinners(reply)
		}(agency)
	}
	wg.Wait()

	for agency := 1; agency <= 3; agency++ {
		if errs[agency] != nil {
			t.Fatalf("agency %d: %v", agency, errs[agency])
		}
		if len(results[agency]) != 1 || results[agency][0] != "win" {
			t.Errorf("agency %d winners = %v, want [win]", agency, results[agency])
		}
	}
	if store.Len() != 6 {
		t.Errorf("stored %d bets, want 6", store.Len())
	}
	if !srv.Barrier().AllFinished() {
		t.Error("barrier not released")
	}
}

func TestServer_WinnersBlockUntilLastFin(t *testing.T) {
	srv, _ := startServer(t, 2)

	first, _ := dial(t, srv)
	if err := first.Send(codec.EncodeFin(1)); err != nil {
		t.Fatal(err)
	}
	if err := first.Send(codec.EncodeWinnersQuery(1)); err != nil {
		t.Fatal(err)
	}

	replied := make(chan []byte, 1)
	go func() {
		reply, _ := first.Receive()
		replied <- reply
	}()

	select {
	case r := <-replied:
		t.Fatalf("got winners %q before all agencies finished", r)
	case <-time.After(100 * time.Millisecond):
	}

	second, _ := dial(t, srv)
	if err := second.Send(codec.EncodeFin(2)); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-replied:
		if string(r) != string(codec.FormatWinners(nil)) {
			t.Errorf("reply = %q", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("winners never released")
	}
}

func TestServer_StopReleasesBlockedSessions(t *testing.T) {
	srv, _ := startServer(t, 2)

	ch, _ := dial(t, srv)
	if err := ch.Send(codec.EncodeWinnersQuery(1)); err != nil {
		t.Fatal(err)
	}
	// An idle connection must not hold up shutdown either.
	dial(t, srv)
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- srv.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped", srv.State())
	}
	if _, err := ch.Receive(); !errors.Is(err, domain.ErrConnectionClosed) {
		t.Errorf("Receive() after stop error = %v, want ErrConnectionClosed", err)
	}
}

func TestServer_StartTwice(t *testing.T) {
	srv, _ := startServer(t, 1)

	if err := srv.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestServer_StopNotRunning(t *testing.T) {
	srv := NewServer(testServerConfig(1), memory.NewStore(7574), &mockLogger{}, nil, nil)

	if err := srv.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestServer_InvalidConfigDoesNotLatch(t *testing.T) {
	cfg := testServerConfig(1)
	cfg.Agencies = 0
	srv := NewServer(cfg, memory.NewStore(7574), &mockLogger{}, nil, nil)

	for i := 0; i < 2; i++ {
		if err := srv.Start(context.Background()); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("Start() attempt %d error = %v, want ErrInvalidConfig", i+1, err)
		}
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %v, want %v", srv.State(), StateStopped)
	}
}

func TestServer_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testServerConfig(1)
	cfg.ListenAddr = ln.Addr().String()
	srv := NewServer(cfg, memory.NewStore(7574), &mockLogger{}, nil, nil)

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected bind error")
	}
	if srv.State() != StateCrashed {
		t.Errorf("State() = %v, want Crashed", srv.State())
	}
}

func TestServer_AcceptRateLimited(t *testing.T) {
	cfg := testServerConfig(1)
	cfg.AcceptRate = 1000
	cfg.AcceptBurst = 1
	srv := NewServer(cfg, memory.NewStore(7574), &mockLogger{}, nil, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	ch, _ := dial(t, srv)
	if err := ch.Send([]byte("BATCH,1," + record(1, "1", 1))); err != nil {
		t.Fatal(err)
	}
	reply, err := ch.Receive()
	if err != nil || string(reply) != codec.ReplySuccess {
		t.Fatalf("reply = %q, err = %v", reply, err)
	}
}

func TestServer_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(testServerConfig(1), memory.NewStore(7574), &mockLogger{}, nil, nil)
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}

	cancel()

	deadline := time.Now().Add(3 * time.Second)
	for srv.State() != StateStopped {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %v, want Stopped", srv.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package lottery_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/lottery/internal/adapters/memory"
	"github.com/bft-labs/lottery/internal/agency"
	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/pkg/lottery"
)

type recordingHandler struct {
	lottery.BaseEventHandler
	mu       sync.Mutex
	states   []lottery.State
	batches  int
	finished []int
	served   []lottery.WinnersEvent
}

func (h *recordingHandler) OnStateChange(e lottery.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current)
}

func (h *recordingHandler) OnBatch(e lottery.BatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Err == nil {
		h.batches++
	}
}

func (h *recordingHandler) OnAgencyFinished(agency int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, agency)
}

func (h *recordingHandler) OnWinnersServed(e lottery.WinnersEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.served = append(h.served, e)
}

func testConfig(agencies int) lottery.Config {
	cfg := lottery.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Agencies = agencies
	cfg.Store = "memory"
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func bet(agencyID int, doc string, number int) domain.Bet {
	return domain.Bet{
		Agency:    agencyID,
		FirstName: "Ana",
		LastName:  "Diaz",
		Document:  doc,
		Birthdate: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(0)
	_, err := lottery.New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLottery_EndToEnd(t *testing.T) {
	handler := &recordingHandler{}
	store := memory.NewStore(domain.DefaultWinningNumber)

	l, err := lottery.New(testConfig(2), lottery.WithStore(store), lottery.WithEventHandler(handler))
	require.NoError(t, err)
	assert.Equal(t, lottery.StateStopped, l.Status())

	require.NoError(t, l.Start(context.Background()))
	assert.Equal(t, lottery.StateRunning, l.Status())
	addr := l.Addr().String()

	var wg sync.WaitGroup
	results := make([]agency.Result, 3)
	for id := 1; id <= 2; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := agency.NewClient(agency.Config{
				ServerAddr: addr,
				Agency:     id,
				BatchSize:  2,
			}, nil)
			results[id], _ = c.Run(context.Background(), []domain.Bet{
				bet(id, "w1", domain.DefaultWinningNumber),
				bet(id, "l1", 1),
				bet(id, "w2", domain.DefaultWinningNumber),
			})
		}(id)
	}
	wg.Wait()

	for id := 1; id <= 2; id++ {
		assert.Equal(t, []string{"w1", "w2"}, results[id].Winners, "agency %d", id)
	}
	assert.Equal(t, 6, store.Len())
	assert.Equal(t, 2, l.FinishedAgencies())

	require.NoError(t, l.Stop())
	assert.Equal(t, lottery.StateStopped, l.Status())

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, 4, handler.batches)
	assert.ElementsMatch(t, []int{1, 2}, handler.finished)
	assert.Len(t, handler.served, 2)
	assert.Contains(t, handler.states, lottery.StateRunning)
	assert.Equal(t, lottery.StateStopped, handler.states[len(handler.states)-1])

	rec := httptest.NewRecorder()
	l.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "lottery_bets_stored_total 6"))
}

func TestLottery_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(1)
	cfg.Store = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.RedisNamespace = "e2e"

	l, err := lottery.New(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	c := agency.NewClient(agency.Config{ServerAddr: l.Addr().String(), Agency: 1, BatchSize: 10}, nil)
	res, err := c.Run(context.Background(), []domain.Bet{bet(1, "lucky", domain.DefaultWinningNumber)})
	require.NoError(t, err)
	assert.Equal(t, []string{"lucky"}, res.Winners)

	items, err := mr.List("lottery:e2e:agency:1:bets")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLottery_CSVStore(t *testing.T) {
	cfg := testConfig(1)
	cfg.Store = "csv"
	cfg.DataDir = t.TempDir()

	l, err := lottery.New(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	c := agency.NewClient(agency.Config{ServerAddr: l.Addr().String(), Agency: 1, BatchSize: 10}, nil)
	res, err := c.Run(context.Background(), []domain.Bet{bet(1, "a", 1), bet(1, "b", domain.DefaultWinningNumber)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Winners)
}

func TestLottery_StopNotRunning(t *testing.T) {
	l, err := lottery.New(testConfig(1))
	require.NoError(t, err)

	assert.True(t, errors.Is(l.Stop(), domain.ErrNotRunning))
}

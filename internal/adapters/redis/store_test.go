package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/lottery/internal/domain"
)

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T, namespace string) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	store, err := NewStore(&redis.Options{Addr: mr.Addr()}, namespace, domain.DefaultWinningNumber)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func testBet(agency int, doc string, number int) domain.Bet {
	return domain.Bet{
		Agency:    agency,
		FirstName: "Santiago",
		LastName:  "Lorca",
		Document:  doc,
		Birthdate: time.Date(1999, 3, 17, 0, 0, 0, 0, time.UTC),
		Number:    number,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewStore(&redis.Options{Addr: "localhost:6379"}, "", 7574)
		assert.Error(t, err)
	})

	t.Run("pings", func(t *testing.T) {
		store, _ := setupTestStore(t, "test")
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestAppend(t *testing.T) {
	store, mr := setupTestStore(t, "test")
	ctx := context.Background()

	err := store.Append(ctx, []domain.Bet{
		testBet(1, "30904465", 7574),
		testBet(2, "11111111", 7574),
		testBet(1, "22222222", 42),
	})
	require.NoError(t, err)

	items, err := mr.List(AgencyKey("test", 1))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Contains(t, items[0], `"document":"30904465"`)

	n, err := store.Count(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppend_Empty(t *testing.T) {
	store, mr := setupTestStore(t, "test")

	require.NoError(t, store.Append(context.Background(), nil))
	assert.Empty(t, mr.Keys())
}

func TestWinnersForAgency(t *testing.T) {
	store, _ := setupTestStore(t, "test")
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []domain.Bet{
		testBet(1, "a", 7574),
		testBet(1, "b", 1),
	}))
	require.NoError(t, store.Append(ctx, []domain.Bet{testBet(1, "c", 7574)}))

	winners, err := store.WinnersForAgency(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, winners)

	winners, err = store.WinnersForAgency(ctx, 9)
	require.NoError(t, err)
	assert.NotNil(t, winners)
	assert.Empty(t, winners)
}

func TestWinnersForAgency_CorruptRecord(t *testing.T) {
	store, mr := setupTestStore(t, "test")

	_, err := mr.RPush(AgencyKey("test", 1), "not json")
	require.NoError(t, err)

	_, err = store.WinnersForAgency(context.Background(), 1)
	assert.Error(t, err)
}

func TestNamespaceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := &redis.Options{Addr: mr.Addr()}

	a, err := NewStore(opts, "round-a", 7574)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(opts, "round-b", 7574)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Append(ctx, []domain.Bet{testBet(1, "only-a", 7574)}))

	winners, err := b.WinnersForAgency(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := setupTestStore(t, "test")
	mr.Close()

	err := store.Append(context.Background(), []domain.Bet{testBet(1, "x", 7574)})
	assert.Error(t, err)
}

func TestWinnersForAgency_Repeatable(t *testing.T) {
	store, _ := setupTestStore(t, "test")
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []domain.Bet{
		testBet(1, "a", 7574),
		testBet(1, "b", 7574),
	}))

	tests := []struct {
		name   string
		agency int
	}{
		{"agency with winners", 1},
		{"agency without bets", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := store.WinnersForAgency(ctx, tt.agency)
			require.NoError(t, err)
			second, err := store.WinnersForAgency(ctx, tt.agency)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

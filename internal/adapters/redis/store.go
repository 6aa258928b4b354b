// Package redis provides a bet store backed by Redis lists.
//
// Bets are appended as JSON records to one list per agency at
// lottery:{namespace}:agency:{id}:bets. A batch touching several agencies
// is written in a single MULTI/EXEC transaction.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/lottery/internal/domain"
)

// Store implements ports.BetStore on Redis.
// It is safe for concurrent use.
type Store struct {
	rdb           *redis.Client
	namespace     string
	winningNumber int
}

// NewStore creates a store for namespace. Separate namespaces share a
// Redis instance without seeing each other's bets.
func NewStore(redisOpts *redis.Options, namespace string, winningNumber int) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &Store{
		rdb:           redis.NewClient(redisOpts),
		namespace:     namespace,
		winningNumber: winningNumber,
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// AgencyKey returns the list key holding the bets of agency.
func AgencyKey(namespace string, agency int) string {
	return fmt.Sprintf("lottery:%s:agency:%d:bets", namespace, agency)
}

// Append implements ports.BetStore. Either every bet is stored or none is.
func (s *Store) Append(ctx context.Context, bets []domain.Bet) error {
	if len(bets) == 0 {
		return nil
	}

	grouped := make(map[int][]interface{})
	order := make([]int, 0, 1)
	for _, b := range bets {
		data, err := json.Marshal(b.ToRecord())
		if err != nil {
			return fmt.Errorf("failed to serialize bet: %w", err)
		}
		if _, ok := grouped[b.Agency]; !ok {
			order = append(order, b.Agency)
		}
		grouped[b.Agency] = append(grouped[b.Agency], data)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, agency := range order {
			pipe.RPush(ctx, AgencyKey(s.namespace, agency), grouped[agency]...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append bets to Redis: %w", err)
	}
	return nil
}

// WinnersForAgency implements ports.BetStore.
func (s *Store) WinnersForAgency(ctx context.Context, agency int) ([]string, error) {
	raw, err := s.rdb.LRange(ctx, AgencyKey(s.namespace, agency), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bets from Redis: %w", err)
	}

	winners := []string{}
	for i, item := range raw {
		var rec domain.BetRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to deserialize bet %d: %w", i, err)
		}
		if rec.Number == s.winningNumber {
			winners = append(winners, rec.Document)
		}
	}
	return winners, nil
}

// Count returns the number of bets stored for agency.
func (s *Store) Count(ctx context.Context, agency int) (int64, error) {
	return s.rdb.LLen(ctx, AgencyKey(s.namespace, agency)).Result()
}

package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/redis/go-redis/v9"
)

// Store caches scenario rows. Scenarios are read-only to the service, so a
// plain TTL cache is enough; any redis failure degrades to a DB read.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func scenarioKey(id uint64) string {
	return fmt.Sprintf("scenario:%d", id)
}

func (s *Store) GetScenario(ctx context.Context, id uint64) (*coach.Scenario, bool) {
	raw, err := s.rdb.Get(ctx, scenarioKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var sc coach.Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, false
	}
	return &sc, true
}

func (s *Store) SetScenario(ctx context.Context, sc *coach.Scenario) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return
	}
	_ = s.rdb.Set(ctx, scenarioKey(sc.ID), raw, s.ttl).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sensor_snapshot:"

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Store keeps the latest snapshot per sensor as JSON under
// sensor_snapshot:<sensor_id>. It implements pipeline.SnapshotStore.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Store whose keys expire after ttl.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+snap.SensorID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns domain.ErrNoSnapshot when the key is missing or expired.
func (s *Store) LatestSnapshot(ctx context.Context, sensorID string) (domain.Snapshot, error) {
	data, err := s.client.Get(ctx, keyPrefix+sensorID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis get snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Package report keeps the outcome of the latest export per document.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
)

// ErrNotFound is returned when no report is stored for a document.
var ErrNotFound = errors.New("export report not found or expired")

// Report summarizes one export.
type Report struct {
	ExportID       string           `json:"exportId"`
	DocumentID     string           `json:"documentId"`
	Mode           reconcile.Mode   `json:"mode"`
	Author         string           `json:"author,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Applied        int              `json:"applied"`
	Skips          []reconcile.Skip `json:"skips"`
	Placements     int              `json:"placements"`
	Fallback       bool             `json:"fallback"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
}

// RedisStore stores reports in Redis with a TTL
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "export-report:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(documentID string) string {
	return s.prefix + documentID
}

// Save replaces the latest report for the report's document.
func (s *RedisStore) Save(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal export report: %w", err)
	}
	if err := s.client.Set(ctx, s.key(r.DocumentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save export report: %w", err)
	}
	return nil
}

// Latest returns the most recent report for documentID.
func (s *RedisStore) Latest(ctx context.Context, documentID string) (Report, error) {
	data, err := s.client.Get(ctx, s.key(documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("lookup export report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("unmarshal export report: %w", err)
	}
	return r, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

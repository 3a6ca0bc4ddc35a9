package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"signal-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store keeps per-series candle history in Redis lists and caches the
// latest evaluated signal per key.
//
// History lists are keyed "hist:{tf}s:{asset}", newest element first,
// each element a JSON candle. The ingest pipeline records live candles
// into them and prefill reads them back, so the engine does not start
// from an empty window after a restart.
type Store struct {
	client *goredis.Client
}

// New creates a new Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

func historyKey(key model.Key) string {
	return fmt.Sprintf("hist:%ds:%s", int(key.TF), key.Asset)
}

// History reads up to limit historical candles for a key, oldest
// first. A missing list yields an empty slice and no error.
func (s *Store) History(ctx context.Context, key model.Key, limit int) ([]model.Candle, error) {
	raw, err := s.client.LRange(ctx, historyKey(key), 0, int64(limit-1)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis lrange %s: %w", historyKey(key), err)
	}

	// List is newest-first; decode and reverse into chronological order.
	candles := make([]model.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var c model.Candle
		if err := json.Unmarshal([]byte(raw[i]), &c); err != nil {
			log.Printf("[redis] skipping malformed history entry in %s: %v", historyKey(key), err)
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// RecordCandle prepends a candle to the history list and trims it to
// maxLen entries.
func (s *Store) RecordCandle(ctx context.Context, key model.Key, c model.Candle, maxLen int) error {
	k := historyKey(key)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, k, c.JSON())
	pipe.LTrim(ctx, k, 0, int64(maxLen-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record candle %s: %w", k, err)
	}
	return nil
}

// CacheSignal stores the latest signal for a key with a TTL so stale
// entries age out when the engine stops evaluating a series.
func (s *Store) CacheSignal(ctx context.Context, sig model.Signal, ttl time.Duration) error {
	key := "signal:" + sig.Key().String()
	if err := s.client.Set(ctx, key, sig.JSON(), ttl).Err(); err != nil {
		return fmt.Errorf("redis cache signal %s: %w", key, err)
	}
	return nil
}

// CachedSignal returns the cached signal for a key, or nil when absent.
func (s *Store) CachedSignal(ctx context.Context, key model.Key) (*model.Signal, error) {
	data, err := s.client.Get(ctx, "signal:"+key.String()).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get signal %s: %w", key.String(), err)
	}
	var sig model.Signal
	if err := json.Unmarshal([]byte(data), &sig); err != nil {
		return nil, fmt.Errorf("unmarshal cached signal: %w", err)
	}
	return &sig, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

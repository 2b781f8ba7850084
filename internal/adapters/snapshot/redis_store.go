// Package snapshot persists the latest window and prediction per asset in
// Redis so dashboard replicas share state and the degraded-mode prediction
// path has something to serve when the inference API is down.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// Config connects the store to Redis.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings so a misconfigured address fails fast at
// startup instead of on the first snapshot.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	cfg.ApplyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func windowKey(assetID string) string { return "plantagi:window:" + assetID }

func predictionKey(machineID string) string { return "plantagi:prediction:" + machineID }

func (s *RedisStore) StoreWindow(ctx context.Context, assetID string, window []*domain.SensorSample) error {
	data, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}
	return s.client.Set(ctx, windowKey(assetID), data, s.ttl).Err()
}

func (s *RedisStore) LoadWindow(ctx context.Context, assetID string) ([]*domain.SensorSample, error) {
	data, err := s.client.Get(ctx, windowKey(assetID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load window %s: %w", assetID, err)
	}

	var window []*domain.SensorSample
	if err := json.Unmarshal(data, &window); err != nil {
		return nil, fmt.Errorf("unmarshal window %s: %w", assetID, err)
	}
	return window, nil
}

func (s *RedisStore) StorePrediction(ctx context.Context, machineID string, p *ports.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	return s.client.Set(ctx, predictionKey(machineID), data, s.ttl).Err()
}

func (s *RedisStore) LoadPrediction(ctx context.Context, machineID string) (*ports.Prediction, error) {
	data, err := s.client.Get(ctx, predictionKey(machineID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load prediction %s: %w", machineID, err)
	}

	var p ports.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal prediction %s: %w", machineID, err)
	}
	return &p, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ ports.SnapshotStore = (*RedisStore)(nil)

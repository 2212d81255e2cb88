package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smarttravel/checkout-backend/internal/config"
	"github.com/smarttravel/checkout-backend/internal/models"
)

// RedisDraftStore keeps drafts as JSON values with a sliding TTL
type RedisDraftStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to the Redis instance named by cfg.URL
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisDraftStore creates a draft store on an existing client
func NewRedisDraftStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisDraftStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

// Get loads a draft
func (s *RedisDraftStore) Get(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	var draft models.BookingDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Save writes a draft and restarts its TTL
func (s *RedisDraftStore) Save(ctx context.Context, draft *models.BookingDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(draft.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes a draft
func (s *RedisDraftStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Sweep is a no-op; Redis expires drafts on its own
func (s *RedisDraftStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

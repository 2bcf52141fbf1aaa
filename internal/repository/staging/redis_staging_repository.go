package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "staging:"
	DefaultTTL = 24 * time.Hour
)

// RedisStagingRepository mirrors the latest draft note per patient. It is a
// volatile fallback for when the clinic API cannot be reached, not a store of
// record.
type RedisStagingRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStagingRepository(rdb *redis.Client, ttl time.Duration) *RedisStagingRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStagingRepository{rdb: rdb, ttl: ttl}
}

func Key(patientID string) string {
	return keyPrefix + patientID
}

func (r *RedisStagingRepository) Save(ctx context.Context, patientID, content string) error {
	if err := r.rdb.Set(ctx, Key(patientID), content, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set staging: %w", err)
	}
	return nil
}

// Load reports false when no draft is cached for the patient.
func (r *RedisStagingRepository) Load(ctx context.Context, patientID string) (string, bool, error) {
	content, err := r.rdb.Get(ctx, Key(patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get staging: %w", err)
	}
	return content, true, nil
}

func (r *RedisStagingRepository) Delete(ctx context.Context, patientID string) error {
	if err := r.rdb.Del(ctx, Key(patientID)).Err(); err != nil {
		return fmt.Errorf("redis del staging: %w", err)
	}
	return nil
}

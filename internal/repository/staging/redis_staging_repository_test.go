package staging

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a reachable Redis; REDIS_URL defaults to localhost.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379"
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisStagingRepository(t *testing.T) {
	rdb := newTestClient(t)
	repo := NewRedisStagingRepository(rdb, time.Minute)
	ctx := context.Background()
	patientID := "test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), Key(patientID)) })

	_, found, err := repo.Load(ctx, patientID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Save(ctx, patientID, "Queixa: cefaleia"))
	content, found, err := repo.Load(ctx, patientID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Queixa: cefaleia", content)

	ttl, err := rdb.TTL(ctx, Key(patientID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, repo.Delete(ctx, patientID))
	_, found, err = repo.Load(ctx, patientID)
	require.NoError(t, err)
	assert.False(t, found)
}

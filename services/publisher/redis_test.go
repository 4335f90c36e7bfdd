package publisher

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_listings", 1, 5)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()
	client.Del(ctx, "test_listings:0")

	err := publisher.Publish(ctx, "b64_listing", []byte("test_message"))
	require.NoError(t, err)

	messages, err := client.XRange(ctx, "test_listings:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	// The message should be base64 encoded
	assert.Equal(t, "dGVzdF9tZXNzYWdl", messages[0].Values["b64_listing"])

	for i := 0; i < 10; i++ {
		require.NoError(t, publisher.Publish(ctx, "b64_listing", []byte("filler")))
	}
	require.NoError(t, publisher.TrimStreams(ctx))

	length, err := client.XLen(ctx, "test_listings:0").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)
}

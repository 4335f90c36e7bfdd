package publisher

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"strconv"

	"sjsage522/classifiedworker/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping failed", err)
	}
	return nil
}

// Publish publishes a message to a Redis stream
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// if streamCount is 10, stream name will be <prefix>:0 ~ <prefix>:9
	stream := p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher("redis", "failed to publish to "+stream, err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for i := 0; i < p.streamCount; i++ {
		stream := p.streamPrefix + ":" + strconv.Itoa(i)
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher("redis", "failed to trim "+stream, err)
		}
	}

	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Package stream tails the upstream append-only log and drives the relay
// pipeline. The LogClient interface isolates the Redis dependency; the
// CursorReader owns the resume position and the reconnect policy.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	errspkg "github.com/visiona/vlmrelay/internal/relay/errors"
)

// StartFromNow is the cursor sentinel meaning "only entries published after
// this reader starts". New readers never replay history.
const StartFromNow = "$"

// Entry is one record read from the upstream log: an opaque, log-ordered id
// plus the producer's raw field map.
type Entry struct {
	ID     string
	Fields map[string]string
}

// LogClient is the upstream log collaborator. Implementations must make
// ReadAfter block for at most the given duration when no entries exist and
// return entries in log order.
type LogClient interface {
	Connect(ctx context.Context) error
	Close() error
	ReadAfter(ctx context.Context, position string, block time.Duration, count int64) ([]Entry, error)
}

// RedisOptions configures NewRedisLogClient.
type RedisOptions struct {
	Addr     string
	Password string
	Stream   string
}

// RedisLogClient tails a Redis stream with consumer-group-free XREAD.
type RedisLogClient struct {
	opts   RedisOptions
	client *redis.Client
}

// NewRedisLogClient returns a client for the given stream. Connect must be
// called before ReadAfter.
func NewRedisLogClient(opts RedisOptions) *RedisLogClient {
	return &RedisLogClient{opts: opts}
}

// Connect establishes and pings the Redis connection. Safe to call again
// after a failure.
func (c *RedisLogClient) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.opts.Addr,
		Password: c.opts.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping %s: %w", c.opts.Addr, err)
	}
	c.client = client
	return nil
}

// Close releases the underlying connection. Idempotent.
func (c *RedisLogClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// ReadAfter returns up to count entries published after position, blocking up
// to the given duration when the stream has nothing new. A timed-out block is
// not an error; it returns an empty batch.
func (c *RedisLogClient) ReadAfter(ctx context.Context, position string, block time.Duration, count int64) ([]Entry, error) {
	if c.client == nil {
		return nil, errspkg.ErrNotConnected
	}

	streams, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{c.opts.Stream, position},
		Block:   block,
		Count:   count,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xread %s: %w", c.opts.Stream, err)
	}

	var entries []Entry
	for _, s := range streams {
		for _, msg := range s.Messages {
			entries = append(entries, Entry{ID: msg.ID, Fields: stringFields(msg.Values)})
		}
	}
	return entries, nil
}

func stringFields(values map[string]any) map[string]string {
	fields := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case string:
			fields[key] = v
		default:
			fields[key] = fmt.Sprint(v)
		}
	}
	return fields
}

// IsConnectivityError reports whether err indicates a lost upstream
// connection, as opposed to a transient read failure at the same position.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errspkg.ErrNotConnected) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

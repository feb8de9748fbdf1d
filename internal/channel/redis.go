package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Context names used for pub/sub channel naming.
const (
	ScannerContext  = "scanner"
	AnalyzerContext = "analyzer"
)

// RedisTransport carries messages over Redis pub/sub. Each context
// subscribes to "<namespace>:<self>" and publishes to "<namespace>:<peer>".
type RedisTransport struct {
	client *redis.Client
	sub    *redis.PubSub
	target string
	out    chan Message
	logger *slog.Logger
}

var _ Transport = (*RedisTransport)(nil)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisTransport subscribes the self context and returns once the
// subscription is confirmed.
func NewRedisTransport(ctx context.Context, client *redis.Client, namespace, self, peer string, logger *slog.Logger) (*RedisTransport, error) {
	name := namespace + ":" + self
	sub := client.Subscribe(ctx, name)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}

	t := &RedisTransport{
		client: client,
		sub:    sub,
		target: namespace + ":" + peer,
		out:    make(chan Message, 64),
		logger: logger,
	}
	go t.pump(sub.Channel())
	return t, nil
}

func (t *RedisTransport) pump(in <-chan *redis.Message) {
	defer close(t.out)
	for raw := range in {
		var m Message
		if err := json.Unmarshal([]byte(raw.Payload), &m); err != nil {
			t.logger.Warn("dropping malformed bus message", "channel", raw.Channel, "error", err)
			continue
		}
		t.out <- m
	}
}

// Send publishes msg. Publishing to a channel nobody subscribes to means the
// other context is not running, which is reported as an error.
func (t *RedisTransport) Send(ctx context.Context, msg Message) (*Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	receivers, err := t.client.Publish(ctx, t.target, data).Result()
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", t.target, err)
	}
	if receivers == 0 {
		return nil, fmt.Errorf("publish %s: no subscriber", t.target)
	}
	return nil, nil
}

func (t *RedisTransport) Messages() <-chan Message {
	return t.out
}

func (t *RedisTransport) Close() error {
	return t.sub.Close()
}

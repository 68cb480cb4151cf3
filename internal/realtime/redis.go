package realtime

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// RedisBus fans messages out across nodes via Redis pub/sub. The receive loop
// reconnects with bounded exponential backoff plus jitter, so a broker blip
// degrades to missed live events rather than a wedged channel; clients
// re-baseline on their next subscribe.
type RedisBus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisBus constructs a Redis-backed bus.
func NewRedisBus(rdb *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, 256)

	go func() {
		defer close(out)
		attempt := 0
		for {
			if ctx.Err() != nil {
				return
			}
			sub := b.rdb.Subscribe(ctx, topic)
			if _, err := sub.Receive(ctx); err != nil {
				_ = sub.Close()
				if ctx.Err() != nil {
					return
				}
				attempt++
				d := backoffDelay(attempt)
				b.logger.Warn("redis subscribe failed, retrying",
					zap.String("topic", topic), zap.Duration("backoff", d), zap.Error(err))
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
				continue
			}
			attempt = 0

			ch := sub.Channel()
		recv:
			for {
				select {
				case msg, ok := <-ch:
					if !ok {
						break recv
					}
					select {
					case out <- []byte(msg.Payload):
					default:
						// slow subscriber; drop rather than block the loop
					}
				case <-ctx.Done():
					_ = sub.Close()
					return
				}
			}
			_ = sub.Close()
		}
	}()

	return out, cancel, nil
}

// backoffDelay is exponential with full jitter, capped.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d <= 0 || d > backoffCap {
		d = backoffCap
	}
	return time.Duration(rand.Int63n(int64(d)) + 1)
}

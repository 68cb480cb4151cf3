// Package realtime implements the per-board collaboration channel: row-change
// fan-out, presence, and cursor broadcast multiplexed over one subscription
// per client.
package realtime

import (
	"context"
	"sync"
)

// Bus is the cross-node fan-out transport. A message published to a topic is
// delivered to every subscriber on every node, including the publisher's own.
type Bus interface {
	// Publish sends payload to all current subscribers of topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a delivery channel and a cancel func releasing it.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
}

// MemoryBus is an in-process Bus for tests and single-node deployments.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

// NewMemoryBus constructs an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string]map[chan []byte]struct{}{}}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			// slow subscriber; drop rather than block the publisher
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 256)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan []byte]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[topic]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, topic)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

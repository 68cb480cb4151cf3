package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
)

const (
	// cursorMinInterval bounds outbound cursor bandwidth per sender.
	cursorMinInterval = 50 * time.Millisecond

	// heartbeatInterval is how often connected clients re-track presence.
	heartbeatInterval = 30 * time.Second

	// presenceStaleAfter is when a silent participant is swept from presence.
	presenceStaleAfter = 90 * time.Second

	subscriberBuffer = 256
)

// HeartbeatInterval is exposed for transports that drive client heartbeats.
func HeartbeatInterval() time.Duration { return heartbeatInterval }

// EventType labels events delivered to a subscription.
type EventType string

const (
	EventChange   EventType = "change"
	EventPresence EventType = "presence"
	EventCursor   EventType = "cursor"
)

// Event is one delivery on a subscription. Exactly one payload field is set,
// matching Type. Presence events carry the full current membership
// (full-replace, never a delta).
type Event struct {
	Type     EventType             `json:"type"`
	Change   *model.RowChange      `json:"change,omitempty"`
	Presence []model.PresenceEntry `json:"presence,omitempty"`
	Cursor   *model.CursorPosition `json:"cursor,omitempty"`
}

// envelope is the bus wire format. Every mutation travels through the bus,
// including the publishing node's own, so all nodes apply updates in the
// same way.
type envelope struct {
	Kind     string                `json:"kind"` // change | cursor | track | untrack
	Change   *model.RowChange      `json:"change,omitempty"`
	Cursor   *model.CursorPosition `json:"cursor,omitempty"`
	Presence *model.PresenceEntry  `json:"presence,omitempty"`
	UserID   string                `json:"userId,omitempty"`
}

// Hub multiplexes the three channel concerns over one bus subscription per
// topic. It implements the service layer's Publisher.
type Hub struct {
	bus    Bus
	logger *zap.Logger

	mu       sync.Mutex
	channels map[string]*channel
}

type channel struct {
	topic    string
	cancel   func()
	done     chan struct{}
	subs     map[*Subscription]struct{}
	presence map[string]model.PresenceEntry
	cursorAt map[string]time.Time
}

// Subscription is one client's attachment to a topic.
type Subscription struct {
	hub    *Hub
	topic  string
	selfID string

	events    chan Event
	closeOnce sync.Once
}

// NewHub constructs a hub over the given bus.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	return &Hub{bus: bus, logger: logger, channels: map[string]*channel{}}
}

// Run sweeps stale presence until ctx is done. Blocks; run in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepStale(presenceStaleAfter)
		case <-ctx.Done():
			return
		}
	}
}

// Subscribe attaches a client to a topic. selfID filters the client's own
// cursor events out of its deliveries. The returned subscription is live
// immediately; callers send their baseline snapshot only after Subscribe
// returns, which closes the lost-update window between baseline and first
// live event.
func (h *Hub) Subscribe(ctx context.Context, topic, selfID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[topic]
	if !ok {
		msgs, cancel, err := h.bus.Subscribe(ctx, topic)
		if err != nil {
			return nil, err
		}
		ch = &channel{
			topic:    topic,
			cancel:   cancel,
			done:     make(chan struct{}),
			subs:     map[*Subscription]struct{}{},
			presence: map[string]model.PresenceEntry{},
			cursorAt: map[string]time.Time{},
		}
		h.channels[topic] = ch
		go h.dispatch(ch, msgs)
	}

	sub := &Subscription{hub: h, topic: topic, selfID: selfID, events: make(chan Event, subscriberBuffer)}
	ch.subs[sub] = struct{}{}
	return sub, nil
}

// PublishChange fans a row delta out to every subscriber of the topic.
func (h *Hub) PublishChange(ctx context.Context, topic string, change model.RowChange) error {
	return h.send(ctx, topic, envelope{Kind: "change", Change: &change})
}

// Track registers or refreshes the sender's presence entry. Heartbeats call
// this on an interval so idle participants keep a fresh LastSeen.
func (h *Hub) Track(ctx context.Context, topic string, entry model.PresenceEntry) error {
	entry.LastSeen = time.Now().UTC()
	return h.send(ctx, topic, envelope{Kind: "track", Presence: &entry})
}

// Untrack removes the sender's presence entry. Transports must call this
// before Close so peers never see a stale participant linger until sweep.
func (h *Hub) Untrack(ctx context.Context, topic, userID string) error {
	return h.send(ctx, topic, envelope{Kind: "untrack", UserID: userID})
}

// SendCursor broadcasts a cursor position, throttled per sender. Positions
// inside the throttle interval are dropped, not queued: only the freshest
// position matters.
func (h *Hub) SendCursor(ctx context.Context, topic string, cur model.CursorPosition) error {
	h.mu.Lock()
	ch, ok := h.channels[topic]
	if ok {
		now := time.Now()
		if last, seen := ch.cursorAt[cur.UserID]; seen && now.Sub(last) < cursorMinInterval {
			h.mu.Unlock()
			return nil
		}
		ch.cursorAt[cur.UserID] = now
	}
	h.mu.Unlock()
	return h.send(ctx, topic, envelope{Kind: "cursor", Cursor: &cur})
}

// Presence returns the current membership snapshot for a topic.
func (h *Hub) Presence(topic string) []model.PresenceEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[topic]
	if !ok {
		return nil
	}
	return snapshotLocked(ch)
}

func (h *Hub) send(ctx context.Context, topic string, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, topic, payload)
}

// dispatch applies bus messages to channel state and fans events out to
// local subscribers. It is the single writer for a channel's presence map.
func (h *Hub) dispatch(ch *channel, msgs <-chan []byte) {
	defer close(ch.done)
	for payload := range msgs {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			h.logger.Warn("malformed bus envelope", zap.String("topic", ch.topic), zap.Error(err))
			continue
		}

		h.mu.Lock()
		var ev Event
		switch env.Kind {
		case "change":
			if env.Change == nil {
				h.mu.Unlock()
				continue
			}
			ev = Event{Type: EventChange, Change: env.Change}
		case "cursor":
			if env.Cursor == nil {
				h.mu.Unlock()
				continue
			}
			ev = Event{Type: EventCursor, Cursor: env.Cursor}
		case "track":
			if env.Presence == nil {
				h.mu.Unlock()
				continue
			}
			ch.presence[env.Presence.ID] = *env.Presence
			ev = Event{Type: EventPresence, Presence: snapshotLocked(ch)}
		case "untrack":
			delete(ch.presence, env.UserID)
			delete(ch.cursorAt, env.UserID)
			ev = Event{Type: EventPresence, Presence: snapshotLocked(ch)}
		default:
			h.mu.Unlock()
			continue
		}

		for sub := range ch.subs {
			if ev.Type == EventCursor && ev.Cursor.UserID == sub.selfID {
				continue
			}
			select {
			case sub.events <- ev:
			default:
				h.logger.Warn("subscriber buffer full, dropping event",
					zap.String("topic", ch.topic), zap.String("type", string(ev.Type)))
			}
		}
		h.mu.Unlock()
	}
}

// sweepStale drops presence entries whose LastSeen is too old and notifies
// local subscribers with a fresh full-replace snapshot.
func (h *Hub) sweepStale(staleAfter time.Duration) {
	cutoff := time.Now().Add(-staleAfter)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.channels {
		changed := false
		for id, entry := range ch.presence {
			if entry.LastSeen.Before(cutoff) {
				delete(ch.presence, id)
				delete(ch.cursorAt, id)
				changed = true
			}
		}
		if !changed {
			continue
		}
		ev := Event{Type: EventPresence, Presence: snapshotLocked(ch)}
		for sub := range ch.subs {
			select {
			case sub.events <- ev:
			default:
			}
		}
	}
}

// snapshotLocked copies the presence map into a stable-ordered slice.
// Caller holds h.mu.
func snapshotLocked(ch *channel) []model.PresenceEntry {
	out := make([]model.PresenceEntry, 0, len(ch.presence))
	for _, e := range ch.presence {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events is the subscription's delivery stream. Closed after Close.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close detaches the subscription; the last one on a topic releases the bus
// subscription and the channel's presence state.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		h := s.hub
		h.mu.Lock()
		ch, ok := h.channels[s.topic]
		if !ok {
			h.mu.Unlock()
			err = errs.ErrChannelClosed
			return
		}
		delete(ch.subs, s)
		empty := len(ch.subs) == 0
		if empty {
			delete(h.channels, s.topic)
		}
		h.mu.Unlock()

		if empty {
			ch.cancel()
			<-ch.done
		}
		close(s.events)
	})
	return err
}

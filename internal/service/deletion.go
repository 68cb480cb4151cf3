package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/repository"
)

// DefaultUndoDelay is how long an optimistic deletion stays reversible.
const DefaultUndoDelay = 5 * time.Second

// DeletionMarker is the transient record of a scheduled asset deletion.
type DeletionMarker struct {
	Asset        model.Asset
	ScheduledFor time.Time
}

// PendingDeletions implements the optimistic-delete-with-undo flow: the asset
// disappears from the UI immediately, and the row is only removed after the
// undo window passes. The finalizer checks nothing but the marker's
// existence; Undo wins by removing the marker before the timer fires.
type PendingDeletions struct {
	assets repository.AssetRepository
	pub    Publisher
	logger *zap.Logger
	delay  time.Duration

	mu      sync.Mutex
	markers map[string]DeletionMarker // keyed by unique URL
	timers  map[string]*time.Timer
}

// NewPendingDeletions constructs the undo manager. delay <= 0 uses the default.
func NewPendingDeletions(assets repository.AssetRepository, pub Publisher, logger *zap.Logger, delay time.Duration) *PendingDeletions {
	if delay <= 0 {
		delay = DefaultUndoDelay
	}
	return &PendingDeletions{
		assets:  assets,
		pub:     pub,
		logger:  logger,
		delay:   delay,
		markers: map[string]DeletionMarker{},
		timers:  map[string]*time.Timer{},
	}
}

// Schedule arms the deletion timer for an asset. Scheduling an asset that is
// already pending resets its timer.
func (p *PendingDeletions) Schedule(a model.Asset) DeletionMarker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[a.UniqueURL]; ok {
		t.Stop()
	}
	m := DeletionMarker{Asset: a, ScheduledFor: time.Now().Add(p.delay)}
	p.markers[a.UniqueURL] = m
	p.timers[a.UniqueURL] = time.AfterFunc(p.delay, func() { p.finalize(a.UniqueURL) })
	return m
}

// Undo cancels a pending deletion. Returns false if nothing was pending
// (already finalized or never scheduled).
func (p *PendingDeletions) Undo(uniqueURL string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.timers[uniqueURL]
	if !ok {
		return false
	}
	t.Stop()
	delete(p.timers, uniqueURL)
	delete(p.markers, uniqueURL)
	return true
}

// Pending returns the marker for a URL, if a deletion is still undoable.
func (p *PendingDeletions) Pending(uniqueURL string) (DeletionMarker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markers[uniqueURL]
	return m, ok
}

// finalize deletes the row if the marker still exists. It does not re-check
// provider state: the marker is the single source of truth for the decision.
func (p *PendingDeletions) finalize(uniqueURL string) {
	p.mu.Lock()
	m, ok := p.markers[uniqueURL]
	delete(p.markers, uniqueURL)
	delete(p.timers, uniqueURL)
	p.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.assets.Delete(ctx, m.Asset.Type, m.Asset.ID); err != nil {
		p.logger.Error("finalize deletion",
			zap.String("url", uniqueURL), zap.Error(err))
		return
	}
	topic := Topic(m.Asset.Type, m.Asset.ID)
	change := model.RowChange{
		Table: string(m.Asset.Type) + "s", Kind: model.ChangeDelete, RowID: m.Asset.ID.String(),
	}
	if err := p.pub.PublishChange(ctx, topic, change); err != nil {
		p.logger.Warn("publish deletion", zap.String("topic", topic), zap.Error(err))
	}
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/model"
)

func TestPendingDeletions_FinalizesAfterDelay(t *testing.T) {
	assets := newFakeAssets()
	pub := &capturePublisher{}
	pd := NewPendingDeletions(assets, pub, zap.NewNop(), 20*time.Millisecond)

	board := assets.add(anonBoard("doomed"))
	pd.Schedule(*board)

	_, ok := pd.Pending("doomed")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, exists := assets.byID[board.ID]
		return !exists
	}, time.Second, 5*time.Millisecond)

	_, ok = pd.Pending("doomed")
	require.False(t, ok)

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.changes) == 1 && pub.changes[0].Kind == model.ChangeDelete
	}, time.Second, 5*time.Millisecond)
}

func TestPendingDeletions_UndoCancels(t *testing.T) {
	assets := newFakeAssets()
	pd := NewPendingDeletions(assets, &capturePublisher{}, zap.NewNop(), 30*time.Millisecond)

	board := assets.add(anonBoard("saved"))
	pd.Schedule(*board)
	require.True(t, pd.Undo("saved"))

	time.Sleep(80 * time.Millisecond)
	_, exists := assets.byID[board.ID]
	require.True(t, exists, "undone deletion must not finalize")
}

func TestPendingDeletions_UndoAfterFinalizeReturnsFalse(t *testing.T) {
	assets := newFakeAssets()
	pd := NewPendingDeletions(assets, &capturePublisher{}, zap.NewNop(), 10*time.Millisecond)

	board := assets.add(anonBoard("late"))
	pd.Schedule(*board)

	require.Eventually(t, func() bool {
		_, exists := assets.byID[board.ID]
		return !exists
	}, time.Second, 5*time.Millisecond)

	require.False(t, pd.Undo("late"))
}

func TestPendingDeletions_RescheduleResetsTimer(t *testing.T) {
	assets := newFakeAssets()
	pd := NewPendingDeletions(assets, &capturePublisher{}, zap.NewNop(), 50*time.Millisecond)

	board := assets.add(anonBoard("again"))
	pd.Schedule(*board)
	time.Sleep(25 * time.Millisecond)
	pd.Schedule(*board)
	time.Sleep(35 * time.Millisecond)

	// Original timer would have fired by now; the reset one has not.
	_, exists := assets.byID[board.ID]
	require.True(t, exists)
}

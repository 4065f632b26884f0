package progress

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/abhisek/investory/internal/store"
)

// snapshotsKept is how many progress snapshots are retained for stats.
const snapshotsKept = 100

// SlotPersister saves the state into the progress slot and records a
// summary snapshot whenever the summary changes.
type SlotPersister struct {
	slots     store.SlotRepo
	snapshots store.SnapshotRepo

	mu   sync.Mutex
	last *store.SnapshotData
}

// NewSlotPersister creates a persister. snapshots may be nil.
func NewSlotPersister(slots store.SlotRepo, snapshots store.SnapshotRepo) *SlotPersister {
	return &SlotPersister{slots: slots, snapshots: snapshots}
}

// SaveProgress implements Persister.
func (p *SlotPersister) SaveProgress(ctx context.Context, st State) error {
	if err := p.slots.Put(ctx, store.ProgressSlot, st); err != nil {
		return err
	}
	if p.snapshots == nil {
		return nil
	}

	summary := Summarize(st)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && sameSummary(*p.last, summary) {
		return nil
	}
	if err := p.snapshots.Save(ctx, &store.Snapshot{Data: summary}); err != nil {
		return err
	}
	p.last = &summary
	if err := p.snapshots.Prune(ctx, snapshotsKept); err != nil {
		return err
	}
	return nil
}

// Load reads the persisted state. It returns a fresh state if the slot is
// empty.
func Load(ctx context.Context, slots store.SlotRepo) (State, error) {
	st := NewState()
	found, err := slots.Get(ctx, store.ProgressSlot, &st)
	if err != nil {
		return NewState(), fmt.Errorf("load progress: %w", err)
	}
	if !found {
		return NewState(), nil
	}
	st.normalize()
	return st, nil
}

// Summarize reduces the state to the figures kept in snapshots.
func Summarize(st State) store.SnapshotData {
	var completed []int
	for id, lp := range st.Levels {
		if lp != nil && lp.IsCompleted {
			completed = append(completed, id)
		}
	}
	slices.Sort(completed)
	return store.SnapshotData{
		Version:         1,
		CurrentLevel:    st.CurrentLevel,
		TotalBalance:    st.TotalBalance,
		CompletedLevels: completed,
		BadgeCount:      len(st.Badges),
	}
}

func sameSummary(a, b store.SnapshotData) bool {
	return a.CurrentLevel == b.CurrentLevel &&
		a.TotalBalance == b.TotalBalance &&
		a.BadgeCount == b.BadgeCount &&
		slices.Equal(a.CompletedLevels, b.CompletedLevels)
}

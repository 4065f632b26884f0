package progress

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/quiz"
	"github.com/abhisek/investory/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSlotPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	p := NewSlotPersister(db.SlotRepo(), db.SnapshotRepo())

	s := newTestStore(WithPersister(p))
	s.UpdateLevelTasks(1, []int{1, 2, 3})
	s.SubmitQuiz(1, quiz.Answers{1: 1, 2: 0}, 6, 7)
	s.CompleteLevel(1, 10000, Badge{BadgeName: "Market Rookie"})
	s.SetError("not persisted")
	s.WaitPersisted()

	st, err := Load(ctx, db.SlotRepo())
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentLevel)
	assert.Equal(t, 10000, st.TotalBalance)
	assert.Equal(t, TaskSet{1, 2, 3}, st.Level(1).TasksCompleted)
	assert.Equal(t, quiz.Answers{1: 1, 2: 0}, st.Level(1).QuizAnswers)
	assert.True(t, st.Level(1).IsCompleted)
	require.Len(t, st.Badges, 1)

	restored := newTestStore(WithState(st))
	assert.Equal(t, s.Snapshot().Level(1), restored.Level(1))
}

func TestSlotPersister_SnapshotsOnlyOnSummaryChange(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	p := NewSlotPersister(db.SlotRepo(), db.SnapshotRepo())

	st := NewState()
	require.NoError(t, p.SaveProgress(ctx, st))
	st.Levels[1] = &LevelProgress{TasksCompleted: TaskSet{1}}
	require.NoError(t, p.SaveProgress(ctx, st))
	st.TotalBalance = 500
	require.NoError(t, p.SaveProgress(ctx, st))

	snaps, err := db.SnapshotRepo().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 500, snaps[0].Data.TotalBalance)
}

func TestLoad_EmptySlot(t *testing.T) {
	db := openStore(t)
	st, err := Load(context.Background(), db.SlotRepo())
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentLevel)
	assert.NotNil(t, st.Levels)
}

func TestSummarize(t *testing.T) {
	st := NewState()
	st.CurrentLevel = 3
	st.Levels[2] = &LevelProgress{IsCompleted: true}
	st.Levels[1] = &LevelProgress{IsCompleted: true}
	st.Levels[3] = &LevelProgress{}
	st.Badges = []Badge{{LevelID: 1}, {LevelID: 2}}

	sum := Summarize(st)
	assert.Equal(t, []int{1, 2}, sum.CompletedLevels)
	assert.Equal(t, 2, sum.BadgeCount)
	assert.Equal(t, 3, sum.CurrentLevel)
}

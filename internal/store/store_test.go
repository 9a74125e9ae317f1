package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voicetask-service/internal/model"
	"voicetask-service/internal/repository"
)

func newTestStore(t *testing.T) (*Store, *repository.MemoryTaskRepository) {
	t.Helper()
	repo := repository.NewMemoryTaskRepository()
	return NewStore(repo, zap.NewNop()), repo
}

// flakyRepo fails reads on demand while keeping the underlying blob intact,
// like a store backend that is momentarily unreachable.
type flakyRepo struct {
	*repository.MemoryTaskRepository
	failNextLoad bool
}

func (r *flakyRepo) Load(ctx context.Context) ([]byte, bool, error) {
	if r.failNextLoad {
		r.failNextLoad = false
		return nil, false, errors.New("i/o timeout")
	}
	return r.MemoryTaskRepository.Load(ctx)
}

func TestLoad_EmptyWhenNoBlob(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.Load(context.Background()))
	assert.Empty(t, st.All())
}

func TestLoad_MalformedBlobRecoversSilently(t *testing.T) {
	st, repo := newTestStore(t)
	repo.Seed([]byte(`{"this is": not valid json`))

	require.NoError(t, st.Load(context.Background()))
	assert.Empty(t, st.All())
}

func TestLoad_ReadErrorDoesNotDestroyBlob(t *testing.T) {
	ctx := context.Background()

	// A healthy two-task blob already persisted by an earlier run.
	mem := repository.NewMemoryTaskRepository()
	seed := NewStore(mem, zap.NewNop())
	seed.Create(ctx, "existing one", "b", time.Now().Add(24*time.Hour))
	seed.Create(ctx, "existing two", "b", time.Now().Add(48*time.Hour))

	repo := &flakyRepo{MemoryTaskRepository: mem, failNextLoad: true}

	st := NewStore(repo, zap.NewNop())
	require.Error(t, st.Load(ctx), "a transient read error must surface, not recover silently")

	// Even a mutation slipping in after the failed load must not rewrite the
	// blob with a near-empty list.
	st.Create(ctx, "new after outage", "b", time.Now().Add(time.Hour))

	data, ok, err := repo.MemoryTaskRepository.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	var persisted []model.Task
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 2, "the pre-existing tasks must survive the outage")

	// Once a read succeeds the store is usable again.
	require.NoError(t, st.Load(ctx))
	assert.Len(t, st.All(), 2)
	st.Create(ctx, "after recovery", "b", time.Now().Add(time.Hour))

	data, _, err = repo.MemoryTaskRepository.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 3)
}

func TestCreate_PrependsAndPersists(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()

	first := st.Create(ctx, "first", "body one", time.Now().Add(48*time.Hour))
	second := st.Create(ctx, "second", "body two", time.Now().Add(24*time.Hour))

	all := st.All()
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	data, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	var persisted []model.Task
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 2)
}

func TestPersistenceRoundTrip(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 5, 20, 23, 59, 59, 0, time.UTC)
	st.Create(ctx, "exam prep", "review lecture notes", due)
	st.Create(ctx, "essay", "2000 words on ethics", due.Add(72*time.Hour))
	st.Toggle(ctx, st.All()[0].ID)

	before := st.All()

	// Fresh store over the same repository must yield an equal list.
	st2 := NewStore(repo, zap.NewNop())
	require.NoError(t, st2.Load(ctx))
	after := st2.All()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Heading, after[i].Heading)
		assert.Equal(t, before[i].Body, after[i].Body)
		assert.True(t, before[i].DueDate.Equal(after[i].DueDate))
		assert.True(t, before[i].CreatedAt.Equal(after[i].CreatedAt))
		assert.Equal(t, before[i].Completed, after[i].Completed)
		for _, slot := range model.Slots {
			assert.True(t, before[i].Reminders.Get(slot).Time.Equal(after[i].Reminders.Get(slot).Time))
			assert.Equal(t, before[i].Reminders.Get(slot).Notified, after[i].Reminders.Get(slot).Notified)
		}
	}
}

func TestToggle_FlipsCompleted(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	task := st.Create(ctx, "t", "b", time.Now().Add(time.Hour))

	assert.True(t, st.Toggle(ctx, task.ID))
	assert.True(t, st.All()[0].Completed)

	assert.True(t, st.Toggle(ctx, task.ID))
	assert.False(t, st.All()[0].Completed)
}

func TestMutationOnUnknownID_IsNoOp(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()

	st.Create(ctx, "t", "b", time.Now().Add(time.Hour))
	before, _, err := repo.Load(ctx)
	require.NoError(t, err)

	assert.False(t, st.Toggle(ctx, "no-such-id"))
	assert.False(t, st.Delete(ctx, "no-such-id"))
	assert.False(t, st.MarkNotified(ctx, "no-such-id", model.SlotOneDay))

	after, _, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "unknown-id mutations must leave the blob byte-for-byte unchanged")
}

func TestDelete_RemovesTask(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	a := st.Create(ctx, "a", "b", time.Now().Add(time.Hour))
	b := st.Create(ctx, "b", "b", time.Now().Add(2*time.Hour))

	assert.True(t, st.Delete(ctx, a.ID))
	all := st.All()
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestMarkNotified_SetsSlot(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	task := st.Create(ctx, "t", "b", time.Now().Add(48*time.Hour))
	assert.True(t, st.MarkNotified(ctx, task.ID, model.SlotSixHours))

	got := st.All()[0]
	assert.True(t, got.Reminders.SixHours.Notified)
	assert.False(t, got.Reminders.OneDay.Notified)
	assert.False(t, got.Reminders.OneHour.Notified)
}

func TestActive_SortedByDueDateAscending(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	late := st.Create(ctx, "late", "b", now.Add(72*time.Hour))
	soon := st.Create(ctx, "soon", "b", now.Add(time.Hour))
	mid := st.Create(ctx, "mid", "b", now.Add(24*time.Hour))
	done := st.Create(ctx, "done", "b", now.Add(time.Minute))
	st.Toggle(ctx, done.ID)

	active := st.Active()
	require.Len(t, active, 3)
	assert.Equal(t, soon.ID, active[0].ID)
	assert.Equal(t, mid.ID, active[1].ID)
	assert.Equal(t, late.ID, active[2].ID)
}

func TestHistory_SortedByDueDateDescending(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	old := st.Create(ctx, "old", "b", now.Add(-48*time.Hour))
	recent := st.Create(ctx, "recent", "b", now.Add(-time.Hour))
	st.Toggle(ctx, old.ID)
	st.Toggle(ctx, recent.ID)
	st.Create(ctx, "active", "b", now.Add(time.Hour))

	history := st.History()
	require.Len(t, history, 2)
	assert.Equal(t, recent.ID, history[0].ID)
	assert.Equal(t, old.ID, history[1].ID)
}

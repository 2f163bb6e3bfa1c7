package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
)

type fakeRepo struct {
	mu      sync.Mutex
	tasks   map[string]entity.Task
	seq     int
	failOn  map[string]error
	listErr map[bool]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:   make(map[string]entity.Task),
		failOn:  make(map[string]error),
		listErr: make(map[bool]error),
	}
}

func (r *fakeRepo) Create(_ context.Context, task entity.Task) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["create"]; err != nil {
		return entity.Task{}, &entity.WriteError{Op: "create", Err: err}
	}
	r.seq++
	task.ID = fmt.Sprintf("task-%d", r.seq)
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeRepo) Get(_ context.Context, ownerID, id string) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return entity.Task{}, entity.ErrTaskNotFound
	}
	return t, nil
}

func (r *fakeRepo) ListByOwner(_ context.Context, ownerID string, completed bool) ([]entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.listErr[completed]; err != nil {
		return nil, err
	}
	var out []entity.Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Completed == completed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, task entity.Task) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["update"]; err != nil {
		return entity.Task{}, &entity.WriteError{Op: "update", Err: err}
	}
	cur, ok := r.tasks[task.ID]
	if !ok || cur.OwnerID != task.OwnerID {
		return entity.Task{}, entity.ErrTaskNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeRepo) SetCompleted(_ context.Context, ownerID, id string, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["set_completed"]; err != nil {
		return &entity.WriteError{Op: "update", Err: err}
	}
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return entity.ErrTaskNotFound
	}
	t.Completed = completed
	r.tasks[id] = t
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn["delete"]; err != nil {
		return &entity.WriteError{Op: "delete", Err: err}
	}
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return entity.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

type fakeCache struct {
	boards map[string]entity.Board
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{boards: make(map[string]entity.Board)}
}

func (c *fakeCache) GetBoard(_ context.Context, ownerID string) (entity.Board, bool, error) {
	if c.getErr != nil {
		return entity.Board{}, false, c.getErr
	}
	b, ok := c.boards[ownerID]
	return b, ok, nil
}

func (c *fakeCache) SetBoard(_ context.Context, ownerID string, board entity.Board) error {
	c.boards[ownerID] = board
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, ownerID string) error {
	delete(c.boards, ownerID)
	return nil
}

type fakeScheduler struct {
	scheduled []entity.Reminder
	cancelled []string
	err       error
}

func (s *fakeScheduler) Schedule(_ context.Context, r entity.Reminder) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, r)
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, taskID string) error {
	if s.err != nil {
		return s.err
	}
	s.cancelled = append(s.cancelled, taskID)
	return nil
}

type fixture struct {
	uc        *TaskUseCaseImpl
	repo      *fakeRepo
	cache     *fakeCache
	scheduler *fakeScheduler
}

func newFixture() fixture {
	repo, cache, sched := newFakeRepo(), newFakeCache(), &fakeScheduler{}
	uc := NewTaskUseCase(repo, cache, sched)
	uc.now = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }
	uc.location = time.UTC
	return fixture{uc: uc, repo: repo, cache: cache, scheduler: sched}
}

func draft(title string, u entity.Urgency, day int) entity.Draft {
	return entity.Draft{
		Title:     title,
		Urgency:   u,
		DueDate:   entity.NewDate(2024, time.January, day),
		IsFullDay: false,
		StartTime: "09:00",
		EndTime:   "10:00",
	}
}

func titles(tasks []entity.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("  Buy milk ", "", 5))
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, "alice", task.OwnerID)
	assert.Equal(t, entity.UrgencyLow, task.Urgency)
	assert.False(t, task.Completed)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), task.CreatedAt)

	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, entity.Reminder{
		TaskID:  task.ID,
		OwnerID: "alice",
		Title:   "Buy milk",
		DueAt:   time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
	}, f.scheduler.scheduled[0])
}

func TestCreate_DefaultsMissingDueDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", entity.Draft{Title: "no due date", IsFullDay: true})
	require.NoError(t, err)

	assert.Equal(t, entity.NewDate(2024, time.January, 1), task.DueDate)
	assert.Equal(t, entity.NewDate(2024, time.January, 1), f.repo.tasks[task.ID].DueDate)
	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.scheduler.scheduled[0].DueAt)
}

func TestCreate_ValidationRejectedBeforeIO(t *testing.T) {
	f := newFixture()

	_, err := f.uc.Create(context.Background(), "alice", entity.Draft{Title: "", IsFullDay: true})
	assert.ErrorIs(t, err, entity.ErrEmptyTitle)

	_, err = f.uc.Create(context.Background(), "alice", entity.Draft{Title: "Buy milk", EndTime: "10:00"})
	assert.ErrorIs(t, err, entity.ErrMissingTimeRange)

	assert.Empty(t, f.repo.tasks)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCreate_SchedulerFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	f.scheduler.err = errors.New("redis down")

	task, err := f.uc.Create(context.Background(), "alice", draft("Buy milk", entity.UrgencyHigh, 5))

	require.NoError(t, err)
	assert.Contains(t, f.repo.tasks, task.ID)
}

func TestCreate_WriteErrorSurfaced(t *testing.T) {
	f := newFixture()
	f.repo.failOn["create"] = errors.New("permission denied")

	_, err := f.uc.Create(context.Background(), "alice", draft("Buy milk", entity.UrgencyHigh, 5))

	var we *entity.WriteError
	require.ErrorAs(t, err, &we)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestBoard_JoinsAndRanks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	urgent, err := f.uc.Create(ctx, "alice", draft("urgent-0105", entity.UrgencyUrgent, 5))
	require.NoError(t, err)
	_, err = f.uc.Create(ctx, "alice", draft("low-0101", entity.UrgencyLow, 1))
	require.NoError(t, err)
	done, err := f.uc.Create(ctx, "alice", draft("urgent-0101", entity.UrgencyUrgent, 1))
	require.NoError(t, err)
	_, err = f.uc.SetCompletion(ctx, "alice", done.ID, true)
	require.NoError(t, err)
	_, err = f.uc.Create(ctx, "bob", draft("bob-task", entity.UrgencyUrgent, 1))
	require.NoError(t, err)

	board, err := f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	assert.False(t, board.Stale)
	assert.Equal(t, []string{"urgent-0105", "low-0101"}, titles(board.Active))
	assert.Equal(t, []string{"urgent-0101"}, titles(board.Completed))
	assert.Equal(t, urgent.ID, board.Active[0].ID)

	cached, ok := f.cache.boards["alice"]
	require.True(t, ok)
	assert.Equal(t, board, cached)
}

func TestBoard_PartialFailureFallsBackToCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)
	_, err = f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	f.repo.listErr[true] = errors.New("timeout")

	board, err := f.uc.Board(ctx, "alice")
	require.Error(t, err)
	assert.True(t, board.Stale)
	assert.Equal(t, []string{"Buy milk"}, titles(board.Active))
}

func TestBoard_RefreshReplacesOutdatedCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)
	f.cache.boards["alice"] = entity.Board{Active: []entity.Task{}, Completed: []entity.Task{}}

	board, err := f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, board.Active, 1)
	assert.Equal(t, task.ID, board.Active[0].ID)
	assert.Equal(t, board, f.cache.boards["alice"])
}

func TestBoard_FailureWithoutCache(t *testing.T) {
	f := newFixture()
	f.repo.listErr[false] = errors.New("timeout")

	board, err := f.uc.Board(context.Background(), "alice")

	require.Error(t, err)
	assert.False(t, board.Stale)
	assert.Empty(t, board.Active)
}

func TestSetCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)
	_, err = f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	done, err := f.uc.SetCompletion(ctx, "alice", task.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, []string{task.ID}, f.scheduler.cancelled)

	cached := f.cache.boards["alice"]
	assert.Empty(t, cached.Active)
	assert.Equal(t, []string{"Buy milk"}, titles(cached.Completed))

	undone, err := f.uc.SetCompletion(ctx, "alice", task.ID, false)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.Len(t, f.scheduler.scheduled, 1, "un-completing must not reschedule")
	assert.Len(t, f.scheduler.cancelled, 1)
	assert.Equal(t, task, undone)
}

func TestSetCompletion_FailedWriteLeavesCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)
	before, err := f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	f.repo.failOn["set_completed"] = errors.New("unavailable")

	_, err = f.uc.SetCompletion(ctx, "alice", task.ID, true)
	var we *entity.WriteError
	require.ErrorAs(t, err, &we)

	assert.Equal(t, before, f.cache.boards["alice"])
	assert.Empty(t, f.scheduler.cancelled)
	assert.False(t, f.repo.tasks[task.ID].Completed)
}

func TestSetCompletion_SchedulerFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)
	f.scheduler.err = errors.New("redis down")

	done, err := f.uc.SetCompletion(ctx, "alice", task.ID, true)

	require.NoError(t, err)
	assert.True(t, done.Completed)
}

func TestSetCompletion_OtherOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyHigh, 5))
	require.NoError(t, err)

	_, err = f.uc.SetCompletion(ctx, "mallory", task.ID, true)

	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.False(t, f.repo.tasks[task.ID].Completed)
}

func TestUpdate_KeepsDueDateWhenOmitted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)

	updated, err := f.uc.Update(ctx, "alice", task.ID, entity.Draft{Title: "Buy oat milk", IsFullDay: true})
	require.NoError(t, err)

	assert.Equal(t, entity.NewDate(2024, time.January, 5), updated.DueDate)
	assert.Equal(t, "Buy oat milk", updated.Title)
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)

	edited := entity.Draft{Title: "Buy oat milk", Urgency: entity.UrgencyUrgent, DueDate: entity.NewDate(2024, 1, 7), IsFullDay: true, StartTime: "08:00"}
	updated, err := f.uc.Update(ctx, "alice", task.ID, edited)
	require.NoError(t, err)

	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "alice", updated.OwnerID)
	assert.Equal(t, "Buy oat milk", updated.Title)
	assert.True(t, updated.IsFullDay)
	assert.Empty(t, updated.StartTime)

	require.Len(t, f.scheduler.scheduled, 2)
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), f.scheduler.scheduled[1].DueAt)
}

func TestUpdate_CompletedTaskNotRescheduled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)
	_, err = f.uc.SetCompletion(ctx, "alice", task.ID, true)
	require.NoError(t, err)

	updated, err := f.uc.Update(ctx, "alice", task.ID, draft("Buy milk today", entity.UrgencyLow, 5))
	require.NoError(t, err)

	assert.True(t, updated.Completed)
	assert.Len(t, f.scheduler.scheduled, 1)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)

	_, err = f.uc.Update(ctx, "alice", task.ID, entity.Draft{Title: " "})
	assert.ErrorIs(t, err, entity.ErrEmptyTitle)
	assert.Equal(t, "Buy milk", f.repo.tasks[task.ID].Title)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)
	_, err = f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, "alice", task.ID))
	assert.Equal(t, []string{task.ID}, f.scheduler.cancelled)
	assert.Empty(t, f.cache.boards["alice"].Active)

	err = f.uc.Delete(ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Len(t, f.scheduler.cancelled, 1)
}

func TestDelete_FailedWriteLeavesCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)
	before, err := f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	f.repo.failOn["delete"] = errors.New("unavailable")

	require.Error(t, f.uc.Delete(ctx, "alice", task.ID))
	assert.Equal(t, before, f.cache.boards["alice"])
	assert.Empty(t, f.scheduler.cancelled)
}

func TestReconcile_CacheErrorInvalidates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.uc.Create(ctx, "alice", draft("Buy milk", entity.UrgencyLow, 5))
	require.NoError(t, err)
	_, err = f.uc.Board(ctx, "alice")
	require.NoError(t, err)

	f.cache.getErr = errors.New("redis down")
	_, err = f.uc.Create(ctx, "alice", draft("Buy bread", entity.UrgencyLow, 5))
	require.NoError(t, err)

	assert.NotContains(t, f.cache.boards, "alice")
}

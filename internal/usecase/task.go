package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
	"github.com/KarpovAlexandrGo/taskboard/internal/lifecycle"
	"github.com/KarpovAlexandrGo/taskboard/internal/metrics"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

// ErrTaskNotFound is kept here so handlers depend on the use case package only.
var ErrTaskNotFound = entity.ErrTaskNotFound

type TaskUseCase interface {
	Create(ctx context.Context, ownerID string, draft entity.Draft) (entity.Task, error)
	Get(ctx context.Context, ownerID, id string) (entity.Task, error)
	Board(ctx context.Context, ownerID string) (entity.Board, error)
	Update(ctx context.Context, ownerID, id string, draft entity.Draft) (entity.Task, error)
	SetCompletion(ctx context.Context, ownerID, id string, completed bool) (entity.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type TaskRepository interface {
	Create(ctx context.Context, task entity.Task) (entity.Task, error)
	Get(ctx context.Context, ownerID, id string) (entity.Task, error)
	ListByOwner(ctx context.Context, ownerID string, completed bool) ([]entity.Task, error)
	Update(ctx context.Context, task entity.Task) (entity.Task, error)
	SetCompleted(ctx context.Context, ownerID, id string, completed bool) error
	Delete(ctx context.Context, ownerID, id string) error
}

// BoardCache holds the last acknowledged board of each owner.
// GetBoard returns ok=false on a miss.
type BoardCache interface {
	GetBoard(ctx context.Context, ownerID string) (board entity.Board, ok bool, err error)
	SetBoard(ctx context.Context, ownerID string, board entity.Board) error
	Invalidate(ctx context.Context, ownerID string) error
}

type NotificationScheduler interface {
	Schedule(ctx context.Context, reminder entity.Reminder) error
	Cancel(ctx context.Context, taskID string) error
}

type TaskUseCaseImpl struct {
	taskRepo  TaskRepository
	cache     BoardCache
	scheduler NotificationScheduler
	log       *logrus.Logger
	now       func() time.Time
	location  *time.Location
}

func NewTaskUseCase(taskRepo TaskRepository, cache BoardCache, scheduler NotificationScheduler) *TaskUseCaseImpl {
	return &TaskUseCaseImpl{
		taskRepo:  taskRepo,
		cache:     cache,
		scheduler: scheduler,
		log:       logger.Log,
		now:       time.Now,
		location:  time.Local,
	}
}

func (uc *TaskUseCaseImpl) Create(ctx context.Context, ownerID string, draft entity.Draft) (entity.Task, error) {
	log := uc.log.WithFields(logrus.Fields{"owner_id": ownerID, "title": draft.Title})
	log.Info("Starting task creation")

	if err := lifecycle.ValidateForCreation(draft); err != nil {
		log.WithError(err).Warn("Task validation failed")
		metrics.ObserveOperation("create", err)
		return entity.Task{}, err
	}

	now := uc.now()
	draft = lifecycle.DefaultDueDate(draft, entity.DateOf(now.In(uc.location)))
	task := lifecycle.NewTask(ownerID, draft, now)
	created, err := uc.taskRepo.Create(ctx, task)
	metrics.ObserveOperation("create", err)
	if err != nil {
		log.WithError(err).Error("Failed to create task")
		return entity.Task{}, err
	}

	uc.schedule(ctx, created)
	uc.reconcile(ctx, ownerID, func(b entity.Board) entity.Board {
		return lifecycle.WithTask(b, created)
	})

	log.WithField("task_id", created.ID).Info("Task created successfully")
	return created, nil
}

func (uc *TaskUseCaseImpl) Get(ctx context.Context, ownerID, id string) (entity.Task, error) {
	uc.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": id}).Debug("Getting task")
	task, err := uc.taskRepo.Get(ctx, ownerID, id)
	metrics.ObserveOperation("get", err)
	if err != nil {
		return entity.Task{}, err
	}
	return task, nil
}

// Board reads the active and completed tasks concurrently and joins them.
// Both reads must succeed for a fresh board. Otherwise the last cached board
// is returned marked Stale, together with the read error.
func (uc *TaskUseCaseImpl) Board(ctx context.Context, ownerID string) (entity.Board, error) {
	log := uc.log.WithField("owner_id", ownerID)

	var active, completed []entity.Task
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = uc.taskRepo.ListByOwner(gctx, ownerID, false)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = uc.taskRepo.ListByOwner(gctx, ownerID, true)
		return err
	})

	if err := g.Wait(); err != nil {
		metrics.ObserveOperation("board", err)
		log.WithError(err).Error("Failed to read board from store")
		return uc.staleBoard(ctx, ownerID, err)
	}
	metrics.ObserveOperation("board", nil)
	metrics.BoardReads.WithLabelValues("store").Inc()

	// A write acknowledged while the reads were in flight may be missing from
	// this snapshot until the next refresh. Only the stale fallback reads it.
	board := lifecycle.Partition(append(active, completed...))
	if err := uc.cache.SetBoard(ctx, ownerID, board); err != nil {
		log.WithError(err).Warn("Failed to cache board")
	}

	log.WithFields(logrus.Fields{
		"active":    len(board.Active),
		"completed": len(board.Completed),
	}).Info("Board loaded")
	return board, nil
}

func (uc *TaskUseCaseImpl) staleBoard(ctx context.Context, ownerID string, readErr error) (entity.Board, error) {
	readErr = fmt.Errorf("failed to load board: %w", readErr)

	board, ok, err := uc.cache.GetBoard(ctx, ownerID)
	if err != nil {
		uc.log.WithError(err).WithField("owner_id", ownerID).Warn("Failed to read cached board")
		return entity.Board{}, readErr
	}
	if !ok {
		return entity.Board{}, readErr
	}

	metrics.BoardReads.WithLabelValues("stale_cache").Inc()
	board.Stale = true
	return board, readErr
}

func (uc *TaskUseCaseImpl) Update(ctx context.Context, ownerID, id string, draft entity.Draft) (entity.Task, error) {
	log := uc.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": id})
	log.Info("Starting task update")

	if err := lifecycle.ValidateForCreation(draft); err != nil {
		log.WithError(err).Warn("Validation failed during task update")
		metrics.ObserveOperation("update", err)
		return entity.Task{}, err
	}

	current, err := uc.taskRepo.Get(ctx, ownerID, id)
	if err != nil {
		metrics.ObserveOperation("update", err)
		return entity.Task{}, err
	}

	draft = lifecycle.DefaultDueDate(draft, current.DueDate)
	updated, err := uc.taskRepo.Update(ctx, lifecycle.Apply(current, draft))
	metrics.ObserveOperation("update", err)
	if err != nil {
		log.WithError(err).Error("Failed to update task in repository")
		return entity.Task{}, err
	}

	if !updated.Completed {
		uc.schedule(ctx, updated)
	}
	uc.reconcile(ctx, ownerID, func(b entity.Board) entity.Board {
		return lifecycle.WithTask(b, updated)
	})

	log.Info("Task updated successfully")
	return updated, nil
}

// SetCompletion persists the completion flag first and only then cancels the
// reminder and updates the cached board. Un-completing does not reschedule.
func (uc *TaskUseCaseImpl) SetCompletion(ctx context.Context, ownerID, id string, completed bool) (entity.Task, error) {
	log := uc.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": id, "completed": completed})

	current, err := uc.taskRepo.Get(ctx, ownerID, id)
	if err != nil {
		metrics.ObserveOperation("set_completion", err)
		return entity.Task{}, err
	}

	next := lifecycle.ToggleCompletion(current, completed)
	err = uc.taskRepo.SetCompleted(ctx, ownerID, id, completed)
	metrics.ObserveOperation("set_completion", err)
	if err != nil {
		log.WithError(err).Error("Failed to update task completion")
		return entity.Task{}, err
	}

	if completed {
		uc.cancel(ctx, id)
	}
	uc.reconcile(ctx, ownerID, func(b entity.Board) entity.Board {
		return lifecycle.WithCompletion(b, id, completed)
	})

	log.Info("Task completion updated")
	return next, nil
}

func (uc *TaskUseCaseImpl) Delete(ctx context.Context, ownerID, id string) error {
	log := uc.log.WithFields(logrus.Fields{"owner_id": ownerID, "task_id": id})
	log.Info("Deleting task")

	err := uc.taskRepo.Delete(ctx, ownerID, id)
	metrics.ObserveOperation("delete", err)
	if err != nil {
		if errors.Is(err, entity.ErrTaskNotFound) {
			log.Warn("Task not found for deletion")
		} else {
			log.WithError(err).Error("Failed to delete task from repository")
		}
		return err
	}

	uc.cancel(ctx, id)
	uc.reconcile(ctx, ownerID, func(b entity.Board) entity.Board {
		return lifecycle.Without(b, id)
	})

	log.Info("Task deleted successfully")
	return nil
}

func (uc *TaskUseCaseImpl) schedule(ctx context.Context, task entity.Task) {
	err := uc.scheduler.Schedule(ctx, lifecycle.ReminderFor(task, uc.location))
	metrics.ObserveReminder("schedule", err)
	if err != nil {
		uc.log.WithError(err).WithField("task_id", task.ID).Warn("Failed to schedule reminder")
	}
}

func (uc *TaskUseCaseImpl) cancel(ctx context.Context, taskID string) {
	err := uc.scheduler.Cancel(ctx, taskID)
	metrics.ObserveReminder("cancel", err)
	if err != nil {
		uc.log.WithError(err).WithField("task_id", taskID).Warn("Failed to cancel reminder")
	}
}

// reconcile applies an acknowledged write to the cached board. A cache miss
// is left alone; a failed cache update drops the entry so the next read goes
// to the store. Get-then-set is not atomic, so a concurrent Board refresh
// may win; the next successful Board read repairs the entry.
func (uc *TaskUseCaseImpl) reconcile(ctx context.Context, ownerID string, apply func(entity.Board) entity.Board) {
	log := uc.log.WithField("owner_id", ownerID)

	board, ok, err := uc.cache.GetBoard(ctx, ownerID)
	if err == nil && !ok {
		return
	}
	if err == nil {
		err = uc.cache.SetBoard(ctx, ownerID, apply(board))
	}
	if err == nil {
		return
	}

	log.WithError(err).Warn("Failed to update cached board")
	if err := uc.cache.Invalidate(ctx, ownerID); err != nil {
		log.WithError(err).Error("Failed to invalidate cache")
	}
}

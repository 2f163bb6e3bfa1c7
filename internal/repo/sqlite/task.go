package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
	"github.com/KarpovAlexandrGo/taskboard/internal/metrics"
)

const selectTask = `SELECT id, owner_id, title, description, urgency, due_date,
	is_full_day, start_time, end_time, completed, created_at FROM tasks`

type taskRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Urgency     string         `db:"urgency"`
	DueDate     string         `db:"due_date"`
	IsFullDay   bool           `db:"is_full_day"`
	StartTime   sql.NullString `db:"start_time"`
	EndTime     sql.NullString `db:"end_time"`
	Completed   bool           `db:"completed"`
	CreatedAt   string         `db:"created_at"`
}

func (row taskRow) toEntity() (entity.Task, error) {
	due, err := entity.ParseDate(row.DueDate)
	if err != nil {
		return entity.Task{}, fmt.Errorf("task %s: %w", row.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return entity.Task{}, fmt.Errorf("task %s: parsing created_at: %w", row.ID, err)
	}
	return entity.Task{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		Urgency:     entity.Urgency(row.Urgency).OrDefault(),
		DueDate:     due,
		IsFullDay:   row.IsFullDay,
		StartTime:   row.StartTime.String,
		EndTime:     row.EndTime.String,
		Completed:   row.Completed,
		CreatedAt:   created,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *TaskRepository) Create(ctx context.Context, task entity.Task) (entity.Task, error) {
	defer metrics.TimeStore("create")()

	task.ID = uuid.New().String()
	task.CreatedAt = task.CreatedAt.UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, owner_id, title, description, urgency, due_date,
			is_full_day, start_time, end_time, completed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OwnerID, task.Title, task.Description, string(task.Urgency), task.DueDate.String(),
		task.IsFullDay, nullString(task.StartTime), nullString(task.EndTime), task.Completed,
		task.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":   "Create",
			"task_id":  task.ID,
			"owner_id": task.OwnerID,
		}).WithError(err).Error("Failed to create task")
		return entity.Task{}, &entity.WriteError{Op: "create", Err: err}
	}
	return task, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id string) (entity.Task, error) {
	defer metrics.TimeStore("get")()

	var row taskRow
	err := r.db.GetContext(ctx, &row, selectTask+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Task{}, entity.ErrTaskNotFound
	}
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":  "Get",
			"task_id": id,
		}).WithError(err).Error("Failed to get task")
		return entity.Task{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	return row.toEntity()
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, completed bool) ([]entity.Task, error) {
	defer metrics.TimeStore("list")()

	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, selectTask+` WHERE owner_id = ? AND completed = ?`, ownerID, completed)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":   "ListByOwner",
			"owner_id": ownerID,
		}).WithError(err).Error("Failed to list tasks")
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	tasks := make([]entity.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *TaskRepository) Update(ctx context.Context, task entity.Task) (entity.Task, error) {
	defer metrics.TimeStore("update")()

	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, urgency = ?, due_date = ?,
			is_full_day = ?, start_time = ?, end_time = ?
		WHERE id = ? AND owner_id = ?`,
		task.Title, task.Description, string(task.Urgency), task.DueDate.String(),
		task.IsFullDay, nullString(task.StartTime), nullString(task.EndTime),
		task.ID, task.OwnerID,
	)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":  "Update",
			"task_id": task.ID,
		}).WithError(err).Error("Failed to update task")
		return entity.Task{}, &entity.WriteError{Op: "update", Err: err}
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entity.Task{}, entity.ErrTaskNotFound
	}
	return r.Get(ctx, task.OwnerID, task.ID)
}

func (r *TaskRepository) SetCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	defer metrics.TimeStore("set_completed")()

	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET completed = ? WHERE id = ? AND owner_id = ?`, completed, id, ownerID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":  "SetCompleted",
			"task_id": id,
		}).WithError(err).Error("Failed to update task completion")
		return &entity.WriteError{Op: "update", Err: err}
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entity.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	defer metrics.TimeStore("delete")()

	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":  "Delete",
			"task_id": id,
		}).WithError(err).Error("Failed to delete task")
		return &entity.WriteError{Op: "delete", Err: err}
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return entity.ErrTaskNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
	"github.com/KarpovAlexandrGo/taskboard/internal/metrics"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

const queryTimeout = 5 * time.Second

const taskColumns = `id::text, owner_id, title, description, urgency, due_date,
	is_full_day, start_time, end_time, completed, created_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *logrus.Logger
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger.Log,
	}
}

func (r *TaskRepository) Create(ctx context.Context, task entity.Task) (entity.Task, error) {
	defer metrics.TimeStore("create")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO tasks (id, owner_id, title, description, urgency, due_date,
			is_full_day, start_time, end_time, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + taskColumns

	id := uuid.New()
	created, err := scanTask(r.db.QueryRow(ctx, query,
		id,
		task.OwnerID,
		task.Title,
		task.Description,
		string(task.Urgency),
		task.DueDate.Time,
		task.IsFullDay,
		nullable(task.StartTime),
		nullable(task.EndTime),
		task.Completed,
		task.CreatedAt,
	))
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":   "Create",
			"task_id":  id.String(),
			"owner_id": task.OwnerID,
		}).WithError(err).Error("Failed to create task")
		return entity.Task{}, &entity.WriteError{Op: "create", Err: err}
	}

	return created, nil
}

func (r *TaskRepository) Get(ctx context.Context, ownerID, id string) (entity.Task, error) {
	defer metrics.TimeStore("get")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	parsedID, ok := r.parseID("Get", id)
	if !ok {
		return entity.Task{}, entity.ErrTaskNotFound
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`

	task, err := scanTask(r.db.QueryRow(ctx, query, parsedID, ownerID))
	if err != nil {
		fields := logrus.Fields{"method": "Get", "task_id": id, "owner_id": ownerID}
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithFields(fields).Warn("Task not found")
			return entity.Task{}, entity.ErrTaskNotFound
		}
		r.logger.WithFields(fields).WithError(err).Error("Failed to get task")
		return entity.Task{}, err
	}

	return task, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, completed bool) ([]entity.Task, error) {
	defer metrics.TimeStore("list")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND completed = $2`

	fields := logrus.Fields{"method": "ListByOwner", "owner_id": ownerID, "completed": completed}
	rows, err := r.db.Query(ctx, query, ownerID, completed)
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Failed to list tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := []entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			r.logger.WithFields(fields).WithError(err).Error("Failed to scan task row")
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Error after scanning rows")
		return nil, err
	}

	return tasks, nil
}

// Update replaces the editable fields. ID, owner, creation time and
// completion are never written here.
func (r *TaskRepository) Update(ctx context.Context, task entity.Task) (entity.Task, error) {
	defer metrics.TimeStore("update")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	parsedID, ok := r.parseID("Update", task.ID)
	if !ok {
		return entity.Task{}, entity.ErrTaskNotFound
	}

	query := `
		UPDATE tasks
		SET title = $3, description = $4, urgency = $5, due_date = $6,
			is_full_day = $7, start_time = $8, end_time = $9
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + taskColumns

	updated, err := scanTask(r.db.QueryRow(ctx, query,
		parsedID,
		task.OwnerID,
		task.Title,
		task.Description,
		string(task.Urgency),
		task.DueDate.Time,
		task.IsFullDay,
		nullable(task.StartTime),
		nullable(task.EndTime),
	))
	if err != nil {
		fields := logrus.Fields{"method": "Update", "task_id": task.ID, "owner_id": task.OwnerID}
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WithFields(fields).Warn("Task not found for update")
			return entity.Task{}, entity.ErrTaskNotFound
		}
		r.logger.WithFields(fields).WithError(err).Error("Failed to update task")
		return entity.Task{}, &entity.WriteError{Op: "update", Err: err}
	}

	return updated, nil
}

func (r *TaskRepository) SetCompleted(ctx context.Context, ownerID, id string, completed bool) error {
	defer metrics.TimeStore("set_completed")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	parsedID, ok := r.parseID("SetCompleted", id)
	if !ok {
		return entity.ErrTaskNotFound
	}

	fields := logrus.Fields{"method": "SetCompleted", "task_id": id, "owner_id": ownerID}
	result, err := r.db.Exec(ctx, `UPDATE tasks SET completed = $3 WHERE id = $1 AND owner_id = $2`,
		parsedID, ownerID, completed)
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Failed to update task completion")
		return &entity.WriteError{Op: "update", Err: err}
	}

	if result.RowsAffected() == 0 {
		r.logger.WithFields(fields).Warn("Task not found for completion update")
		return entity.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	defer metrics.TimeStore("delete")()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	parsedID, ok := r.parseID("Delete", id)
	if !ok {
		return entity.ErrTaskNotFound
	}

	fields := logrus.Fields{"method": "Delete", "task_id": id, "owner_id": ownerID}
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, parsedID, ownerID)
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Failed to delete task")
		return &entity.WriteError{Op: "delete", Err: err}
	}

	if result.RowsAffected() == 0 {
		r.logger.WithFields(fields).Warn("Task not found for deletion")
		return entity.ErrTaskNotFound
	}

	return nil
}

// parseID rejects malformed ids up front; such an id cannot exist in the table.
func (r *TaskRepository) parseID(method, id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"method":  method,
			"task_id": id,
		}).WithError(err).Warn("Invalid task ID format")
		return uuid.Nil, false
	}
	return parsed, true
}

func scanTask(row pgx.Row) (entity.Task, error) {
	var (
		task               entity.Task
		urgency            string
		dueDate            time.Time
		startTime, endTime *string
	)
	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&urgency,
		&dueDate,
		&task.IsFullDay,
		&startTime,
		&endTime,
		&task.Completed,
		&task.CreatedAt,
	)
	if err != nil {
		return entity.Task{}, err
	}

	task.Urgency = entity.Urgency(urgency).OrDefault()
	task.DueDate = entity.DateOf(dueDate)
	if startTime != nil {
		task.StartTime = *startTime
	}
	if endTime != nil {
		task.EndTime = *endTime
	}
	return task, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package lifecycle

import (
	"strings"
	"time"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
)

// ToggleCompletion returns a copy of task with only Completed changed.
//
// When completed is true the caller owes a reminder cancellation for the task.
// Un-completing never reschedules a reminder.
func ToggleCompletion(task entity.Task, completed bool) entity.Task {
	task.Completed = completed
	return task
}

// ValidateForCreation checks a draft before it is sent to the store.
// End time is not required to follow start time.
func ValidateForCreation(d entity.Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return entity.ErrEmptyTitle
	}
	if d.IsFullDay {
		return nil
	}
	if strings.TrimSpace(d.StartTime) == "" || strings.TrimSpace(d.EndTime) == "" {
		return entity.ErrMissingTimeRange
	}
	if _, _, err := entity.ParseClock(strings.TrimSpace(d.StartTime)); err != nil {
		return err
	}
	if _, _, err := entity.ParseClock(strings.TrimSpace(d.EndTime)); err != nil {
		return err
	}
	return nil
}

// DefaultDueDate fills in fallback when d carries no due date.
func DefaultDueDate(d entity.Draft, fallback entity.Date) entity.Draft {
	if d.DueDate.IsZero() {
		d.DueDate = fallback
	}
	return d
}

// NewTask builds an incomplete task for owner from a validated draft.
// The ID is left empty for the store to assign.
func NewTask(ownerID string, d entity.Draft, now time.Time) entity.Task {
	task := Apply(entity.Task{OwnerID: ownerID}, d)
	task.Completed = false
	task.CreatedAt = now
	return task
}

// Apply replaces the editable fields of task with those of d, leaving
// ID, OwnerID, CreatedAt and Completed untouched.
func Apply(task entity.Task, d entity.Draft) entity.Task {
	task.Title = strings.TrimSpace(d.Title)
	task.Description = strings.TrimSpace(d.Description)
	task.Urgency = d.Urgency.OrDefault()
	task.DueDate = d.DueDate
	task.IsFullDay = d.IsFullDay
	if d.IsFullDay {
		task.StartTime, task.EndTime = "", ""
	} else {
		task.StartTime = strings.TrimSpace(d.StartTime)
		task.EndTime = strings.TrimSpace(d.EndTime)
	}
	return task
}

// IsOverdue reports whether an incomplete task is past its deadline at now.
// Full-day tasks expire at the end of the due day; timed tasks at EndTime.
func IsOverdue(task entity.Task, now time.Time) bool {
	if task.Completed {
		return false
	}
	return now.After(deadline(task, now.Location()))
}

func deadline(task entity.Task, loc *time.Location) time.Time {
	endOfDay := task.DueDate.At(0, 0, loc).AddDate(0, 0, 1)
	if task.IsFullDay || task.EndTime == "" {
		return endOfDay
	}
	h, m, err := entity.ParseClock(task.EndTime)
	if err != nil {
		return endOfDay
	}
	return task.DueDate.At(h, m, loc)
}

// ReminderAt is when the reminder for task should fire, in loc.
func ReminderAt(task entity.Task, loc *time.Location) time.Time {
	if !task.IsFullDay && task.StartTime != "" {
		if h, m, err := entity.ParseClock(task.StartTime); err == nil {
			return task.DueDate.At(h, m, loc)
		}
	}
	return task.DueDate.At(0, 0, loc)
}

// ReminderFor builds the scheduler request for task.
func ReminderFor(task entity.Task, loc *time.Location) entity.Reminder {
	return entity.Reminder{
		TaskID:  task.ID,
		OwnerID: task.OwnerID,
		Title:   task.Title,
		DueAt:   ReminderAt(task, loc),
	}
}

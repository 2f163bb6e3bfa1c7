package entity

import (
	"time"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Rank orders urgencies from most to least pressing: urgent=0 ... low=3.
// Unknown values rank as low.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyUrgent:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	default:
		return 3
	}
}

// OrDefault returns u if it is a known urgency and UrgencyLow otherwise.
func (u Urgency) OrDefault() Urgency {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return u
	default:
		return UrgencyLow
	}
}

type Task struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Urgency     Urgency   `json:"urgency"`
	DueDate     Date      `json:"due_date" swaggertype:"string" example:"2024-01-05"`
	IsFullDay   bool      `json:"is_full_day"`
	StartTime   string    `json:"start_time,omitempty" example:"09:00"`
	EndTime     string    `json:"end_time,omitempty" example:"10:30"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Draft carries the user-editable fields of a task.
type Draft struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Urgency     Urgency `json:"urgency"`
	DueDate     Date    `json:"due_date" swaggertype:"string" example:"2024-01-05"`
	IsFullDay   bool    `json:"is_full_day"`
	StartTime   string  `json:"start_time,omitempty" example:"09:00"`
	EndTime     string  `json:"end_time,omitempty" example:"10:30"`
}

// Board is the display shape of an owner's tasks.
type Board struct {
	Active    []Task `json:"active"`
	Completed []Task `json:"completed"`
	Stale     bool   `json:"stale"`
}

// Reminder is a pending notification for a task.
type Reminder struct {
	TaskID  string    `json:"task_id"`
	OwnerID string    `json:"owner_id"`
	Title   string    `json:"title"`
	DueAt   time.Time `json:"due_at"`
}

package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
	"github.com/KarpovAlexandrGo/taskboard/internal/metrics"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

const claimBatch = 100

type claimer interface {
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]entity.Reminder, error)
}

// Sink receives reminders once they are due.
type Sink func(ctx context.Context, r entity.Reminder)

// LogSink writes due reminders to the application log.
func LogSink(_ context.Context, r entity.Reminder) {
	logger.Log.WithFields(logrus.Fields{
		"task_id":  r.TaskID,
		"owner_id": r.OwnerID,
		"title":    r.Title,
		"due_at":   r.DueAt,
	}).Info("Reminder due")
}

// Dispatcher polls for due reminders and hands them to a Sink.
type Dispatcher struct {
	source   claimer
	sink     Sink
	interval time.Duration
	now      func() time.Time
}

func NewDispatcher(source claimer, sink Sink, interval time.Duration) *Dispatcher {
	return &Dispatcher{source: source, sink: sink, interval: interval, now: time.Now}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", d.interval.String()).Info("Reminder dispatcher started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick dispatches everything currently due and returns how many were sent.
func (d *Dispatcher) Tick(ctx context.Context) int {
	reminders, err := d.source.ClaimDue(ctx, d.now(), claimBatch)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to claim due reminders")
	}
	for _, r := range reminders {
		d.sink(ctx, r)
		metrics.ObserveReminder("dispatch", nil)
	}
	return len(reminders)
}

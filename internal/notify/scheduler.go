package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
)

const (
	dueKey     = "taskboard:reminders:due"
	payloadKey = "taskboard:reminders:payload"
)

// Scheduler keeps pending reminders in Redis: a sorted set of task ids
// scored by due time, plus a hash of reminder payloads.
type Scheduler struct {
	client *redis.Client
}

func NewScheduler(client *redis.Client) *Scheduler {
	return &Scheduler{client: client}
}

// Schedule records a reminder, replacing any earlier one for the same task.
func (s *Scheduler) Schedule(ctx context.Context, r entity.Reminder) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, payloadKey, r.TaskID, data)
		pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(r.DueAt.Unix()), Member: r.TaskID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder for task %s: %w", r.TaskID, err)
	}
	return nil
}

// Cancel drops the pending reminder of a task. Cancelling a task without a
// reminder is not an error.
func (s *Scheduler) Cancel(ctx context.Context, taskID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, dueKey, taskID)
		pipe.HDel(ctx, payloadKey, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel reminder for task %s: %w", taskID, err)
	}
	return nil
}

// pending reports whether taskID has a scheduled reminder.
func (s *Scheduler) pending(ctx context.Context, taskID string) (bool, error) {
	_, err := s.client.ZScore(ctx, dueKey, taskID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// claimScript pops one reminder: the sorted-set entry and its payload are
// removed together, so a concurrent Schedule for the same task either lands
// before the claim (and is claimed) or after it (and stays pending).
// Returns nil when the entry was already claimed or has no payload.
var claimScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return false
end
local payload = redis.call("HGET", KEYS[2], ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
return payload
`)

// ClaimDue removes and returns reminders due at or before now. A reminder is
// returned to at most one caller even when several dispatchers poll.
func (s *Scheduler) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]entity.Reminder, error) {
	ids, err := s.client.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due reminders: %w", err)
	}

	var claimed []entity.Reminder
	for _, id := range ids {
		data, err := claimScript.Run(ctx, s.client, []string{dueKey, payloadKey}, id).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return claimed, fmt.Errorf("failed to claim reminder for task %s: %w", id, err)
		}

		var r entity.Reminder
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return claimed, fmt.Errorf("failed to decode reminder for task %s: %w", id, err)
		}
		claimed = append(claimed, r)
	}
	return claimed, nil
}

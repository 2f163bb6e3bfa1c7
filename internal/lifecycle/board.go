package lifecycle

import "github.com/KarpovAlexandrGo/taskboard/internal/entity"

// The helpers below reconcile a displayed board with an acknowledged write.
// Each returns a fresh, re-partitioned board.

// WithTask inserts task, replacing any task with the same ID.
func WithTask(board entity.Board, task entity.Task) entity.Board {
	tasks := Flatten(Without(board, task.ID))
	return Partition(append(tasks, task))
}

// WithCompletion toggles the task with the given id, if present.
func WithCompletion(board entity.Board, id string, completed bool) entity.Board {
	tasks := Flatten(board)
	for i, t := range tasks {
		if t.ID == id {
			tasks[i] = ToggleCompletion(t, completed)
		}
	}
	return Partition(tasks)
}

// Without removes the task with the given id, if present.
func Without(board entity.Board, id string) entity.Board {
	tasks := Flatten(board)
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return Partition(kept)
}

package lifecycle

import (
	"cmp"
	"slices"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
)

// Compare orders tasks by completion (incomplete first), then urgency
// (urgent first), then due date (earliest first).
func Compare(a, b entity.Task) int {
	if a.Completed != b.Completed {
		if a.Completed {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(a.Urgency.Rank(), b.Urgency.Rank()); c != 0 {
		return c
	}
	return a.DueDate.Compare(b.DueDate.Time)
}

// Rank returns a stably sorted copy of tasks.
func Rank(tasks []entity.Task) []entity.Task {
	ranked := slices.Clone(tasks)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Partition splits tasks into ranked active and completed groups.
func Partition(tasks []entity.Task) entity.Board {
	board := entity.Board{
		Active:    []entity.Task{},
		Completed: []entity.Task{},
	}
	for _, t := range tasks {
		if t.Completed {
			board.Completed = append(board.Completed, t)
		} else {
			board.Active = append(board.Active, t)
		}
	}
	board.Active = Rank(board.Active)
	board.Completed = Rank(board.Completed)
	return board
}

// Flatten is the inverse of Partition: active tasks followed by completed ones.
func Flatten(board entity.Board) []entity.Task {
	out := make([]entity.Task, 0, len(board.Active)+len(board.Completed))
	out = append(out, board.Active...)
	return append(out, board.Completed...)
}

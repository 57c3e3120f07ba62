package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a globally unique identifier for runs, facts and trace
// events.
func NewID() string { return uuid.New().String() }

// Subtask is one decomposed unit of the overall task, executed by exactly one
// sub-agent invocation. Position reflects the planner's output order and is
// the order the coordinator executes in.
type Subtask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// Task pairs the immutable input string with its planned subtask sequence.
// A Task is created once at orchestration start and never mutated; the
// subtask slice order IS the execution order.
type Task struct {
	Description string    `json:"description"`
	Subtasks    []Subtask `json:"subtasks"`
}

// NewTask builds a Task from the raw input and planned subtask descriptions,
// assigning stable positional ids.
func NewTask(description string, subtaskDescriptions []string) Task {
	subtasks := make([]Subtask, 0, len(subtaskDescriptions))
	for i, desc := range subtaskDescriptions {
		subtasks = append(subtasks, Subtask{
			ID:          fmt.Sprintf("subtask-%d", i+1),
			Description: desc,
			Position:    i,
		})
	}
	return Task{Description: description, Subtasks: subtasks}
}

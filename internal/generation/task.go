package generation

import (
	"fmt"
	"time"

	"vibedocs/internal/todo"
)

// Task is a TODO record as handed to the project, with an implementation
// prompt and a single acceptance criterion.
type Task struct {
	todo.Record
	Source          string    `json:"source"`
	StatusUpdatedBy string    `json:"statusUpdatedBy"`
	Prompt          string    `json:"prompt"`
	TestCriteria    []string  `json:"testCriteria"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func Tasks(records []todo.Record, now time.Time) []Task {
	out := make([]Task, 0, len(records))
	for _, r := range records {
		r.Status = todo.StatusPending
		r.Dependencies = []string{}
		out = append(out, Task{
			Record:          r,
			Source:          "core",
			StatusUpdatedBy: "manual",
			Prompt:          fmt.Sprintf("Implement %s.", r.Title),
			TestCriteria:    []string{fmt.Sprintf("Verify that %s works correctly", r.Title)},
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return out
}

package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultPriority is the "normal" priority used when a draft sets none.
const DefaultPriority = 2

// Draft is the user-facing form for a new task: an executor name plus raw
// JSON inputs, as typed on the command line or in the dashboard.
type Draft struct {
	ID       string
	Name     string
	Executor string
	Priority *int
	Inputs   string
	UserID   string
	ParentID string
}

// NewID returns a fresh task id.
func NewID() string {
	return "task-" + uuid.New().String()
}

// Build turns the draft into a Task ready to submit.
func (d Draft) Build() (Task, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return Task{}, fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	executor := strings.TrimSpace(d.Executor)
	if executor == "" {
		return Task{}, fmt.Errorf("%w: executor is required", ErrInvalidTask)
	}
	inputs, err := ParseDocument(d.Inputs)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	prio := DefaultPriority
	if d.Priority != nil {
		prio = *d.Priority
	}
	if prio < 0 || prio > 3 {
		return Task{}, fmt.Errorf("%w: priority must be 0 (urgent) to 3 (low), got %d", ErrInvalidTask, prio)
	}

	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = NewID()
	}

	return Task{
		ID:       id,
		Name:     name,
		UserID:   strings.TrimSpace(d.UserID),
		ParentID: strings.TrimSpace(d.ParentID),
		Priority: &prio,
		Schemas:  Document{"method": executor},
		Inputs:   inputs,
	}, nil
}

// Package task defines the task entity exchanged with the flow server and
// helpers for walking materialized task trees.
package task

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the execution state of a task as reported by the server.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Document is an open-ended JSON object (inputs, schemas, params).
type Document map[string]any

// Dependency references another task that must run first.
type Dependency struct {
	ID       string `json:"id"`
	Required bool   `json:"required"`
}

// Task is a unit of work. Children is only populated when the task was
// fetched as part of a tree.
type Task struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	UserID         string          `json:"user_id,omitempty"`
	ParentID       string          `json:"parent_id,omitempty"` // Empty for roots
	Priority       *int            `json:"priority,omitempty"`  // Lower is more urgent
	Dependencies   []Dependency    `json:"dependencies,omitempty"`
	Inputs         Document        `json:"inputs,omitempty"`
	Schemas        Document        `json:"schemas,omitempty"` // schemas.method names the executor
	Params         Document        `json:"params,omitempty"`
	Status         Status          `json:"status,omitempty"`
	Progress       *float64        `json:"progress,omitempty"` // Fraction in [0,1]
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	Children       []Task          `json:"children,omitempty"`
	OriginalTaskID string          `json:"original_task_id,omitempty"` // Set on copies
	HasCopy        bool            `json:"has_copy,omitempty"`
}

// EffectiveStatus returns the task status, defaulting to pending when the
// server omitted it.
func (t *Task) EffectiveStatus() Status {
	if t.Status == "" {
		return StatusPending
	}
	return t.Status
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == ""
}

// IsCopy reports whether the task was produced by a copy operation.
func (t *Task) IsCopy() bool {
	return t.OriginalTaskID != ""
}

// Method returns the executor name stored in schemas.method, if any.
func (t *Task) Method() string {
	if t.Schemas == nil {
		return ""
	}
	m, _ := t.Schemas["method"].(string)
	return m
}

// ProgressPercent returns progress as a rounded percentage and whether the
// server reported progress at all.
func (t *Task) ProgressPercent() (int, bool) {
	if t.Progress == nil {
		return 0, false
	}
	return int(*t.Progress*100 + 0.5), true
}

// Timestamp parses one of the ISO-8601 timestamp fields. ok is false when the
// field is empty or not parseable.
func Timestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Servers emit both zoned RFC 3339 values and naive isoformat() values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ShortID abbreviates long ids to their first and last four characters.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "..." + id[len(id)-4:]
}

// Tree is a task whose Children slice is non-nil at every level.
type Tree struct {
	Task
}

// NewTree wraps root, normalizing absent children to empty slices.
func NewTree(root Task) *Tree {
	normalizeChildren(&root)
	return &Tree{Task: root}
}

// UnmarshalJSON decodes a task and normalizes its children.
func (t *Tree) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &t.Task); err != nil {
		return err
	}
	normalizeChildren(&t.Task)
	return nil
}

func normalizeChildren(t *Task) {
	if t.Children == nil {
		t.Children = []Task{}
	}
	for i := range t.Children {
		normalizeChildren(&t.Children[i])
	}
}

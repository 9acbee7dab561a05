package apflow

import (
	"encoding/json"

	"github.com/imkarma/flowctl/internal/task"
)

// Endpoints and well-known paths on the flow server.
const (
	EndpointTasks  = "/tasks"
	EndpointSystem = "/system"
	AgentCardPath  = "/.well-known/agent-card"
)

// Remote method names.
const (
	MethodCreate        = "tasks.create"
	MethodGet           = "tasks.get"
	MethodDetail        = "tasks.detail"
	MethodTree          = "tasks.tree"
	MethodUpdate        = "tasks.update"
	MethodDelete        = "tasks.delete"
	MethodCopy          = "tasks.copy"
	MethodCancel        = "tasks.cancel"
	MethodRunningList   = "tasks.running.list"
	MethodRunningStatus = "tasks.running.status"
	MethodRunningCount  = "tasks.running.count"
	MethodHealth        = "system.health"
)

// DefaultRunningLimit caps tasks.running.list when the caller gives no limit.
const DefaultRunningLimit = 100

// CreateResult is returned by tasks.create.
type CreateResult struct {
	Status     string  `json:"status"`
	RootTaskID string  `json:"root_task_id"`
	Progress   float64 `json:"progress"`
	TaskCount  int     `json:"task_count"`
}

// DeleteResult is returned by tasks.delete.
type DeleteResult struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
}

// TaskStatus is a per-task outcome of tasks.cancel and tasks.running.status.
type TaskStatus struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RunningTask is one entry of tasks.running.list.
type RunningTask struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   task.Status `json:"status"`
	Progress float64     `json:"progress"`
}

// RunningCount is returned by tasks.running.count.
type RunningCount struct {
	Count  int    `json:"count"`
	UserID string `json:"user_id,omitempty"`
}

// Health is returned by system.health.
type Health struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
}

// TreeQuery identifies the tree to fetch. At least one field must be set.
type TreeQuery struct {
	TaskID string `json:"task_id,omitempty"`
	RootID string `json:"root_id,omitempty"`
}

// Update lists the fields to change in tasks.update. Nil fields are not sent
// and stay unchanged on the server.
type Update struct {
	Status      *task.Status    `json:"status,omitempty"`
	Inputs      task.Document   `json:"inputs,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Progress    *float64        `json:"progress,omitempty"`
	StartedAt   *string         `json:"started_at,omitempty"`
	CompletedAt *string         `json:"completed_at,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.Status == nil && u.Inputs == nil && len(u.Result) == 0 && u.Error == nil &&
		u.Progress == nil && u.StartedAt == nil && u.CompletedAt == nil
}

type taskIDParams struct {
	TaskID string `json:"task_id"`
}

type updateParams struct {
	TaskID string `json:"task_id"`
	Update
}

type cancelParams struct {
	TaskIDs []string `json:"task_ids"`
	Force   bool     `json:"force"`
}

type taskIDsParams struct {
	TaskIDs []string `json:"task_ids"`
}

type runningListParams struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit"`
}

type userParams struct {
	UserID string `json:"user_id,omitempty"`
}

// Package apflow is the typed client for a flow server's task API. Each
// method fixes the endpoint, method name and parameter shape of one remote
// operation and validates identifying parameters before anything is sent.
package apflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imkarma/flowctl/internal/rpc"
	"github.com/imkarma/flowctl/internal/task"
)

var (
	// ErrMissingTaskID is returned when an operation that needs a task id got none.
	ErrMissingTaskID = errors.New("task id is required")
	// ErrEmptyResult is returned when the server answered without a result
	// for an operation that must return one.
	ErrEmptyResult = errors.New("empty result")
)

// Client exposes the flow server operations.
type Client struct {
	rpc *rpc.Client
}

// New wraps an RPC client.
func New(rc *rpc.Client) *Client {
	return &Client{rpc: rc}
}

// NewClient builds the RPC client and wraps it in one step.
func NewClient(baseURL string, opts ...rpc.Option) *Client {
	return New(rpc.New(baseURL, opts...))
}

// CreateTasks creates one or more tasks and starts executing them. A single
// task is sent as a one-element array.
func (c *Client) CreateTasks(ctx context.Context, tasks ...task.Task) (*CreateResult, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: at least one task is required", task.ErrInvalidTask)
	}
	for i := range tasks {
		if err := task.Validate(&tasks[i]); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}

	var out CreateResult
	if err := c.call(ctx, EndpointTasks, MethodCreate, tasks, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	return c.fetchTask(ctx, MethodGet, taskID)
}

// GetTaskDetail fetches a task through tasks.detail.
func (c *Client) GetTaskDetail(ctx context.Context, taskID string) (*task.Task, error) {
	return c.fetchTask(ctx, MethodDetail, taskID)
}

func (c *Client) fetchTask(ctx context.Context, method, taskID string) (*task.Task, error) {
	if err := requireID(taskID); err != nil {
		return nil, err
	}
	var out task.Task
	if err := c.call(ctx, EndpointTasks, method, taskIDParams{TaskID: taskID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTaskTree fetches the full subtree identified by q.
func (c *Client) GetTaskTree(ctx context.Context, q TreeQuery) (*task.Tree, error) {
	q.TaskID = strings.TrimSpace(q.TaskID)
	q.RootID = strings.TrimSpace(q.RootID)
	if q.TaskID == "" && q.RootID == "" {
		return nil, fmt.Errorf("%w: task_id or root_id", ErrMissingTaskID)
	}
	var out task.Tree
	if err := c.call(ctx, EndpointTasks, MethodTree, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, u Update) (*task.Task, error) {
	if err := requireID(taskID); err != nil {
		return nil, err
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", task.ErrInvalidTask, *u.Status)
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 1) {
		return nil, fmt.Errorf("%w: progress %v outside [0,1]", task.ErrInvalidTask, *u.Progress)
	}
	if len(u.Result) > 0 && !json.Valid(u.Result) {
		return nil, fmt.Errorf("%w: result is not valid JSON", task.ErrInvalidTask)
	}

	var out task.Task
	if err := c.call(ctx, EndpointTasks, MethodUpdate, updateParams{TaskID: taskID, Update: u}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask marks a task as deleted on the server.
func (c *Client) DeleteTask(ctx context.Context, taskID string) (*DeleteResult, error) {
	if err := requireID(taskID); err != nil {
		return nil, err
	}
	var out DeleteResult
	if err := c.call(ctx, EndpointTasks, MethodDelete, taskIDParams{TaskID: taskID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CopyTask duplicates a task and its subtree for re-execution. Copies carry
// original_task_id.
func (c *Client) CopyTask(ctx context.Context, taskID string) (*task.Tree, error) {
	if err := requireID(taskID); err != nil {
		return nil, err
	}
	var out task.Tree
	if err := c.call(ctx, EndpointTasks, MethodCopy, taskIDParams{TaskID: taskID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelTasks asks the server to stop the given tasks. force escalates to
// immediate cancellation. The server reports an outcome per id; tasks that
// were already terminal are reported, not treated as a failure.
func (c *Client) CancelTasks(ctx context.Context, taskIDs []string, force bool) ([]TaskStatus, error) {
	if err := requireIDs(taskIDs); err != nil {
		return nil, err
	}
	return callList[TaskStatus](ctx, c, MethodCancel, cancelParams{TaskIDs: taskIDs, Force: force})
}

// RunningTasks lists running tasks. An empty userID means all users; a
// non-positive limit uses DefaultRunningLimit.
func (c *Client) RunningTasks(ctx context.Context, userID string, limit int) ([]RunningTask, error) {
	if limit <= 0 {
		limit = DefaultRunningLimit
	}
	return callList[RunningTask](ctx, c, MethodRunningList, runningListParams{UserID: userID, Limit: limit})
}

// RunningTaskStatus probes the status of several tasks at once.
func (c *Client) RunningTaskStatus(ctx context.Context, taskIDs []string) ([]TaskStatus, error) {
	if err := requireIDs(taskIDs); err != nil {
		return nil, err
	}
	return callList[TaskStatus](ctx, c, MethodRunningStatus, taskIDsParams{TaskIDs: taskIDs})
}

// RunningTaskCount counts running tasks, optionally for one user.
func (c *Client) RunningTaskCount(ctx context.Context, userID string) (*RunningCount, error) {
	var out RunningCount
	if err := c.call(ctx, EndpointTasks, MethodRunningCount, userParams{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes server liveness and version.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.call(ctx, EndpointSystem, MethodHealth, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AgentCard fetches the discovery document with a plain GET. The document is
// returned as served; it is not an RPC result.
func (c *Client) AgentCard(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.rpc.Get(ctx, AgentCardPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call sends one request and decodes its result into out. A missing or null
// result is an error: these operations always return an object.
func (c *Client) call(ctx context.Context, endpoint, method string, params, out any) error {
	var raw json.RawMessage
	if err := c.rpc.Call(ctx, endpoint, method, params, &raw); err != nil {
		return err
	}
	if isNull(raw) {
		return fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// callList is call for list results on the tasks endpoint. A null result is
// an empty list.
func callList[T any](ctx context.Context, c *Client, method string, params any) ([]T, error) {
	var raw json.RawMessage
	if err := c.rpc.Call(ctx, EndpointTasks, method, params, &raw); err != nil {
		return nil, err
	}
	out := []T{}
	if isNull(raw) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func requireID(taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return ErrMissingTaskID
	}
	return nil
}

func requireIDs(taskIDs []string) error {
	if len(taskIDs) == 0 {
		return fmt.Errorf("%w: at least one task id", ErrMissingTaskID)
	}
	for i, id := range taskIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: entry %d is empty", ErrMissingTaskID, i)
		}
	}
	return nil
}

package apflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/flowctl/internal/rpc"
	"github.com/imkarma/flowctl/internal/task"
)

type call struct {
	Path   string
	Method string
	Params json.RawMessage
	Header http.Header
}

// fakeFlow routes JSON-RPC requests to per-method handlers returning a raw
// result, or an error object when the handler returns a non-nil *rpc.Error.
type fakeFlow struct {
	t        *testing.T
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(params json.RawMessage) (string, *rpc.Error)
	card     string
}

func newFakeFlow(t *testing.T) (*fakeFlow, *Client) {
	t.Helper()
	f := &fakeFlow{t: t, handlers: map[string]func(json.RawMessage) (string, *rpc.Error){}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL)
}

func (f *fakeFlow) on(method string, h func(params json.RawMessage) (string, *rpc.Error)) {
	f.handlers[method] = h
}

func (f *fakeFlow) reply(method, result string) {
	f.on(method, func(json.RawMessage) (string, *rpc.Error) { return result, nil })
}

func (f *fakeFlow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		f.mu.Lock()
		f.calls = append(f.calls, call{Path: r.URL.Path, Method: "GET", Header: r.Header.Clone()})
		f.mu.Unlock()
		if r.URL.Path != AgentCardPath || f.card == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(f.card))
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		ID     int64           `json:"id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		f.t.Errorf("bad request body: %v", err)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{Path: r.URL.Path, Method: req.Method, Params: req.Params, Header: r.Header.Clone()})
	f.mu.Unlock()

	h, ok := f.handlers[req.Method]
	if !ok {
		writeEnvelope(w, req.ID, "", &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "Method not found: " + req.Method})
		return
	}
	result, rpcErr := h(req.Params)
	writeEnvelope(w, req.ID, result, rpcErr)
}

func writeEnvelope(w http.ResponseWriter, id int64, result string, rpcErr *rpc.Error) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = json.RawMessage(result)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeFlow) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

const createReply = `{"status":"in_progress","root_task_id":"task-1","progress":0,"task_count":1}`

func TestCreateTasks_SingleTaskSentAsOneElementArray(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodCreate, createReply)

	prio := 2
	one := task.Task{
		ID:       "task-1",
		Name:     "Summarize",
		Priority: &prio,
		Schemas:  task.Document{"method": "crewai_executor"},
		Inputs:   task.Document{"text": "hello"},
	}

	res, err := c.CreateTasks(context.Background(), one)
	require.NoError(t, err)
	assert.Equal(t, "task-1", res.RootTaskID)
	assert.Equal(t, 1, res.TaskCount)

	_, err = c.CreateTasks(context.Background(), []task.Task{one}...)
	require.NoError(t, err)

	calls := f.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, EndpointTasks, calls[0].Path)
	assert.Equal(t, MethodCreate, calls[0].Method)
	assert.JSONEq(t, string(calls[0].Params), string(calls[1].Params))

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Params, &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "Summarize", sent[0]["name"])
	assert.Equal(t, float64(2), sent[0]["priority"])
}

func TestCreateTasks_BatchKeepsOrder(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodCreate, `{"status":"in_progress","root_task_id":"root","progress":0,"task_count":2}`)

	_, err := c.CreateTasks(context.Background(),
		task.Task{ID: "root", Name: "Root"},
		task.Task{ID: "child", Name: "Child", ParentID: "root", Dependencies: []task.Dependency{{ID: "root", Required: true}}},
	)
	require.NoError(t, err)

	var sent []task.Task
	require.NoError(t, json.Unmarshal(f.recorded()[0].Params, &sent))
	require.Len(t, sent, 2)
	assert.Equal(t, "root", sent[0].ID)
	assert.Equal(t, "root", sent[1].ParentID)
	assert.True(t, sent[1].Dependencies[0].Required)
}

func TestCreateTasks_ValidationBeforeSending(t *testing.T) {
	f, c := newFakeFlow(t)

	_, err := c.CreateTasks(context.Background())
	require.ErrorIs(t, err, task.ErrInvalidTask)

	_, err = c.CreateTasks(context.Background(), task.Task{ID: "no-name"})
	require.ErrorIs(t, err, task.ErrInvalidTask)

	assert.Empty(t, f.recorded())
}

func TestGetTask(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodGet, `{"id":"t1","name":"Fetch","progress":0.5,"result":{"rows":[1,2]}}`)

	got, err := c.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, task.StatusPending, got.EffectiveStatus())
	assert.JSONEq(t, `{"rows":[1,2]}`, string(got.Result))

	assert.JSONEq(t, `{"task_id":"t1"}`, string(f.recorded()[0].Params))
}

func TestGetTask_UnknownIDFails(t *testing.T) {
	f, c := newFakeFlow(t)
	f.on(MethodGet, func(json.RawMessage) (string, *rpc.Error) {
		return "", &rpc.Error{Code: -32602, Message: "Task nope not found"}
	})

	got, err := c.GetTask(context.Background(), "nope")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "Task nope not found", err.Error())
}

func TestGetTaskDetail_UsesDetailMethod(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodDetail, `{"id":"t1","name":"Fetch"}`)

	_, err := c.GetTaskDetail(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, MethodDetail, f.recorded()[0].Method)
}

func TestGetTaskTree_ParamsAndNormalization(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodTree, `{"id":"R","name":"root","children":[{"id":"A","parent_id":"R","name":"a"}]}`)

	tree, err := c.GetTaskTree(context.Background(), TreeQuery{TaskID: "R"})
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.NotNil(t, tree.Children[0].Children)
	assert.NoError(t, task.CheckLinks(&tree.Task))

	_, err = c.GetTaskTree(context.Background(), TreeQuery{RootID: "R"})
	require.NoError(t, err)

	calls := f.recorded()
	assert.JSONEq(t, `{"task_id":"R"}`, string(calls[0].Params))
	assert.JSONEq(t, `{"root_id":"R"}`, string(calls[1].Params))
}

func TestGetTaskTree_RequiresIdentifier(t *testing.T) {
	f, c := newFakeFlow(t)

	_, err := c.GetTaskTree(context.Background(), TreeQuery{TaskID: "  "})
	require.ErrorIs(t, err, ErrMissingTaskID)
	assert.Empty(t, f.recorded())
}

func TestUpdateTask_SendsOnlySetFields(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodUpdate, `{"id":"t1","name":"Fetch","status":"completed","progress":1}`)

	status := task.StatusCompleted
	progress := 1.0
	got, err := c.UpdateTask(context.Background(), "t1", Update{
		Status:   &status,
		Progress: &progress,
		Result:   json.RawMessage(`{"ok":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)

	assert.JSONEq(t, `{"task_id":"t1","status":"completed","progress":1,"result":{"ok":true}}`, string(f.recorded()[0].Params))
}

func TestUpdateTask_Validation(t *testing.T) {
	f, c := newFakeFlow(t)

	bad := task.Status("paused")
	_, err := c.UpdateTask(context.Background(), "t1", Update{Status: &bad})
	require.ErrorIs(t, err, task.ErrInvalidTask)

	over := 1.2
	_, err = c.UpdateTask(context.Background(), "t1", Update{Progress: &over})
	require.ErrorIs(t, err, task.ErrInvalidTask)

	_, err = c.UpdateTask(context.Background(), "t1", Update{Result: json.RawMessage(`{broken`)})
	require.ErrorIs(t, err, task.ErrInvalidTask)

	_, err = c.UpdateTask(context.Background(), "", Update{})
	require.ErrorIs(t, err, ErrMissingTaskID)

	assert.Empty(t, f.recorded())
}

func TestDeleteTask(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodDelete, `{"success":true,"task_id":"t1"}`)

	res, err := c.DeleteTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "t1", res.TaskID)
}

func TestCopyTask_CarriesLineage(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodCopy, `{"id":"copy-R","name":"root","original_task_id":"R","children":[
		{"id":"copy-A","parent_id":"copy-R","name":"a","original_task_id":"A"}]}`)

	tree, err := c.CopyTask(context.Background(), "R")
	require.NoError(t, err)

	for _, n := range task.Flatten(&tree.Task) {
		assert.True(t, n.Task.IsCopy(), "node %s should carry original_task_id", n.Task.ID)
	}
	assert.JSONEq(t, `{"task_id":"R"}`, string(f.recorded()[0].Params))
}

func TestCancelTasks_PartialOutcomeIsNotAFailure(t *testing.T) {
	f, c := newFakeFlow(t)
	f.on(MethodCancel, func(params json.RawMessage) (string, *rpc.Error) {
		var p struct {
			TaskIDs []string `json:"task_ids"`
			Force   bool     `json:"force"`
		}
		_ = json.Unmarshal(params, &p)
		out := make([]TaskStatus, 0, len(p.TaskIDs))
		for _, id := range p.TaskIDs {
			if id == "t1" {
				out = append(out, TaskStatus{TaskID: id, Status: "completed", Message: "Task already completed"})
				continue
			}
			out = append(out, TaskStatus{TaskID: id, Status: "cancelled"})
		}
		b, _ := json.Marshal(out)
		return string(b), nil
	})

	res, err := c.CancelTasks(context.Background(), []string{"t1", "t2"}, false)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "t1", res[0].TaskID)
	assert.Equal(t, "completed", res[0].Status)
	assert.NotEmpty(t, res[0].Message)
	assert.Equal(t, "t2", res[1].TaskID)
	assert.Equal(t, "cancelled", res[1].Status)

	assert.JSONEq(t, `{"task_ids":["t1","t2"],"force":false}`, string(f.recorded()[0].Params))
}

func TestCancelTasks_ForceFlagSent(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodCancel, `[{"task_id":"t2","status":"cancelled"}]`)

	_, err := c.CancelTasks(context.Background(), []string{"t2"}, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_ids":["t2"],"force":true}`, string(f.recorded()[0].Params))
}

func TestCancelTasks_RequiresIDs(t *testing.T) {
	f, c := newFakeFlow(t)

	_, err := c.CancelTasks(context.Background(), nil, false)
	require.ErrorIs(t, err, ErrMissingTaskID)
	_, err = c.CancelTasks(context.Background(), []string{"t1", ""}, false)
	require.ErrorIs(t, err, ErrMissingTaskID)
	assert.Empty(t, f.recorded())
}

func TestRunningTasks_DefaultsAndUserFilter(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodRunningList, `[{"id":"t1","name":"Fetch","status":"in_progress","progress":0.25}]`)

	tasks, err := c.RunningTasks(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.StatusInProgress, tasks[0].Status)

	_, err = c.RunningTasks(context.Background(), "alice", 10)
	require.NoError(t, err)

	calls := f.recorded()
	assert.JSONEq(t, `{"limit":100}`, string(calls[0].Params))
	assert.JSONEq(t, `{"user_id":"alice","limit":10}`, string(calls[1].Params))
}

func TestRunningTasks_NullResultIsEmptyList(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodRunningList, `null`)

	tasks, err := c.RunningTasks(context.Background(), "", 5)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestRunningTaskStatusAndCount(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodRunningStatus, `[{"task_id":"t1","status":"in_progress"},{"task_id":"t9","status":"not_found","message":"Task not found"}]`)
	f.reply(MethodRunningCount, `{"count":4,"user_id":"alice"}`)

	statuses, err := c.RunningTaskStatus(context.Background(), []string{"t1", "t9"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "not_found", statuses[1].Status)

	count, err := c.RunningTaskCount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, count.Count)

	calls := f.recorded()
	assert.JSONEq(t, `{"task_ids":["t1","t9"]}`, string(calls[0].Params))
	assert.JSONEq(t, `{"user_id":"alice"}`, string(calls[1].Params))
}

func TestHealth_UsesSystemEndpoint(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodHealth, `{"status":"healthy","version":"0.3.1","uptime":3600}`)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.3.1", h.Version)

	call := f.recorded()[0]
	assert.Equal(t, EndpointSystem, call.Path)
	assert.JSONEq(t, `{}`, string(call.Params))
}

func TestAgentCard_PlainGet(t *testing.T) {
	f, c := newFakeFlow(t)
	f.card = `{"name":"flow","url":"http://localhost:8000","skills":[]}`

	card, err := c.AgentCard(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, f.card, string(card))
	assert.Equal(t, "GET", f.recorded()[0].Method)
}

func TestNullResultForObjectOperation(t *testing.T) {
	f, c := newFakeFlow(t)
	f.reply(MethodGet, `null`)

	got, err := c.GetTask(context.Background(), "t1")
	require.ErrorIs(t, err, ErrEmptyResult)
	assert.Nil(t, got)
}

func TestMissingTaskIDs(t *testing.T) {
	f, c := newFakeFlow(t)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["get"] = c.GetTask(ctx, "")
	_, checks["detail"] = c.GetTaskDetail(ctx, " ")
	_, checks["delete"] = c.DeleteTask(ctx, "")
	_, checks["copy"] = c.CopyTask(ctx, "")
	_, checks["status"] = c.RunningTaskStatus(ctx, []string{})

	for name, err := range checks {
		assert.True(t, errors.Is(err, ErrMissingTaskID), "%s: expected ErrMissingTaskID, got %v", name, err)
	}
	assert.Empty(t, f.recorded())
}

func TestClient_TokenAndHeadersReachServer(t *testing.T) {
	f := &fakeFlow{t: t, handlers: map[string]func(json.RawMessage) (string, *rpc.Error){}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	f.reply(MethodHealth, `{"status":"healthy","version":"1","uptime":1}`)

	c := NewClient(srv.URL, rpc.WithToken("jwt"), rpc.WithHeader("X-Anthropic-API-Key", "ak"))
	_, err := c.Health(context.Background())
	require.NoError(t, err)

	h := f.recorded()[0].Header
	assert.Equal(t, "Bearer jwt", h.Get("Authorization"))
	assert.Equal(t, "ak", h.Get("X-Anthropic-API-Key"))
}

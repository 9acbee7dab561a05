package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/store"
	"github.com/imkarma/flowctl/internal/task"
)

type fakeFlow struct {
	running []apflow.RunningTask
	trees   map[string]*task.Tree

	created   []task.Task
	cancelled []string
	forced    bool
	deleted   []string
	copied    []string
}

func (f *fakeFlow) RunningTasks(ctx context.Context, userID string, limit int) ([]apflow.RunningTask, error) {
	return f.running, nil
}

func (f *fakeFlow) GetTaskTree(ctx context.Context, q apflow.TreeQuery) (*task.Tree, error) {
	if t, ok := f.trees[q.TaskID]; ok {
		return t, nil
	}
	return nil, errors.New("Task " + q.TaskID + " not found")
}

func (f *fakeFlow) CreateTasks(ctx context.Context, tasks ...task.Task) (*apflow.CreateResult, error) {
	f.created = append(f.created, tasks...)
	return &apflow.CreateResult{Status: "in_progress", RootTaskID: tasks[0].ID, TaskCount: len(tasks)}, nil
}

func (f *fakeFlow) CancelTasks(ctx context.Context, taskIDs []string, force bool) ([]apflow.TaskStatus, error) {
	f.cancelled = append(f.cancelled, taskIDs...)
	f.forced = force
	out := make([]apflow.TaskStatus, 0, len(taskIDs))
	for _, id := range taskIDs {
		out = append(out, apflow.TaskStatus{TaskID: id, Status: "cancelled"})
	}
	return out, nil
}

func (f *fakeFlow) DeleteTask(ctx context.Context, taskID string) (*apflow.DeleteResult, error) {
	f.deleted = append(f.deleted, taskID)
	return &apflow.DeleteResult{Success: true, TaskID: taskID}, nil
}

func (f *fakeFlow) CopyTask(ctx context.Context, taskID string) (*task.Tree, error) {
	f.copied = append(f.copied, taskID)
	return task.NewTree(task.Task{ID: "copy-" + taskID, Name: "copy", OriginalTaskID: taskID}), nil
}

func sampleTree() *task.Tree {
	return task.NewTree(task.Task{
		ID: "R", Name: "root", Status: task.StatusInProgress,
		Children: []task.Task{
			{ID: "A", ParentID: "R", Name: "a", Status: task.StatusCompleted},
			{ID: "B", ParentID: "R", Name: "b"},
		},
	})
}

type recorded struct {
	id     string
	action store.Action
}

func newTestModel(f *fakeFlow) (Model, *[]recorded) {
	var recs []recorded
	m := New(context.Background(), Options{
		Flow: f,
		Record: func(id, name string, action store.Action) {
			recs = append(recs, recorded{id, action})
		},
	})
	return m, &recs
}

// step feeds msg to the model and, when the resulting command is a plain
// request, runs it and feeds its result back.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	switch res := cmd().(type) {
	case runningLoadedMsg, treeLoadedMsg, createDoneMsg, cancelDoneMsg, deleteDoneMsg, copyDoneMsg:
		next, _ = m.Update(res)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func TestRunningLoaded_ClampsCursor(t *testing.T) {
	m, _ := newTestModel(&fakeFlow{})
	m.cursor = 5

	next, _ := m.Update(runningLoadedMsg{tasks: []apflow.RunningTask{{ID: "t1"}, {ID: "t2"}}})
	m = next.(Model)

	if m.cursor != 1 {
		t.Errorf("expected cursor clamped to 1, got %d", m.cursor)
	}
}

func TestRunningLoaded_ErrorKeepsList(t *testing.T) {
	m, _ := newTestModel(&fakeFlow{})
	m.running = []apflow.RunningTask{{ID: "t1"}}

	next, _ := m.Update(runningLoadedMsg{err: errors.New("connection refused")})
	m = next.(Model)

	if len(m.running) != 1 {
		t.Errorf("expected list kept on error, got %d entries", len(m.running))
	}
	if !m.statusErr || !strings.Contains(m.statusMsg, "connection refused") {
		t.Errorf("expected error status, got %q", m.statusMsg)
	}
}

func TestEnter_OpensTree(t *testing.T) {
	f := &fakeFlow{
		running: []apflow.RunningTask{{ID: "R", Name: "root", Status: task.StatusInProgress}},
		trees:   map[string]*task.Tree{"R": sampleTree()},
	}
	m, _ := newTestModel(f)
	m = step(t, m, runningLoadedMsg{tasks: f.running})

	m = step(t, m, key("enter"))

	if m.screen != screenTree {
		t.Fatalf("expected tree screen, got %v", m.screen)
	}
	if len(m.nodes) != 3 || m.nodes[1].Task.ID != "A" {
		t.Errorf("expected flattened tree R,A,B, got %d nodes", len(m.nodes))
	}
	if !strings.Contains(m.View(), "root") {
		t.Error("expected tree view to show the root name")
	}
}

func TestTree_CursorSurvivesRefresh(t *testing.T) {
	m, _ := newTestModel(&fakeFlow{})
	m = step(t, m, treeLoadedMsg{tree: sampleTree()})
	m = step(t, m, key("j"))
	m = step(t, m, key("j"))

	if m.selectedNode().ID != "B" {
		t.Fatalf("expected B selected, got %s", m.selectedNode().ID)
	}

	m = step(t, m, treeLoadedMsg{tree: sampleTree()})
	if m.selectedNode().ID != "B" {
		t.Errorf("expected B still selected after refresh, got %s", m.selectedNode().ID)
	}
}

func TestCreatePopup_SubmitsDraft(t *testing.T) {
	f := &fakeFlow{trees: map[string]*task.Tree{}}
	m, recs := newTestModel(f)

	m = step(t, m, key("c"))
	if m.popup != popupCreate {
		t.Fatal("expected create popup")
	}
	m = typeText(t, m, "Collect info")
	m = step(t, m, key("tab"))
	m = typeText(t, m, "system_info_executor")
	m = step(t, m, key("enter"))

	if len(f.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(f.created))
	}
	got := f.created[0]
	if got.Name != "Collect info" || got.Method() != "system_info_executor" {
		t.Errorf("unexpected task %+v", got)
	}
	if m.popup != popupNone {
		t.Error("expected popup closed after submit")
	}
	if len(*recs) != 1 || (*recs)[0].action != store.ActionCreated {
		t.Errorf("expected created to be recorded, got %v", *recs)
	}
}

func TestCreatePopup_InvalidJSONStaysOpen(t *testing.T) {
	f := &fakeFlow{}
	m, _ := newTestModel(f)

	m = step(t, m, key("c"))
	m = typeText(t, m, "Bad")
	m = step(t, m, key("tab"))
	m = typeText(t, m, "exec")
	m = step(t, m, key("tab"))
	m.inputs[fieldInputs].SetValue("[1, 2]")
	m = step(t, m, key("enter"))

	if len(f.created) != 0 {
		t.Error("expected no create call for invalid inputs")
	}
	if m.popup != popupCreate {
		t.Error("expected popup to stay open")
	}
	if !strings.Contains(m.statusMsg, "invalid JSON format") {
		t.Errorf("expected JSON error, got %q", m.statusMsg)
	}
}

func TestConfirm_ForceCancel(t *testing.T) {
	f := &fakeFlow{running: []apflow.RunningTask{{ID: "t1"}}}
	m, recs := newTestModel(f)
	m = step(t, m, runningLoadedMsg{tasks: f.running})

	m = step(t, m, key("X"))
	if m.popup != popupConfirm || m.confirm != confirmForceCancel {
		t.Fatal("expected force-cancel confirm popup")
	}
	m = step(t, m, key("y"))

	if len(f.cancelled) != 1 || f.cancelled[0] != "t1" || !f.forced {
		t.Errorf("expected forced cancel of t1, got %v force=%v", f.cancelled, f.forced)
	}
	if len(*recs) != 1 || (*recs)[0].action != store.ActionCancelled {
		t.Errorf("expected cancel recorded, got %v", *recs)
	}
}

func TestConfirm_NoDoesNothing(t *testing.T) {
	f := &fakeFlow{running: []apflow.RunningTask{{ID: "t1"}}}
	m, _ := newTestModel(f)
	m = step(t, m, runningLoadedMsg{tasks: f.running})

	m = step(t, m, key("x"))
	m = step(t, m, key("n"))

	if m.popup != popupNone || len(f.cancelled) != 0 {
		t.Errorf("expected no cancel, got %v", f.cancelled)
	}
}

func TestDeleteRoot_ReturnsToRunning(t *testing.T) {
	f := &fakeFlow{}
	m, _ := newTestModel(f)
	m = step(t, m, treeLoadedMsg{tree: sampleTree()})

	m = step(t, m, key("d"))
	m = step(t, m, key("y"))

	if len(f.deleted) != 1 || f.deleted[0] != "R" {
		t.Fatalf("expected R deleted, got %v", f.deleted)
	}
	if m.screen != screenRunning || m.tree != nil {
		t.Error("expected to leave the deleted tree")
	}
}

func TestCopy_JumpsToCopiedTree(t *testing.T) {
	f := &fakeFlow{}
	m, recs := newTestModel(f)
	m = step(t, m, treeLoadedMsg{tree: sampleTree()})

	m = step(t, m, key("y"))

	if len(f.copied) != 1 || f.copied[0] != "R" {
		t.Fatalf("expected copy of R, got %v", f.copied)
	}
	if m.tree == nil || m.tree.ID != "copy-R" {
		t.Errorf("expected copied tree shown, got %+v", m.tree)
	}
	if len(*recs) != 1 || (*recs)[0].action != store.ActionCopied {
		t.Errorf("expected copy recorded, got %v", *recs)
	}
}

func TestEsc_LeavesTree(t *testing.T) {
	m, _ := newTestModel(&fakeFlow{})
	m = step(t, m, treeLoadedMsg{tree: sampleTree()})

	m = step(t, m, key("esc"))

	if m.screen != screenRunning {
		t.Errorf("expected running screen, got %v", m.screen)
	}
}

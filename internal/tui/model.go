// Package tui is the interactive dashboard: running tasks, task trees, and
// create / cancel / delete / copy actions against the flow server.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/store"
	"github.com/imkarma/flowctl/internal/task"
)

// Flow is the part of the flow server API the dashboard uses.
// *apflow.Client satisfies it.
type Flow interface {
	RunningTasks(ctx context.Context, userID string, limit int) ([]apflow.RunningTask, error)
	GetTaskTree(ctx context.Context, q apflow.TreeQuery) (*task.Tree, error)
	CreateTasks(ctx context.Context, tasks ...task.Task) (*apflow.CreateResult, error)
	CancelTasks(ctx context.Context, taskIDs []string, force bool) ([]apflow.TaskStatus, error)
	DeleteTask(ctx context.Context, taskID string) (*apflow.DeleteResult, error)
	CopyTask(ctx context.Context, taskID string) (*task.Tree, error)
}

// screen represents which screen the TUI is showing.
type screen int

const (
	screenRunning screen = iota // Running task list (main)
	screenTree                  // One task tree
)

// popup represents an overlay dialog.
type popup int

const (
	popupNone popup = iota
	popupCreate
	popupConfirm
)

// confirmAction is what the confirm popup will do on "y".
type confirmAction int

const (
	confirmCancel confirmAction = iota
	confirmForceCancel
	confirmDelete
)

// Create popup fields.
const (
	fieldName = iota
	fieldExecutor
	fieldInputs
	numFields
)

// Options configures the dashboard.
type Options struct {
	Flow    Flow
	Refresh time.Duration
	Limit   int
	BaseURL string
	// Record is called after a successful create, copy, cancel or delete.
	Record func(taskID, name string, action store.Action)
}

// Model is the top-level bubbletea model.
type Model struct {
	ctx  context.Context
	opts Options

	width  int
	height int

	screen screen
	popup  popup

	// Running list.
	running []apflow.RunningTask
	cursor  int

	// Tree screen.
	tree       *task.Tree
	nodes      []task.Node
	treeCursor int
	treeView   viewport.Model

	// Create popup.
	inputs         [numFields]textinput.Model
	inputFocused   int
	createPriority int

	// Confirm popup.
	confirm       confirmAction
	confirmTaskID string

	statusMsg  string
	statusErr  bool
	statusTime time.Time

	refreshing bool
	quitting   bool
}

// New creates a new TUI model.
func New(ctx context.Context, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = 3 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = apflow.DefaultRunningLimit
	}

	var inputs [numFields]textinput.Model
	for i, ph := range []string{"Task name...", "Executor (e.g. system_info_executor)...", `Inputs JSON, e.g. {"resource": "cpu"}`} {
		ti := textinput.New()
		ti.Placeholder = ph
		ti.CharLimit = 500
		ti.Width = 50
		inputs[i] = ti
	}
	inputs[fieldInputs].SetValue("{}")

	return Model{
		ctx:            ctx,
		opts:           opts,
		screen:         screenRunning,
		inputs:         inputs,
		createPriority: task.DefaultPriority,
		treeView:       viewport.New(80, 20),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRunning(), tickCmd(m.opts.Refresh))
}

type tickMsg time.Time

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type runningLoadedMsg struct {
	tasks []apflow.RunningTask
	err   error
}

type treeLoadedMsg struct {
	tree *task.Tree
	err  error
}

type createDoneMsg struct {
	name string
	res  *apflow.CreateResult
	err  error
}

type cancelDoneMsg struct {
	outcomes []apflow.TaskStatus
	err      error
}

type deleteDoneMsg struct {
	res *apflow.DeleteResult
	err error
}

type copyDoneMsg struct {
	tree *task.Tree
	err  error
}

func (m Model) loadRunning() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.opts.Flow.RunningTasks(m.ctx, "", m.opts.Limit)
		return runningLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) loadTree(taskID string) tea.Cmd {
	return func() tea.Msg {
		tree, err := m.opts.Flow.GetTaskTree(m.ctx, apflow.TreeQuery{TaskID: taskID})
		return treeLoadedMsg{tree: tree, err: err}
	}
}

func (m Model) doCreate(t task.Task) tea.Cmd {
	return func() tea.Msg {
		res, err := m.opts.Flow.CreateTasks(m.ctx, t)
		return createDoneMsg{name: t.Name, res: res, err: err}
	}
}

func (m Model) doCancel(taskID string, force bool) tea.Cmd {
	return func() tea.Msg {
		outcomes, err := m.opts.Flow.CancelTasks(m.ctx, []string{taskID}, force)
		return cancelDoneMsg{outcomes: outcomes, err: err}
	}
}

func (m Model) doDelete(taskID string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.opts.Flow.DeleteTask(m.ctx, taskID)
		return deleteDoneMsg{res: res, err: err}
	}
}

func (m Model) doCopy(taskID string) tea.Cmd {
	return func() tea.Msg {
		tree, err := m.opts.Flow.CopyTask(m.ctx, taskID)
		return copyDoneMsg{tree: tree, err: err}
	}
}

func (m Model) record(taskID, name string, action store.Action) {
	if m.opts.Record != nil {
		m.opts.Record(taskID, name, action)
	}
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusErr = false
	m.statusTime = time.Now()
}

func (m *Model) setError(prefix string, err error) {
	m.statusMsg = prefix + ": " + err.Error()
	m.statusErr = true
	m.statusTime = time.Now()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.running) {
		m.cursor = len(m.running) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.treeCursor >= len(m.nodes) {
		m.treeCursor = len(m.nodes) - 1
	}
	if m.treeCursor < 0 {
		m.treeCursor = 0
	}
}

func (m Model) selectedRunning() *apflow.RunningTask {
	if m.cursor < len(m.running) {
		t := m.running[m.cursor]
		return &t
	}
	return nil
}

func (m Model) selectedNode() *task.Task {
	if m.treeCursor < len(m.nodes) {
		return m.nodes[m.treeCursor].Task
	}
	return nil
}

// setTree replaces the tree shown on the tree screen, keeping the cursor on
// the same task id when it still exists.
func (m *Model) setTree(tree *task.Tree) {
	prev := ""
	if t := m.selectedNode(); t != nil {
		prev = t.ID
	}
	m.tree = tree
	m.nodes = task.Flatten(&tree.Task)
	m.treeCursor = 0
	for i, n := range m.nodes {
		if n.Task.ID == prev {
			m.treeCursor = i
			break
		}
	}
	m.syncTreeView()
}

package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/flowctl/internal/store"
	"github.com/imkarma/flowctl/internal/task"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If popup is active, handle popup keys first.
		if m.popup != popupNone {
			return m.handlePopupKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vw := m.width - 4
		vh := m.height - 6
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.treeView.Width = vw
		m.treeView.Height = vh
		m.syncTreeView()
		return m, nil

	case runningLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setError("Failed to load running tasks", msg.err)
			return m, nil
		}
		m.running = msg.tasks
		m.clampCursor()
		return m, nil

	case treeLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setError("Failed to load tree", msg.err)
			return m, nil
		}
		m.setTree(msg.tree)
		m.screen = screenTree
		return m, nil

	case createDoneMsg:
		if msg.err != nil {
			m.setError("Create failed", msg.err)
			return m, nil
		}
		m.record(msg.res.RootTaskID, msg.name, store.ActionCreated)
		m.setStatus("Created " + task.ShortID(msg.res.RootTaskID) + ": " + msg.name)
		return m, tea.Batch(m.loadRunning(), m.loadTree(msg.res.RootTaskID))

	case cancelDoneMsg:
		if msg.err != nil {
			m.setError("Cancel failed", msg.err)
			return m, nil
		}
		parts := make([]string, 0, len(msg.outcomes))
		for _, o := range msg.outcomes {
			if task.Status(o.Status) == task.StatusCancelled {
				m.record(o.TaskID, "", store.ActionCancelled)
			}
			p := task.ShortID(o.TaskID) + " " + o.Status
			if o.Message != "" {
				p += " (" + o.Message + ")"
			}
			parts = append(parts, p)
		}
		m.setStatus("Cancel: " + strings.Join(parts, ", "))
		return m, m.refresh()

	case deleteDoneMsg:
		if msg.err != nil {
			m.setError("Delete failed", msg.err)
			return m, nil
		}
		name := ""
		if m.tree != nil {
			if t := task.Find(&m.tree.Task, msg.res.TaskID); t != nil {
				name = t.Name
			}
		}
		m.record(msg.res.TaskID, name, store.ActionDeleted)
		m.setStatus("Deleted " + task.ShortID(msg.res.TaskID))
		if m.tree != nil && m.tree.ID == msg.res.TaskID {
			m.screen = screenRunning
			m.tree = nil
			m.nodes = nil
			return m, m.loadRunning()
		}
		return m, m.refresh()

	case copyDoneMsg:
		if msg.err != nil {
			m.setError("Copy failed", msg.err)
			return m, nil
		}
		m.record(msg.tree.ID, msg.tree.Name, store.ActionCopied)
		m.setStatus("Copied to " + task.ShortID(msg.tree.ID))
		m.nodes = nil
		m.setTree(msg.tree)
		m.screen = screenTree
		return m, nil

	case tickMsg:
		// Auto-refresh every tick.
		cmds := []tea.Cmd{tickCmd(m.opts.Refresh)}
		// Clear old status messages.
		if m.statusMsg != "" && time.Since(m.statusTime) > 5*time.Second {
			m.statusMsg = ""
		}
		// Refresh data if not already loading.
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)
	}

	// Forward to viewport on the tree screen.
	if m.screen == screenTree {
		var cmd tea.Cmd
		m.treeView, cmd = m.treeView.Update(msg)
		return m, cmd
	}

	return m, nil
}

// refresh reloads whatever the current screen shows.
func (m Model) refresh() tea.Cmd {
	if m.screen == screenTree && m.tree != nil {
		return m.loadTree(m.tree.ID)
	}
	return m.loadRunning()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.screen == screenRunning || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m.goBack()

	case "esc":
		return m.goBack()

	case "r":
		return m, m.refresh()

	case "c":
		return m.openCreate()
	}

	switch m.screen {
	case screenRunning:
		return m.handleRunningKey(msg)
	case screenTree:
		return m.handleTreeKey(msg)
	}

	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	if m.screen == screenTree {
		m.screen = screenRunning
		m.tree = nil
		m.nodes = nil
		return m, m.loadRunning()
	}
	return m, nil
}

// --- Running screen keys ---

func (m Model) handleRunningKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.running) - 1
		m.clampCursor()
	case "enter":
		if t := m.selectedRunning(); t != nil {
			return m, m.loadTree(t.ID)
		}
	case "x":
		if t := m.selectedRunning(); t != nil {
			return m.openConfirm(confirmCancel, t.ID), nil
		}
	case "X":
		if t := m.selectedRunning(); t != nil {
			return m.openConfirm(confirmForceCancel, t.ID), nil
		}
	}
	return m, nil
}

// --- Tree screen keys ---

func (m Model) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.treeCursor++
		m.clampCursor()
		m.syncTreeView()
		return m, nil
	case "k", "up":
		m.treeCursor--
		m.clampCursor()
		m.syncTreeView()
		return m, nil
	case "x":
		if t := m.selectedNode(); t != nil {
			return m.openConfirm(confirmCancel, t.ID), nil
		}
	case "X":
		if t := m.selectedNode(); t != nil {
			return m.openConfirm(confirmForceCancel, t.ID), nil
		}
	case "d":
		if t := m.selectedNode(); t != nil {
			return m.openConfirm(confirmDelete, t.ID), nil
		}
	case "y":
		if m.tree != nil {
			m.setStatus("Copying " + task.ShortID(m.tree.ID) + "...")
			return m, m.doCopy(m.tree.ID)
		}
	}

	// Page keys scroll the viewport.
	var cmd tea.Cmd
	m.treeView, cmd = m.treeView.Update(msg)
	return m, cmd
}

// --- Popups ---

func (m Model) openCreate() (tea.Model, tea.Cmd) {
	m.popup = popupCreate
	m.inputFocused = fieldName
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.inputs[fieldName].SetValue("")
	m.inputs[fieldExecutor].SetValue("")
	m.inputs[fieldInputs].SetValue("{}")
	m.createPriority = task.DefaultPriority
	m.inputs[fieldName].Focus()
	return m, textinput.Blink
}

func (m Model) openConfirm(action confirmAction, taskID string) Model {
	m.popup = popupConfirm
	m.confirm = action
	m.confirmTaskID = taskID
	return m
}

func (m Model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.popup {
	case popupCreate:
		return m.handleCreatePopup(msg)
	case popupConfirm:
		return m.handleConfirmPopup(msg)
	}
	return m, nil
}

func (m Model) handleCreatePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.popup = popupNone
		return m, nil
	case "tab", "shift+tab":
		m.inputs[m.inputFocused].Blur()
		if msg.String() == "tab" {
			m.inputFocused = (m.inputFocused + 1) % numFields
		} else {
			m.inputFocused = (m.inputFocused + numFields - 1) % numFields
		}
		m.inputs[m.inputFocused].Focus()
		return m, textinput.Blink
	case "ctrl+p":
		m.createPriority = (m.createPriority + 1) % 4
		return m, nil
	case "enter":
		prio := m.createPriority
		t, err := task.Draft{
			Name:     m.inputs[fieldName].Value(),
			Executor: m.inputs[fieldExecutor].Value(),
			Inputs:   m.inputs[fieldInputs].Value(),
			Priority: &prio,
		}.Build()
		if err != nil {
			m.setError("Invalid task", err)
			return m, nil
		}
		m.popup = popupNone
		m.setStatus("Creating " + t.Name + "...")
		return m, m.doCreate(t)
	}

	// Forward to the active text input.
	var cmd tea.Cmd
	m.inputs[m.inputFocused], cmd = m.inputs[m.inputFocused].Update(msg)
	return m, cmd
}

func (m Model) handleConfirmPopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.popup = popupNone
		switch m.confirm {
		case confirmCancel:
			return m, m.doCancel(m.confirmTaskID, false)
		case confirmForceCancel:
			return m, m.doCancel(m.confirmTaskID, true)
		case confirmDelete:
			return m, m.doDelete(m.confirmTaskID)
		}
	case "n", "esc":
		m.popup = popupNone
	}
	return m, nil
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/imkarma/flowctl/internal/task"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle      = lipgloss.NewStyle().Foreground(clrDim)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// statusStyleFor maps a status to its badge style.
func statusStyleFor(s task.Status) lipgloss.Style {
	switch s {
	case task.StatusCompleted:
		return lipgloss.NewStyle().Foreground(clrGreen)
	case task.StatusFailed:
		return lipgloss.NewStyle().Foreground(clrRed)
	case task.StatusInProgress:
		return lipgloss.NewStyle().Foreground(clrBlue)
	case task.StatusCancelled:
		return lipgloss.NewStyle().Foreground(clrDim)
	default:
		return lipgloss.NewStyle().Foreground(clrYellow)
	}
}

func badge(s task.Status) string {
	return statusStyleFor(s).Render("[" + string(s) + "]")
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenRunning:
		content = m.viewRunning()
	case screenTree:
		content = m.viewTree()
	}

	// Overlay popup if active.
	if m.popup != popupNone {
		content = m.overlayPopup(content)
	}
	return content
}

func (m Model) header(title, sub string) string {
	header := titleStyle.Render(title) + dimStyle.Render(sub)
	right := dimStyle.Render(m.opts.BaseURL)
	if m.width > 0 {
		pad := m.width - lipgloss.Width(header) - lipgloss.Width(right)
		if pad > 0 {
			return header + strings.Repeat(" ", pad) + right
		}
	}
	return header
}

func (m Model) footer(keys ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(keys); i += 2 {
		b.WriteString(footerKeyStyle.Render(keys[i]))
		b.WriteString(footerDescStyle.Render(" " + keys[i+1] + "  "))
	}
	line := b.String()
	if m.statusMsg != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		line = style.Render(m.statusMsg) + "\n" + line
	}
	return line
}

// --- Running screen ---

func (m Model) viewRunning() string {
	var b strings.Builder
	b.WriteString(m.header("flowctl", fmt.Sprintf(" · %d running", len(m.running))))
	b.WriteString("\n\n")

	if len(m.running) == 0 {
		b.WriteString(dimStyle.Render("  No running tasks. Press c to create one."))
		b.WriteString("\n")
	}
	for i, t := range m.running {
		cursor := "  "
		name := t.Name
		if i == m.cursor {
			cursor = selectedStyle.Render("▸ ")
			name = selectedStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s%-14s %s %s %s\n",
			cursor, task.ShortID(t.ID), name, badge(t.Status), progressBar(t.Progress, 20))
	}

	b.WriteString("\n")
	b.WriteString(m.footer("enter", "tree", "c", "new", "x", "cancel", "X", "force", "r", "refresh", "q", "quit"))
	return b.String()
}

func progressBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(p*float64(width) + 0.5)
	return lipgloss.NewStyle().Foreground(clrBlue).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", int(p*100+0.5))
}

// --- Tree screen ---

// treeLines renders the flattened tree, one line per node.
func (m Model) treeLines() []string {
	lines := make([]string, 0, len(m.nodes))
	for i, n := range m.nodes {
		t := n.Task
		prefix := strings.Repeat("  ", n.Depth)
		if n.Depth > 0 {
			prefix += "› "
		}
		name := t.Name
		if i == m.treeCursor {
			name = selectedStyle.Render(name)
		}
		line := prefix + name + " " + badge(t.EffectiveStatus())
		if pct, ok := t.ProgressPercent(); ok {
			line += fmt.Sprintf(" %d%%", pct)
		}
		line += dimStyle.Render(" (" + task.ShortID(t.ID) + ")")
		if t.Error != "" {
			line += " " + errorStyle.Render(t.Error)
		}
		lines = append(lines, line)
	}
	return lines
}

// syncTreeView refreshes the viewport content and keeps the cursor visible.
func (m *Model) syncTreeView() {
	m.treeView.SetContent(strings.Join(m.treeLines(), "\n"))
	switch {
	case m.treeCursor < m.treeView.YOffset:
		m.treeView.SetYOffset(m.treeCursor)
	case m.treeCursor >= m.treeView.YOffset+m.treeView.Height:
		m.treeView.SetYOffset(m.treeCursor - m.treeView.Height + 1)
	}
}

func (m Model) viewTree() string {
	var b strings.Builder
	if m.tree == nil {
		return dimStyle.Render("Loading...")
	}

	counts := task.CountByStatus(&m.tree.Task)
	sub := fmt.Sprintf(" · %d tasks, %d done, %d running, %d failed",
		len(m.nodes), counts[task.StatusCompleted], counts[task.StatusInProgress], counts[task.StatusFailed])
	b.WriteString(m.header(m.tree.Name, sub))
	b.WriteString("\n\n")
	b.WriteString(m.treeView.View())
	b.WriteString("\n\n")

	if t := m.selectedNode(); t != nil {
		detail := "executor: " + orDash(t.Method())
		if t.OriginalTaskID != "" {
			detail += "  copy of: " + task.ShortID(t.OriginalTaskID)
		}
		if ts, ok := task.Timestamp(t.StartedAt); ok {
			detail += "  started: " + ts.Local().Format("15:04:05")
		}
		if ts, ok := task.Timestamp(t.CompletedAt); ok {
			detail += "  completed: " + ts.Local().Format("15:04:05")
		}
		b.WriteString(dimStyle.Render(detail))
		b.WriteString("\n")
	}

	b.WriteString(m.footer("x", "cancel", "X", "force", "d", "delete", "y", "copy", "r", "refresh", "esc", "back"))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// --- Popups ---

func (m Model) overlayPopup(bg string) string {
	var popup string

	switch m.popup {
	case popupCreate:
		popup = m.viewCreatePopup()
	case popupConfirm:
		popup = m.viewConfirmPopup()
	default:
		return bg
	}

	// Place popup in center of screen.
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			popup,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return popup
}

var priorityLabels = [4]string{"urgent", "high", "normal", "low"}

func (m Model) viewCreatePopup() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New Task") + "\n\n")

	labels := [numFields]string{"Name", "Executor", "Inputs"}
	for i := range m.inputs {
		b.WriteString(dimStyle.Render(labels[i]) + "\n")
		b.WriteString(m.inputs[i].View() + "\n\n")
	}
	b.WriteString(dimStyle.Render("Priority: ") + priorityLabels[m.createPriority%4] + "\n\n")

	if m.statusErr && m.statusMsg != "" {
		b.WriteString(errorStyle.Render(m.statusMsg) + "\n\n")
	}
	b.WriteString(footerKeyStyle.Render("enter") + footerDescStyle.Render(" create  ") +
		footerKeyStyle.Render("tab") + footerDescStyle.Render(" next  ") +
		footerKeyStyle.Render("ctrl+p") + footerDescStyle.Render(" priority  ") +
		footerKeyStyle.Render("esc") + footerDescStyle.Render(" cancel"))
	return popupStyle.Render(b.String())
}

func (m Model) viewConfirmPopup() string {
	var title, body string
	id := task.ShortID(m.confirmTaskID)
	switch m.confirm {
	case confirmCancel:
		title, body = "Cancel Task", "Cancel "+id+"?"
	case confirmForceCancel:
		title, body = "Force Cancel", "Stop "+id+" immediately?"
	case confirmDelete:
		title, body = "Delete Task", "Delete "+id+"? This cannot be undone."
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(clrYellow).Render(title) + "\n\n")
	b.WriteString(body + "\n\n")
	b.WriteString(footerKeyStyle.Render("y") + footerDescStyle.Render(" yes  ") +
		footerKeyStyle.Render("n") + footerDescStyle.Render(" no"))
	return popupStyle.Render(b.String())
}

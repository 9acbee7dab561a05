package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/task"
)

var (
	colorBold  = color.New(color.Bold)
	colorDim   = color.New(color.Faint)
	colorCyan  = color.New(color.FgCyan)
	colorRed   = color.New(color.FgRed)
	colorGreen = color.New(color.FgGreen)
)

// statusColor maps a status to its badge color.
func statusColor(s task.Status) *color.Color {
	switch s {
	case task.StatusCompleted:
		return color.New(color.FgGreen)
	case task.StatusFailed:
		return color.New(color.FgRed)
	case task.StatusInProgress:
		return color.New(color.FgBlue)
	case task.StatusCancelled:
		return color.New(color.Faint)
	default:
		return color.New(color.FgYellow)
	}
}

func badge(s task.Status) string {
	return statusColor(s).Sprintf("[%s]", s)
}

// nodeLine renders one tree node without indentation.
func nodeLine(t *task.Task) string {
	var b strings.Builder
	b.WriteString(colorBold.Sprint(t.Name))
	b.WriteString(" ")
	b.WriteString(badge(t.EffectiveStatus()))
	if pct, ok := t.ProgressPercent(); ok {
		fmt.Fprintf(&b, " %d%%", pct)
	}
	b.WriteString(" ")
	b.WriteString(colorDim.Sprintf("(%s)", task.ShortID(t.ID)))
	if t.IsCopy() {
		b.WriteString(colorDim.Sprintf(" copy of %s", task.ShortID(t.OriginalTaskID)))
	}
	return b.String()
}

// renderTree prints root and its descendants, parent before children, two
// spaces per level, with a chevron in front of every non-root node.
func renderTree(w io.Writer, root *task.Task) error {
	return task.Walk(root, func(n task.Node) error {
		prefix := strings.Repeat("  ", n.Depth)
		if n.Depth > 0 {
			prefix += "› "
		}
		_, err := fmt.Fprintf(w, "%s%s\n", prefix, nodeLine(n.Task))
		if err != nil {
			return err
		}
		if n.Task.Error != "" {
			_, err = fmt.Fprintf(w, "%s  %s\n", strings.Repeat("  ", n.Depth+1), colorRed.Sprint(n.Task.Error))
		}
		return err
	})
}

// renderTask prints the detail view of a single task.
func renderTask(w io.Writer, t *task.Task) {
	fmt.Fprintf(w, "%s %s\n", colorBold.Sprint(t.Name), badge(t.EffectiveStatus()))
	fmt.Fprintf(w, "  ID:       %s\n", t.ID)
	if t.ParentID != "" {
		fmt.Fprintf(w, "  Parent:   %s\n", t.ParentID)
	}
	if m := t.Method(); m != "" {
		fmt.Fprintf(w, "  Executor: %s\n", m)
	}
	if t.Priority != nil {
		fmt.Fprintf(w, "  Priority: %d\n", *t.Priority)
	}
	if t.UserID != "" {
		fmt.Fprintf(w, "  User:     %s\n", t.UserID)
	}
	if pct, ok := t.ProgressPercent(); ok {
		fmt.Fprintf(w, "  Progress: %d%%\n", pct)
	}
	if t.OriginalTaskID != "" {
		fmt.Fprintf(w, "  Copy of:  %s\n", t.OriginalTaskID)
	}
	for _, d := range t.Dependencies {
		req := ""
		if d.Required {
			req = " (required)"
		}
		fmt.Fprintf(w, "  Depends:  %s%s\n", d.ID, req)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", colorRed.Sprint(t.Error))
	}
	if len(t.Inputs) > 0 {
		fmt.Fprintln(w, "  Inputs:")
		printJSON(indentWriter{w}, t.Inputs)
	}
	if len(t.Result) > 0 {
		fmt.Fprintln(w, "  Result:")
		printJSON(indentWriter{w}, t.Result)
	}
}

// renderTimeline prints the timestamps of every node, parent before children.
func renderTimeline(w io.Writer, root *task.Task) error {
	return task.Walk(root, func(n task.Node) error {
		indent := strings.Repeat("  ", n.Depth)
		fmt.Fprintf(w, "%s%s\n", indent, nodeLine(n.Task))
		for _, ev := range []struct{ label, value string }{
			{"created", n.Task.CreatedAt},
			{"started", n.Task.StartedAt},
			{"completed", n.Task.CompletedAt},
			{"updated", n.Task.UpdatedAt},
		} {
			ts, ok := task.Timestamp(ev.value)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s    %-10s %s\n", indent, ev.label+":", ts.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

// renderRunning prints the running-task table.
func renderRunning(w io.Writer, tasks []apflow.RunningTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, colorDim.Sprint("No running tasks."))
		return
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "%-14s %-24s %s %3d%%\n",
			task.ShortID(t.ID), truncate(t.Name, 24), badge(t.Status), int(t.Progress*100+0.5))
	}
}

// renderOutcomes prints per-task outcomes of cancel and status probes.
func renderOutcomes(w io.Writer, outcomes []apflow.TaskStatus) {
	for _, o := range outcomes {
		line := fmt.Sprintf("%-14s %s", task.ShortID(o.TaskID), badge(task.Status(o.Status)))
		if o.Message != "" {
			line += " " + colorDim.Sprint(o.Message)
		}
		fmt.Fprintln(w, line)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// indentWriter prefixes each written line with four spaces.
type indentWriter struct{ w io.Writer }

func (iw indentWriter) Write(p []byte) (int, error) {
	lines := strings.SplitAfter(string(p), "\n")
	for _, l := range lines {
		if l == "" {
			continue
		}
		if _, err := io.WriteString(iw.w, "    "+l); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

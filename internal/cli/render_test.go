package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/task"
)

func init() {
	color.NoColor = true
}

func float(v float64) *float64 { return &v }

func TestRenderTree_IndentAndChevron(t *testing.T) {
	root := task.NewTree(task.Task{
		ID: "root-0000-0000-1111", Name: "Root", Status: task.StatusInProgress, Progress: float(0.5),
		Children: []task.Task{
			{ID: "A", ParentID: "root-0000-0000-1111", Name: "Child A", Status: task.StatusCompleted,
				Children: []task.Task{{ID: "C", ParentID: "A", Name: "Grandchild"}}},
			{ID: "B", ParentID: "root-0000-0000-1111", Name: "Child B", Status: task.StatusFailed, Error: "boom"},
		},
	})

	var buf bytes.Buffer
	if err := renderTree(&buf, &root.Task); err != nil {
		t.Fatalf("renderTree: %v", err)
	}

	want := []string{
		"Root [in_progress] 50% (root...1111)",
		"  › Child A [completed] (A)",
		"    › Grandchild [pending] (C)",
		"  › Child B [failed] (B)",
		"      boom",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNodeLine_NoProgressWhenAbsent(t *testing.T) {
	line := nodeLine(&task.Task{ID: "x", Name: "n"})
	if strings.Contains(line, "%") {
		t.Errorf("expected no progress, got %q", line)
	}
}

func TestNodeLine_Copy(t *testing.T) {
	line := nodeLine(&task.Task{ID: "x", Name: "n", OriginalTaskID: "orig"})
	if !strings.Contains(line, "copy of orig") {
		t.Errorf("expected copy marker, got %q", line)
	}
}

func TestRenderTimeline(t *testing.T) {
	root := task.NewTree(task.Task{
		ID: "R", Name: "Root", CreatedAt: "2024-05-01T10:00:00Z", StartedAt: "2024-05-01T10:00:05Z",
		Children: []task.Task{{ID: "A", ParentID: "R", Name: "A", CreatedAt: "2024-05-01T10:00:01Z"}},
	})

	var buf bytes.Buffer
	if err := renderTimeline(&buf, &root.Task); err != nil {
		t.Fatalf("renderTimeline: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "created:") != 2 {
		t.Errorf("expected two created lines:\n%s", out)
	}
	if strings.Count(out, "started:") != 1 || strings.Contains(out, "completed:") {
		t.Errorf("expected only present timestamps:\n%s", out)
	}
	if strings.Index(out, "Root") > strings.Index(out, "  A") {
		t.Errorf("expected parent before child:\n%s", out)
	}
}

func TestRenderRunning(t *testing.T) {
	var buf bytes.Buffer
	renderRunning(&buf, nil)
	if !strings.Contains(buf.String(), "No running tasks") {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	renderRunning(&buf, []apflow.RunningTask{{ID: "t1", Name: "Fetch", Status: task.StatusInProgress, Progress: 0.25}})
	if !strings.Contains(buf.String(), "[in_progress]") || !strings.Contains(buf.String(), "25%") {
		t.Errorf("unexpected row %q", buf.String())
	}
}

func TestRenderOutcomes(t *testing.T) {
	var buf bytes.Buffer
	renderOutcomes(&buf, []apflow.TaskStatus{
		{TaskID: "t1", Status: "completed", Message: "Task already completed"},
		{TaskID: "t2", Status: "cancelled"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "already completed") {
		t.Errorf("expected message on first line, got %q", lines[0])
	}
}

func TestRenderTask_ShowsResult(t *testing.T) {
	var buf bytes.Buffer
	renderTask(&buf, &task.Task{ID: "t1", Name: "Fetch", Result: json.RawMessage(`{"rows":2}`)})
	if !strings.Contains(buf.String(), `"rows": 2`) {
		t.Errorf("expected indented result, got:\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 5); got != "ab..." {
		t.Errorf("expected ab..., got %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("short"); got != "*****" {
		t.Errorf("expected full mask, got %q", got)
	}
	if got := maskToken("eyJhbGciOiJIUzI1NiJ9.payload.sig"); !strings.HasPrefix(got, "eyJh") || !strings.HasSuffix(got, ".sig") {
		t.Errorf("expected ends kept, got %q", got)
	}
}

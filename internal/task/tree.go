package task

import (
	"errors"
	"fmt"
	"strings"
)

// SkipChildren can be returned from a WalkFunc to skip the current node's
// descendants without stopping the walk.
var SkipChildren = errors.New("skip children")

// Node is a task visited during a tree walk.
type Node struct {
	Task   *Task
	Parent *Task // nil for the walk root
	Depth  int   // Distance from the walk root
}

// WalkFunc is called for every node in depth-first, parent-first order.
type WalkFunc func(n Node) error

// Walk visits root and its descendants depth-first, parents before children,
// children in their stored order. Status and progress are left untouched.
func Walk(root *Task, fn WalkFunc) error {
	if root == nil {
		return nil
	}
	err := walk(root, nil, 0, fn)
	if err == SkipChildren {
		return nil
	}
	return err
}

func walk(t, parent *Task, depth int, fn WalkFunc) error {
	if err := fn(Node{Task: t, Parent: parent, Depth: depth}); err != nil {
		return err
	}
	for i := range t.Children {
		err := walk(&t.Children[i], t, depth+1, fn)
		if err == SkipChildren {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns every node of the tree in walk order.
func Flatten(root *Task) []Node {
	var nodes []Node
	_ = Walk(root, func(n Node) error {
		nodes = append(nodes, n)
		return nil
	})
	return nodes
}

// Find returns the first task with the given id, or nil.
func Find(root *Task, id string) *Task {
	var found *Task
	_ = Walk(root, func(n Node) error {
		if n.Task.ID == id {
			found = n.Task
			return errStop
		}
		return nil
	})
	return found
}

var errStop = errors.New("stop")

// Size returns the number of tasks in the tree, root included.
func Size(root *Task) int {
	n := 0
	_ = Walk(root, func(Node) error {
		n++
		return nil
	})
	return n
}

// CountByStatus tallies the effective status of every node. Each node counts
// once under its own status; nothing is rolled up from children.
func CountByStatus(root *Task) map[Status]int {
	counts := make(map[Status]int)
	_ = Walk(root, func(n Node) error {
		counts[n.Task.EffectiveStatus()]++
		return nil
	})
	return counts
}

// LinkMismatch describes a child whose parent_id disagrees with the task that
// lists it as a child.
type LinkMismatch struct {
	ChildID  string
	ParentID string // The id the child claims
	HolderID string // The task holding the child
}

// LinkError lists every parent/child disagreement found in a tree.
type LinkError struct {
	Mismatches []LinkMismatch
}

func (e *LinkError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		claimed := m.ParentID
		if claimed == "" {
			claimed = "<none>"
		}
		parts = append(parts, fmt.Sprintf("%s under %s claims parent %s", m.ChildID, m.HolderID, claimed))
	}
	return "inconsistent task tree: " + strings.Join(parts, "; ")
}

// CheckLinks verifies that every child's parent_id names the task holding
// it. The root itself may point at a parent outside the subtree.
func CheckLinks(root *Task) error {
	var mismatches []LinkMismatch
	_ = Walk(root, func(n Node) error {
		if n.Parent != nil && n.Task.ParentID != n.Parent.ID {
			mismatches = append(mismatches, LinkMismatch{
				ChildID:  n.Task.ID,
				ParentID: n.Task.ParentID,
				HolderID: n.Parent.ID,
			})
		}
		return nil
	})
	if len(mismatches) > 0 {
		return &LinkError{Mismatches: mismatches}
	}
	return nil
}

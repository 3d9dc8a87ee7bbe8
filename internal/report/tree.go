package report

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of a finished step.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Node is one recorded step.
type Node struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Children []*Node       `json:"children,omitempty"`
}

// Leaf reports whether the node has no child steps.
func (n *Node) Leaf() bool {
	return len(n.Children) == 0
}

// Event describes a finished step.
type Event struct {
	Path []string
	Node *Node
	Err  error
}

// Summary counts finished leaf steps.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Total returns the number of counted steps.
func (s Summary) Total() int {
	return s.Passed + s.Failed
}

// Tree is a Step that records every nested step into a result tree.
type Tree struct {
	mu       sync.Mutex
	root     Node
	observer func(Event)
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithObserver calls fn after each step finishes. fn may be called from
// several goroutines at once.
func WithObserver(fn func(Event)) TreeOption {
	return func(t *Tree) {
		t.observer = fn
	}
}

// NewTree creates an empty Tree.
func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Step records a top-level step.
func (t *Tree) Step(ctx context.Context, name string, fn func(ctx context.Context, s Step) error) error {
	return (&treeStep{tree: t, node: &t.root}).Step(ctx, name, fn)
}

// Nodes returns a snapshot of the top-level steps.
func (t *Tree) Nodes() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneNodes(t.root.Children)
}

// Summary counts passed and failed leaf steps.
func (t *Tree) Summary() Summary {
	var s Summary
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if !n.Leaf() {
				walk(n.Children)
				continue
			}
			switch n.Status {
			case StatusPassed:
				s.Passed++
			case StatusFailed:
				s.Failed++
			}
		}
	}
	walk(t.Nodes())
	return s
}

type treeStep struct {
	tree *Tree
	node *Node
	path []string
}

func (s *treeStep) Step(ctx context.Context, name string, fn func(ctx context.Context, s Step) error) error {
	child := &Node{Name: name, Status: StatusRunning}
	s.tree.mu.Lock()
	s.node.Children = append(s.node.Children, child)
	s.tree.mu.Unlock()

	path := make([]string, len(s.path)+1)
	copy(path, s.path)
	path[len(s.path)] = name

	start := time.Now()
	err := fn(ctx, &treeStep{tree: s.tree, node: child, path: path})

	s.tree.mu.Lock()
	child.Duration = time.Since(start)
	if err != nil {
		child.Status = StatusFailed
		child.Error = err.Error()
	} else {
		child.Status = StatusPassed
	}
	snapshot := cloneNode(child)
	s.tree.mu.Unlock()

	if s.tree.observer != nil {
		s.tree.observer(Event{Path: path, Node: snapshot, Err: err})
	}
	return err
}

func cloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Children = cloneNodes(n.Children)
	return &c
}

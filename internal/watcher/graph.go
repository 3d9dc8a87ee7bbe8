package watcher

import (
	"errors"
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
)

// ImportGraph records which source files each entry module was bundled from,
// so a change to a shared dependency reruns every module that imports it.
type ImportGraph struct {
	mu      sync.Mutex
	modules map[string]map[string][]string
	g       graph.Graph[string, string]
}

// NewImportGraph returns an empty graph.
func NewImportGraph() *ImportGraph {
	return &ImportGraph{
		modules: make(map[string]map[string][]string),
		g:       graph.New(graph.StringHash, graph.Directed()),
	}
}

// Record replaces the import edges of entry. imports maps each bundled file
// to the files it imports, as reported by the loader.
func (ig *ImportGraph) Record(entry string, imports map[string][]string) error {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	ig.modules[entry] = imports
	return ig.rebuild()
}

// Forget drops entry, for example after its file was deleted.
func (ig *ImportGraph) Forget(entry string) error {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	if _, ok := ig.modules[entry]; !ok {
		return nil
	}
	delete(ig.modules, entry)
	return ig.rebuild()
}

// Affected returns the recorded entry modules that are, or transitively
// import, one of the changed files.
func (ig *ImportGraph) Affected(changed []string) ([]string, error) {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	want := make(map[string]bool, len(changed))
	for _, c := range changed {
		want[c] = true
	}

	var affected []string
	for entry := range ig.modules {
		found := false
		err := graph.BFS(ig.g, entry, func(v string) bool {
			found = want[v]
			return found
		})
		if err != nil {
			return nil, err
		}
		if found {
			affected = append(affected, entry)
		}
	}
	sort.Strings(affected)
	return affected, nil
}

func (ig *ImportGraph) rebuild() error {
	g := graph.New(graph.StringHash, graph.Directed())
	addVertex := func(v string) error {
		if err := g.AddVertex(v); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return err
		}
		return nil
	}

	for entry, imports := range ig.modules {
		if err := addVertex(entry); err != nil {
			return err
		}
		for from, targets := range imports {
			if err := addVertex(from); err != nil {
				return err
			}
			for _, to := range targets {
				if err := addVertex(to); err != nil {
					return err
				}
				if err := g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return err
				}
			}
		}
	}
	ig.g = g
	return nil
}

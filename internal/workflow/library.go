package workflow

import (
	"fmt"

	"github.com/corescaffold/cogkernel/internal/store"
)

// LoadLibrary reads workflows/library.json. A missing file is not an
// error: it returns an empty library so callers fall back to the
// "engine emits no instruction and does not block" failure semantics
// (spec §4.3).
func LoadLibrary(path string) (Library, error) {
	var lib Library
	if err := store.ReadJSON(path, &lib); err != nil {
		return Library{}, fmt.Errorf("load workflow library %s: %w", path, err)
	}
	return lib, nil
}

// nodeByID looks up a node within a graph.
func (g Graph) nodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// edgesFrom returns every outgoing edge of a node, in the order
// declared in the library (ties within the same condition keep
// declaration order).
func (g Graph) edgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// startNode returns the graph's start node, if any.
func (g Graph) startNode() (Node, bool) {
	for _, n := range g.Nodes {
		if n.Type == NodeStart {
			return n, true
		}
	}
	return Node{}, false
}

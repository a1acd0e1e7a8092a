// Package graph models a snapshot of the live instance graph: nodes are
// instances, edges point from the instance that injected a value to the
// instance of that value.
package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Node is one instance in the snapshot.
type Node struct {
	ID       uint64   `json:"id"`
	Token    string   `json:"token"`
	Scope    string   `json:"scope"`
	Context  string   `json:"context"`
	Injector string   `json:"injector"`
	Status   []string `json:"status,omitempty"`
	Circular bool     `json:"circular,omitempty"`

	// Graph metadata, filled by the graph.
	InDegree  int `json:"parents"`
	OutDegree int `json:"children"`
	Depth     int `json:"depth"`
}

// Edge links a parent instance to a child instance.
type Edge struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Graph holds the nodes and edges of a snapshot.
type Graph struct {
	mu    sync.RWMutex
	nodes map[uint64]*Node
	edges map[uint64][]uint64 // adjacency list, parent -> children

	depthsDirty bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[uint64]*Node),
		edges:       make(map[uint64][]uint64),
		depthsDirty: true,
	}
}

// AddNode adds n, replacing the details of a node with the same id. Degrees
// already counted by AddEdge are kept.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node := n
	if old, ok := g.nodes[n.ID]; ok {
		node.InDegree, node.OutDegree = old.InDegree, old.OutDegree
	} else {
		node.InDegree, node.OutDegree = 0, 0
	}
	g.nodes[n.ID] = &node
	g.depthsDirty = true
}

// AddEdge links from to to. Both nodes are created if missing.
func (g *Graph) AddEdge(from, to uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range [...]uint64{from, to} {
		if _, ok := g.nodes[id]; !ok {
			g.nodes[id] = &Node{ID: id}
		}
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
	g.nodes[from].OutDegree++
	g.nodes[to].InDegree++
	g.depthsDirty = true
}

// Node returns the node with id.
func (g *Graph) Node(id uint64) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns every node ordered by id.
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	g.calculateDepths()
	g.mu.Unlock()

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodes()
}

func (g *Graph) sortedNodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns every edge ordered by parent and then child id.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedEdges()
}

func (g *Graph) sortedEdges() []Edge {
	var out []Edge
	for from, tos := range g.edges {
		for _, to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Children returns the direct children of id.
func (g *Graph) Children(id uint64) []uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := append([]uint64(nil), g.edges[id]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parents returns the direct parents of id.
func (g *Graph) Parents(id uint64) []uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []uint64
	for from, tos := range g.edges {
		for _, to := range tos {
			if to == id {
				out = append(out, from)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roots returns the nodes nothing injected.
func (g *Graph) Roots() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var roots []Node
	for _, n := range g.sortedNodes() {
		if n.InDegree == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Leaves returns the nodes that injected nothing.
func (g *Graph) Leaves() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var leaves []Node
	for _, n := range g.sortedNodes() {
		if n.OutDegree == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// TopologicalSort returns the nodes with parents before their children.
// It fails with a CycleError if the graph has a cycle.
func (g *Graph) TopologicalSort() ([]Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[uint64]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = n.InDegree
	}

	var queue []uint64
	for _, n := range g.sortedNodes() {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	sorted := make([]Node, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, *g.nodes[id])

		children := append([]uint64(nil), g.edges[id]...)
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		for _, child := range children {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		cycles := g.cycles()
		var path []uint64
		if len(cycles) > 0 {
			path = cycles[0]
		}
		return nil, CycleError{Path: path, Labels: g.labels(path)}
	}
	return sorted, nil
}

// Cycles returns the strongly connected groups of more than one node, and
// nodes linked to themselves, each ordered by id.
func (g *Graph) Cycles() [][]uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cycles()
}

// IsAcyclic reports whether the graph has no cycle.
func (g *Graph) IsAcyclic() bool {
	return len(g.Cycles()) == 0
}

// cycles runs Tarjan's algorithm over the graph.
func (g *Graph) cycles() [][]uint64 {
	var (
		index   int
		stack   []uint64
		onStack = make(map[uint64]bool)
		indices = make(map[uint64]int)
		lowlink = make(map[uint64]int)
		out     [][]uint64
	)

	var strongConnect func(id uint64)
	strongConnect = func(id uint64) {
		indices[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, child := range g.edges[id] {
			if _, seen := indices[child]; !seen {
				strongConnect(child)
				lowlink[id] = min(lowlink[id], lowlink[child])
			} else if onStack[child] {
				lowlink[id] = min(lowlink[id], indices[child])
			}
		}

		if lowlink[id] != indices[id] {
			return
		}
		var group []uint64
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			group = append(group, top)
			if top == id {
				break
			}
		}
		if len(group) > 1 || g.selfLinked(id) {
			sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
			out = append(out, group)
		}
	}

	for _, n := range g.sortedNodes() {
		if _, seen := indices[n.ID]; !seen {
			strongConnect(n.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (g *Graph) selfLinked(id uint64) bool {
	for _, child := range g.edges[id] {
		if child == id {
			return true
		}
	}
	return false
}

// calculateDepths sets the depth of every node: roots are 0, a child is one
// deeper than its deepest parent. Nodes in cycles get -1.
func (g *Graph) calculateDepths() {
	if !g.depthsDirty {
		return
	}

	inCycle := make(map[uint64]bool)
	for _, group := range g.cycles() {
		for _, id := range group {
			inCycle[id] = true
		}
	}

	for _, n := range g.nodes {
		n.Depth = 0
		if inCycle[n.ID] {
			n.Depth = -1
		}
	}

	// Longest path relaxation; bounded by the node count outside cycles.
	for range len(g.nodes) {
		changed := false
		for from, tos := range g.edges {
			if inCycle[from] {
				continue
			}
			for _, to := range tos {
				if inCycle[to] {
					continue
				}
				if d := g.nodes[from].Depth + 1; d > g.nodes[to].Depth {
					g.nodes[to].Depth = d
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	g.depthsDirty = false
}

func (g *Graph) labels(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out[i] = n.String()
		} else {
			out[i] = fmt.Sprintf("#%d", id)
		}
	}
	return out
}

// String returns a short description of the node.
func (n Node) String() string {
	if n.Token == "" {
		return fmt.Sprintf("#%d", n.ID)
	}
	return fmt.Sprintf("%s#%d", n.Token, n.ID)
}

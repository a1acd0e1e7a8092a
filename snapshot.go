package hookdi

import (
	"io"

	"github.com/junioryono/hookdi/internal/graph"
)

// SnapshotNode is one instance in a Snapshot.
type SnapshotNode = graph.Node

// SnapshotEdge links the instance that injected a value to its instance.
type SnapshotEdge = graph.Edge

// Snapshot is a point-in-time copy of the instance graph reachable from the
// definitions of an injector tree. Later resolutions do not change it.
type Snapshot struct {
	graph *graph.Graph
}

// Snapshot captures the live instances of inj, its imports and every
// instance they injected, with their parent/child links.
func (inj *Injector) Snapshot() *Snapshot {
	g := graph.New()
	seen := make(map[*Instance]bool)

	var visit func(inst *Instance)
	visit = func(inst *Instance) {
		if seen[inst] {
			return
		}
		seen[inst] = true
		g.AddNode(snapshotNode(inst))

		inst.graph.mu.RLock()
		children := instanceSet(inst.children)
		inst.graph.mu.RUnlock()

		for _, child := range children {
			visit(child)
			g.AddEdge(inst.id, child.id)
		}
	}

	for _, cur := range inj.tree() {
		for _, rec := range cur.Records() {
			for _, def := range rec.Definitions() {
				for _, inst := range def.Instances() {
					visit(inst)
				}
			}
		}
	}
	return &Snapshot{graph: g}
}

// tree returns inj followed by its imports, depth first, once each.
func (inj *Injector) tree() []*Injector {
	var out []*Injector
	seen := make(map[*Injector]bool)
	var walk func(cur *Injector)
	walk = func(cur *Injector) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		out = append(out, cur)

		cur.mu.RLock()
		imports := append([]*Injector(nil), cur.imports...)
		cur.mu.RUnlock()
		for _, imp := range imports {
			walk(imp)
		}
	}
	walk(inj)
	return out
}

func snapshotNode(inst *Instance) graph.Node {
	n := graph.Node{
		ID:       inst.id,
		Token:    TokenName(inst.definition.Token()),
		Context:  inst.context.String(),
		Status:   statusNames(inst.Status()),
		Circular: inst.Has(InstanceCircular),
	}
	if inst.scope != nil {
		n.Scope = inst.scope.Name()
	}
	if host := inst.definition.record.host; host != nil {
		n.Injector = host.String()
	}
	return n
}

func statusNames(st InstanceStatus) []string {
	var names []string
	for _, f := range []struct {
		bit  InstanceStatus
		name string
	}{
		{InstancePending, "pending"},
		{InstanceResolved, "resolved"},
		{InstanceCircular, "circular"},
		{InstanceDestroyed, "destroyed"},
		{InstanceFailed, "failed"},
	} {
		if st&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// Nodes returns the captured instances ordered by id.
func (s *Snapshot) Nodes() []SnapshotNode { return s.graph.Nodes() }

// Edges returns the captured parent to child links.
func (s *Snapshot) Edges() []SnapshotEdge { return s.graph.Edges() }

// Cycles returns the groups of instances that injected each other.
func (s *Snapshot) Cycles() [][]uint64 { return s.graph.Cycles() }

// TopologicalSort orders the instances with injectors before injected.
func (s *Snapshot) TopologicalSort() ([]SnapshotNode, error) { return s.graph.TopologicalSort() }

// WriteDOT renders the snapshot in Graphviz DOT format.
func (s *Snapshot) WriteDOT(w io.Writer) error {
	return graph.NewVisualizer(s.graph).WriteDOT(w)
}

// WriteText renders the snapshot as a level by level listing.
func (s *Snapshot) WriteText(w io.Writer) error {
	return graph.NewVisualizer(s.graph).WriteText(w)
}

// WriteJSON renders the snapshot as JSON.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	return graph.NewVisualizer(s.graph).WriteJSON(w)
}

package graph

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Visualizer renders a graph.
type Visualizer struct {
	graph *Graph
}

// NewVisualizer creates a visualizer for g.
func NewVisualizer(g *Graph) *Visualizer {
	return &Visualizer{graph: g}
}

// WriteDOT writes the graph in Graphviz DOT format.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	nodes := v.graph.Nodes()
	edges := v.graph.Edges()

	var b strings.Builder
	b.WriteString("digraph instances {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, n := range nodes {
		fmt.Fprintf(&b, "  n%d [label=\"%s\", fillcolor=\"%s\", style=filled];\n",
			n.ID, formatNodeLabel(n), nodeColor(n))
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "  n%d -> n%d;\n", e.From, e.To)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes the nodes grouped by depth, then cycles and statistics.
func (v *Visualizer) WriteText(w io.Writer) error {
	nodes := v.graph.Nodes()

	var b strings.Builder
	b.WriteString("Instance Graph:\n")
	b.WriteString("===============\n\n")

	groups := make(map[int][]Node)
	maxDepth := -1
	for _, n := range nodes {
		groups[n.Depth] = append(groups[n.Depth], n)
		maxDepth = max(maxDepth, n.Depth)
	}

	for depth := 0; depth <= maxDepth; depth++ {
		level, ok := groups[depth]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Level %d:\n", depth)
		b.WriteString("--------\n")
		for _, n := range level {
			v.writeNodeDetails(&b, n, "  ")
		}
		b.WriteString("\n")
	}

	if cyc, ok := groups[-1]; ok {
		b.WriteString("Instances in Cycles:\n")
		b.WriteString("--------------------\n")
		for _, n := range cyc {
			v.writeNodeDetails(&b, n, "  ")
		}
		b.WriteString("\n")
	}

	v.writeStatistics(&b, nodes)

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonGraph struct {
	Nodes  []Node     `json:"nodes"`
	Edges  []Edge     `json:"edges"`
	Cycles [][]uint64 `json:"cycles,omitempty"`
}

// WriteJSON writes the nodes, edges and cycles as one JSON document.
func (v *Visualizer) WriteJSON(w io.Writer) error {
	doc := jsonGraph{
		Nodes:  v.graph.Nodes(),
		Edges:  v.graph.Edges(),
		Cycles: v.graph.Cycles(),
	}
	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func formatNodeLabel(n Node) string {
	token := strings.ReplaceAll(n.Token, `"`, `\"`)
	return fmt.Sprintf("%s\\n%s #%d\\nIn:%d Out:%d", token, n.Scope, n.ID, n.InDegree, n.OutDegree)
}

func nodeColor(n Node) string {
	if n.Circular {
		return "salmon"
	}
	switch n.Scope {
	case "singleton":
		return "lightblue"
	case "transient":
		return "lightyellow"
	case "instance", "local":
		return "lightgreen"
	case "resolution", "pooled":
		return "lavender"
	default:
		return "white"
	}
}

func (v *Visualizer) writeNodeDetails(b *strings.Builder, n Node, indent string) {
	fmt.Fprintf(b, "%s%s\n", indent, n.String())
	fmt.Fprintf(b, "%s  Scope: %s\n", indent, n.Scope)
	if n.Context != "" {
		fmt.Fprintf(b, "%s  Context: %s\n", indent, n.Context)
	}
	if n.Injector != "" {
		fmt.Fprintf(b, "%s  Injector: %s\n", indent, n.Injector)
	}
	if len(n.Status) > 0 {
		fmt.Fprintf(b, "%s  Status: %s\n", indent, strings.Join(n.Status, ", "))
	}
	if children := v.graph.Children(n.ID); len(children) > 0 {
		fmt.Fprintf(b, "%s  Children: %s\n", indent, v.names(children))
	}
	if parents := v.graph.Parents(n.ID); len(parents) > 0 {
		fmt.Fprintf(b, "%s  Parents: %s\n", indent, v.names(parents))
	}
}

func (v *Visualizer) names(ids []uint64) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := v.graph.Node(id); ok {
			names[i] = n.String()
		} else {
			names[i] = fmt.Sprintf("#%d", id)
		}
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func (v *Visualizer) writeStatistics(b *strings.Builder, nodes []Node) {
	b.WriteString("Statistics:\n")
	b.WriteString("-----------\n")
	fmt.Fprintf(b, "  Total instances: %d\n", len(nodes))
	fmt.Fprintf(b, "  Total links: %d\n", len(v.graph.Edges()))
	fmt.Fprintf(b, "  Roots (not injected): %d\n", len(v.graph.Roots()))
	fmt.Fprintf(b, "  Leaves (inject nothing): %d\n", len(v.graph.Leaves()))

	if cycles := v.graph.Cycles(); len(cycles) > 0 {
		fmt.Fprintf(b, "  Cycles: %d\n", len(cycles))
	} else {
		b.WriteString("  Cycles: none\n")
	}
}

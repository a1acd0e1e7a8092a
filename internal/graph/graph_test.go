package graph_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/hookdi/internal/graph"
)

func chain(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddNode(graph.Node{ID: 1, Token: "App", Scope: "singleton"})
	g.AddNode(graph.Node{ID: 2, Token: "Service", Scope: "transient"})
	g.AddNode(graph.Node{ID: 3, Token: "Config", Scope: "singleton"})
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(1, 3)
	return g
}

func TestGraph_Degrees(t *testing.T) {
	g := chain(t)

	n, ok := g.Node(3)
	require.True(t, ok)
	assert.Equal(t, 2, n.InDegree)
	assert.Equal(t, 0, n.OutDegree)

	assert.Equal(t, []uint64{2, 3}, g.Children(1))
	assert.Equal(t, []uint64{1, 2}, g.Parents(3))
	assert.Equal(t, 3, g.Size())
}

func TestGraph_DuplicateEdge(t *testing.T) {
	g := chain(t)
	g.AddEdge(1, 2)

	assert.Len(t, g.Edges(), 3)
	n, _ := g.Node(2)
	assert.Equal(t, 1, n.InDegree)
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := chain(t)

	roots := g.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, uint64(1), roots[0].ID)

	leaves := g.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, uint64(3), leaves[0].ID)
}

func TestGraph_Depths(t *testing.T) {
	g := chain(t)

	depths := map[uint64]int{}
	for _, n := range g.Nodes() {
		depths[n.ID] = n.Depth
	}
	assert.Equal(t, map[uint64]int{1: 0, 2: 1, 3: 2}, depths)
}

func TestGraph_TopologicalSort(t *testing.T) {
	sorted, err := chain(t).TopologicalSort()
	require.NoError(t, err)

	ids := make([]uint64, len(sorted))
	for i, n := range sorted {
		ids[i] = n.ID
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestGraph_Cycles(t *testing.T) {
	t.Run("two nodes", func(t *testing.T) {
		g := graph.New()
		g.AddNode(graph.Node{ID: 1, Token: "A"})
		g.AddNode(graph.Node{ID: 2, Token: "B"})
		g.AddNode(graph.Node{ID: 3, Token: "C"})
		g.AddEdge(1, 2)
		g.AddEdge(2, 1)
		g.AddEdge(2, 3)

		assert.Equal(t, [][]uint64{{1, 2}}, g.Cycles())
		assert.False(t, g.IsAcyclic())

		_, err := g.TopologicalSort()
		require.Error(t, err)
		var cycleErr graph.CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []uint64{1, 2}, cycleErr.Path)
		assert.Contains(t, err.Error(), "A#1")
		assert.Contains(t, err.Error(), "(cycle)")

		for _, n := range g.Nodes() {
			if n.ID == 3 {
				assert.Equal(t, 0, n.Depth)
			} else {
				assert.Equal(t, -1, n.Depth)
			}
		}
	})

	t.Run("self link", func(t *testing.T) {
		g := graph.New()
		g.AddEdge(7, 7)
		assert.Equal(t, [][]uint64{{7}}, g.Cycles())
	})

	t.Run("acyclic", func(t *testing.T) {
		assert.True(t, chain(t).IsAcyclic())
		assert.Empty(t, chain(t).Cycles())
	})
}

func TestGraph_ConcurrentOperations(t *testing.T) {
	g := graph.New()

	var wg sync.WaitGroup
	for i := uint64(1); i <= 10; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			g.AddNode(graph.Node{ID: id})
			if id > 1 {
				g.AddEdge(id-1, id)
			}
			_ = g.Nodes()
			_ = g.Cycles()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, g.Size())
	assert.Len(t, g.Edges(), 9)
	assert.True(t, g.IsAcyclic())
}

func TestVisualizer_DOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.NewVisualizer(chain(t)).WriteDOT(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph instances {"))
	assert.Contains(t, out, "n1 -> n2;")
	assert.Contains(t, out, "n2 -> n3;")
	assert.Contains(t, out, "lightblue")
	assert.Contains(t, out, "lightyellow")
}

func TestVisualizer_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.NewVisualizer(chain(t)).WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "Level 0:")
	assert.Contains(t, out, "Level 2:")
	assert.Contains(t, out, "Children: [Service#2, Config#3]")
	assert.Contains(t, out, "Total instances: 3")
	assert.Contains(t, out, "Cycles: none")
}

func TestVisualizer_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.NewVisualizer(chain(t)).WriteJSON(&buf))

	var doc struct {
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Nodes, 3)
	assert.Len(t, doc.Edges, 3)
	assert.Equal(t, "Config", doc.Nodes[2].Token)
	assert.Equal(t, 2, doc.Nodes[2].Depth)
}

func TestVisualizer_EmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, graph.NewVisualizer(graph.New()).WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"nodes": []`)
	assert.NotContains(t, buf.String(), "cycles")
}

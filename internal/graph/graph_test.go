package graph

import "testing"

func TestAddNodeAddEdge(t *testing.T) {
	g := New[string, int]()
	a := g.AddNode("a")
	b := g.AddNode("b")

	e, err := g.AddEdge(a, b, 42)
	if err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	w, ok := g.EdgeWeight(e)
	if !ok || w != 42 {
		t.Fatalf("EdgeWeight = %v, %v; want 42, true", w, ok)
	}

	from, to, ok := g.EdgeEndpoints(e)
	if !ok || from != a || to != b {
		t.Fatalf("EdgeEndpoints = %v, %v, %v; want %v, %v, true", from, to, ok, a, b)
	}
}

func TestAddEdgeInvalidIndexDoesNotPanic(t *testing.T) {
	g := New[string, int]()
	a := g.AddNode("a")

	if _, err := g.AddEdge(a, NodeIndex(100), 0); err != ErrInvalidIndex {
		t.Fatalf("AddEdge with bad target index: got %v, want ErrInvalidIndex", err)
	}
	if _, err := g.AddEdge(NodeIndex(-1), a, 0); err != ErrInvalidIndex {
		t.Fatalf("AddEdge with bad source index: got %v, want ErrInvalidIndex", err)
	}
}

func TestNodeWeightUnknownIndex(t *testing.T) {
	g := New[string, int]()
	if _, ok := g.NodeWeight(NodeIndex(5)); ok {
		t.Fatal("NodeWeight on unknown index should return ok=false")
	}
	if _, ok := g.EdgeWeight(EdgeIndex(5)); ok {
		t.Fatal("EdgeWeight on unknown index should return ok=false")
	}
}

func TestSuccessorsAndCounts(t *testing.T) {
	g := New[string, int]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	if _, err := g.AddEdge(a, b, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddEdge(a, c, 2); err != nil {
		t.Fatal(err)
	}

	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Fatalf("NodeCount/EdgeCount = %d/%d; want 3/2", g.NodeCount(), g.EdgeCount())
	}

	succ := g.Successors(a)
	if len(succ) != 2 || succ[0] != b || succ[1] != c {
		t.Fatalf("Successors(a) = %v; want [%v %v]", succ, b, c)
	}
	if len(g.Successors(b)) != 0 {
		t.Fatalf("Successors(b) should be empty")
	}
}

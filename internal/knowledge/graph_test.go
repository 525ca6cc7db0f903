package knowledge_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
)

func ids(nodes []knowledge.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func seedGraph(t *testing.T) *knowledge.Graph {
	t.Helper()
	g, err := knowledge.LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	return g
}

func TestLoadSeed(t *testing.T) {
	g := seedGraph(t)
	if g.Len() != 9 {
		t.Errorf("Len() = %d, want 9", g.Len())
	}

	n, err := g.Node(t.Context(), "g5-comp-02")
	if err != nil {
		t.Fatalf("Node() error = %v", err)
	}
	if n.Difficulty != 4 {
		t.Errorf("Difficulty = %v, want 4", n.Difficulty)
	}
	if !slices.Equal(n.Prerequisites, []string{"g5-comp-01", "g4-comp-02"}) {
		t.Errorf("Prerequisites = %v", n.Prerequisites)
	}
	if !n.Metadata.IsCore || len(n.Metadata.KeyConcepts) == 0 {
		t.Errorf("Metadata not decoded: %+v", n.Metadata)
	}
}

func TestGraph_NodeNotFound(t *testing.T) {
	g := seedGraph(t)
	_, err := g.Node(t.Context(), "missing")
	if !errors.Is(err, knowledge.ErrNodeNotFound) {
		t.Errorf("Node(missing) error = %v, want ErrNodeNotFound", err)
	}
	if _, err := g.Dependents(t.Context(), "missing"); !errors.Is(err, knowledge.ErrNodeNotFound) {
		t.Errorf("Dependents(missing) error = %v, want ErrNodeNotFound", err)
	}
}

func TestGraph_NodesByGrade(t *testing.T) {
	g := seedGraph(t)

	got, err := g.NodesByGrade(t.Context(), 4)
	if err != nil {
		t.Fatalf("NodesByGrade() error = %v", err)
	}
	want := []string{"g4-comp-01", "g4-comp-02", "g4-geo-01"}
	if !slices.Equal(ids(got), want) {
		t.Errorf("NodesByGrade(4) = %v, want %v", ids(got), want)
	}

	empty, err := g.NodesByGrade(t.Context(), 3)
	if err != nil {
		t.Fatalf("NodesByGrade(3) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("NodesByGrade(3) = %v, want empty", ids(empty))
	}
}

func TestGraph_LearningPath(t *testing.T) {
	g := seedGraph(t)

	tests := []struct {
		grade int
		want  []string
	}{
		{4, []string{"g4-comp-01", "g4-comp-02", "g4-geo-01"}},
		{5, []string{"g5-comp-01", "g5-geo-01", "g5-comp-02"}},
		{6, []string{"g6-comp-01", "g6-comp-02", "g6-geo-01"}},
		{7, []string{}},
	}

	for _, tt := range tests {
		path, err := g.LearningPath(t.Context(), tt.grade)
		if err != nil {
			t.Fatalf("LearningPath(%d) error = %v", tt.grade, err)
		}
		if !slices.Equal(ids(path), tt.want) {
			t.Errorf("LearningPath(%d) = %v, want %v", tt.grade, ids(path), tt.want)
		}
	}
}

func TestGraph_PrerequisitesAndDependents(t *testing.T) {
	g := seedGraph(t)

	pre, err := g.Prerequisites(t.Context(), "g6-comp-02")
	if err != nil {
		t.Fatalf("Prerequisites() error = %v", err)
	}
	if !slices.Equal(ids(pre), []string{"g6-comp-01", "g5-comp-02"}) {
		t.Errorf("Prerequisites(g6-comp-02) = %v", ids(pre))
	}

	deps, err := g.Dependents(t.Context(), "g4-comp-01")
	if err != nil {
		t.Fatalf("Dependents() error = %v", err)
	}
	if !slices.Equal(ids(deps), []string{"g4-comp-02", "g5-comp-01"}) {
		t.Errorf("Dependents(g4-comp-01) = %v", ids(deps))
	}

	leaf, _ := g.Dependents(t.Context(), "g6-geo-01")
	if len(leaf) != 0 {
		t.Errorf("Dependents(g6-geo-01) = %v, want empty", ids(leaf))
	}
}

func TestGraph_ReturnsCopies(t *testing.T) {
	g := seedGraph(t)

	n, _ := g.Node(t.Context(), "g5-comp-02")
	n.Prerequisites[0] = "tampered"

	again, _ := g.Node(t.Context(), "g5-comp-02")
	if again.Prerequisites[0] != "g5-comp-01" {
		t.Errorf("graph mutated through returned node: %v", again.Prerequisites)
	}
}

func TestNewGraph_Rejects(t *testing.T) {
	node := func(id string, pre ...string) knowledge.Node {
		return knowledge.Node{ID: id, Name: id, Grade: 4, Module: "computation", Difficulty: 2, Prerequisites: pre}
	}

	tests := []struct {
		name      string
		nodes     []knowledge.Node
		wantCycle bool
	}{
		{"empty id", []knowledge.Node{node("")}, false},
		{"duplicate", []knowledge.Node{node("a"), node("a")}, false},
		{"grade out of range", []knowledge.Node{{ID: "a", Grade: 3, Difficulty: 2}}, false},
		{"difficulty out of range", []knowledge.Node{{ID: "a", Grade: 4, Difficulty: 5.5}}, false},
		{"unknown prerequisite", []knowledge.Node{node("a", "ghost")}, false},
		{"self prerequisite", []knowledge.Node{node("a", "a")}, true},
		{"cycle", []knowledge.Node{node("a", "c"), node("b", "a"), node("c", "b")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := knowledge.NewGraph(tt.nodes)
			if err == nil {
				t.Fatal("NewGraph() should return error")
			}
			if got := errors.Is(err, knowledge.ErrCycle); got != tt.wantCycle {
				t.Errorf("errors.Is(err, ErrCycle) = %v, want %v (err = %v)", got, tt.wantCycle, err)
			}
		})
	}
}

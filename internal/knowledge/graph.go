package knowledge

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// Graph is an immutable in-memory knowledge graph. It is safe for
// concurrent use once built.
type Graph struct {
	nodes      map[string]Node
	byGrade    map[int][]string
	dependents map[string][]string
}

// NewGraph validates nodes and builds a graph. Prerequisites must reference
// known nodes and must not form a cycle.
func NewGraph(nodes []Node) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]Node, len(nodes)),
		byGrade:    make(map[int][]string),
		dependents: make(map[string][]string),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %q: id is required", n.Name)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("node %s: duplicate id", n.ID)
		}
		if n.Grade < MinGrade || n.Grade > MaxGrade {
			return nil, fmt.Errorf("node %s: grade %d out of range %d-%d", n.ID, n.Grade, MinGrade, MaxGrade)
		}
		if n.Difficulty < MinDifficulty || n.Difficulty > MaxDifficulty {
			return nil, fmt.Errorf("node %s: difficulty %.2f out of range", n.ID, n.Difficulty)
		}
		g.nodes[n.ID] = n.clone()
	}

	for _, n := range g.nodes {
		for _, pre := range n.Prerequisites {
			if pre == n.ID {
				return nil, fmt.Errorf("node %s: %w (self prerequisite)", n.ID, ErrCycle)
			}
			if _, ok := g.nodes[pre]; !ok {
				return nil, fmt.Errorf("node %s: unknown prerequisite %s", n.ID, pre)
			}
			g.dependents[pre] = append(g.dependents[pre], n.ID)
		}
		g.byGrade[n.Grade] = append(g.byGrade[n.Grade], n.ID)
	}

	for grade := range g.byGrade {
		g.sortByDifficulty(g.byGrade[grade])
	}
	for id := range g.dependents {
		slices.Sort(g.dependents[id])
	}

	all := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		all = append(all, id)
	}
	if order := g.topoSort(all); len(order) != len(all) {
		var stuck []string
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n.ID] = true
		}
		for _, id := range all {
			if !seen[id] {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}

	return g, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// All returns every node ordered by grade, then difficulty.
func (g *Graph) All() []Node {
	out := make([]Node, 0, len(g.nodes))
	for grade := MinGrade; grade <= MaxGrade; grade++ {
		for _, id := range g.byGrade[grade] {
			out = append(out, g.nodes[id].clone())
		}
	}
	return out
}

func (g *Graph) Node(_ context.Context, id string) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n.clone(), nil
}

func (g *Graph) NodesByGrade(_ context.Context, grade int) ([]Node, error) {
	return g.collect(g.byGrade[grade]), nil
}

func (g *Graph) Prerequisites(_ context.Context, id string) ([]Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return g.collect(n.Prerequisites), nil
}

func (g *Graph) Dependents(_ context.Context, id string) ([]Node, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return g.collect(g.dependents[id]), nil
}

func (g *Graph) LearningPath(_ context.Context, grade int) ([]Node, error) {
	return g.topoSort(g.byGrade[grade]), nil
}

// topoSort runs Kahn's algorithm over ids. Edges leaving the set are
// ignored, so a grade's path only waits on prerequisites of the same grade.
func (g *Graph) topoSort(ids []string) []Node {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	inDegree := make(map[string]int, len(ids))
	var frontier []string
	for _, id := range ids {
		for _, pre := range g.nodes[id].Prerequisites {
			if inSet[pre] {
				inDegree[id]++
			}
		}
		if inDegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	out := make([]Node, 0, len(ids))
	for len(frontier) > 0 {
		g.sortByDifficulty(frontier)
		id := frontier[0]
		frontier = frontier[1:]
		out = append(out, g.nodes[id].clone())

		for _, dep := range g.dependents[id] {
			if !inSet[dep] {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				frontier = append(frontier, dep)
			}
		}
	}
	return out
}

func (g *Graph) sortByDifficulty(ids []string) {
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(g.nodes[a].Difficulty, g.nodes[b].Difficulty); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}

func (g *Graph) collect(ids []string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n.clone())
		}
	}
	return out
}

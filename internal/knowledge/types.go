// Package knowledge models the grade 4-6 knowledge graph and the read-only
// contract the adaptive components consume it through.
package knowledge

import (
	"context"
	"errors"
)

var (
	// ErrNodeNotFound is returned when a knowledge ID is not in the graph.
	ErrNodeNotFound = errors.New("knowledge node not found")
	// ErrCycle is returned when prerequisites do not form a DAG.
	ErrCycle = errors.New("knowledge graph contains a prerequisite cycle")
)

// Supported grade range.
const (
	MinGrade = 4
	MaxGrade = 6
)

// Difficulty bounds on the nominal 1-5 scale.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 5.0
)

// Node is a single knowledge point.
type Node struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Grade         int      `yaml:"grade" json:"grade"`
	Module        string   `yaml:"module" json:"module"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	Difficulty    float64  `yaml:"difficulty" json:"difficulty"`
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites"`
	QuestionTypes []string `yaml:"question_types" json:"question_types,omitempty"`
	Metadata      Metadata `yaml:"metadata" json:"metadata"`
}

// Metadata holds free-form teaching notes attached to a node.
type Metadata struct {
	KeyConcepts        []string `yaml:"key_concepts" json:"keyConcepts,omitempty"`
	LearningObjectives []string `yaml:"learning_objectives" json:"learningObjectives,omitempty"`
	CommonMistakes     []string `yaml:"common_mistakes" json:"commonMistakes,omitempty"`
	IsCore             bool     `yaml:"is_core" json:"is_core,omitempty"`
}

// Reader is the query surface over the knowledge graph. Implementations may
// sit on top of remote storage, so every call takes a context and may fail.
type Reader interface {
	Node(ctx context.Context, id string) (Node, error)
	NodesByGrade(ctx context.Context, grade int) ([]Node, error)
	Prerequisites(ctx context.Context, id string) ([]Node, error)
	Dependents(ctx context.Context, id string) ([]Node, error)
	// LearningPath returns the grade's nodes in topological order, choosing
	// the easiest available node first.
	LearningPath(ctx context.Context, grade int) ([]Node, error)
}

func (n Node) clone() Node {
	c := n
	c.Prerequisites = append([]string(nil), n.Prerequisites...)
	c.QuestionTypes = append([]string(nil), n.QuestionTypes...)
	c.Metadata.KeyConcepts = append([]string(nil), n.Metadata.KeyConcepts...)
	c.Metadata.LearningObjectives = append([]string(nil), n.Metadata.LearningObjectives...)
	c.Metadata.CommonMistakes = append([]string(nil), n.Metadata.CommonMistakes...)
	return c
}

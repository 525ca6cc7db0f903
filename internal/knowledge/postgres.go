package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const loadTimeout = 10 * time.Second

// LoadPostgres builds a graph from the knowledge_nodes table.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool) (*Graph, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT id, name, grade, module, description, difficulty,
		        prerequisites, question_types, metadata
		 FROM knowledge_nodes
		 ORDER BY grade, difficulty, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query knowledge nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var meta []byte
		if err := rows.Scan(
			&n.ID,
			&n.Name,
			&n.Grade,
			&n.Module,
			&n.Description,
			&n.Difficulty,
			&n.Prerequisites,
			&n.QuestionTypes,
			&meta,
		); err != nil {
			return nil, fmt.Errorf("scan knowledge node: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", n.ID, err)
			}
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge nodes: %w", err)
	}

	g, err := NewGraph(nodes)
	if err != nil {
		return nil, fmt.Errorf("building knowledge graph: %w", err)
	}

	slog.Info("knowledge graph loaded from postgres", "nodes", g.Len())
	return g, nil
}

// SavePostgres upserts every node of g into knowledge_nodes. It is used to
// seed an empty database from the embedded graph.
func SavePostgres(ctx context.Context, pool *pgxpool.Pool, g *Graph) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	for _, n := range g.All() {
		meta, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", n.ID, err)
		}
		prereqs := n.Prerequisites
		if prereqs == nil {
			prereqs = []string{}
		}
		qtypes := n.QuestionTypes
		if qtypes == nil {
			qtypes = []string{}
		}
		_, err = pool.Exec(ctx,
			`INSERT INTO knowledge_nodes
			   (id, name, grade, module, description, difficulty, prerequisites, question_types, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name,
			   grade = EXCLUDED.grade,
			   module = EXCLUDED.module,
			   description = EXCLUDED.description,
			   difficulty = EXCLUDED.difficulty,
			   prerequisites = EXCLUDED.prerequisites,
			   question_types = EXCLUDED.question_types,
			   metadata = EXCLUDED.metadata`,
			n.ID, n.Name, n.Grade, n.Module, n.Description, n.Difficulty,
			prereqs, qtypes, string(meta),
		)
		if err != nil {
			return fmt.Errorf("upsert knowledge node %s: %w", n.ID, err)
		}
	}
	return nil
}

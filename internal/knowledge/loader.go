package knowledge

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed node.schema.json
var nodeSchemaJSON string

//go:embed seeds/*.yaml
var seedFS embed.FS

var nodeSchema = gojsonschema.NewStringLoader(nodeSchemaJSON)

// seedFile is the on-disk layout: one file per grade or module.
type seedFile struct {
	Nodes []Node `yaml:"nodes"`
}

type rawSeedFile struct {
	Nodes []map[string]any `yaml:"nodes"`
}

// LoadYAML builds a graph from every *.yaml / *.yml file under dir.
func LoadYAML(dir string) (*Graph, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadSeed builds the graph shipped with the binary.
func LoadSeed() (*Graph, error) {
	return LoadFS(seedFS)
}

// LoadFS builds a graph from YAML seed files in fsys. Nodes failing schema
// validation are skipped with a warning; structural problems such as unknown
// prerequisites or cycles are returned as errors.
func LoadFS(fsys fs.FS) (*Graph, error) {
	var nodes []Node

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := path.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		loaded, err := decodeSeed(p, data)
		if err != nil {
			slog.Warn("skipping invalid knowledge YAML", "path", p, "error", err)
			return nil
		}
		nodes = append(nodes, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking knowledge seeds: %w", err)
	}

	g, err := NewGraph(nodes)
	if err != nil {
		return nil, fmt.Errorf("building knowledge graph: %w", err)
	}

	slog.Info("knowledge graph loaded", "nodes", g.Len())
	return g, nil
}

func decodeSeed(p string, data []byte) ([]Node, error) {
	var raw rawSeedFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var typed seedFile
	if err := yaml.Unmarshal(data, &typed); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(typed.Nodes))
	for i, doc := range raw.Nodes {
		if err := validateNode(doc); err != nil {
			slog.Warn("skipping knowledge node", "path", p, "index", i, "error", err)
			continue
		}
		nodes = append(nodes, typed.Nodes[i])
	}
	return nodes, nil
}

func validateNode(doc map[string]any) error {
	result, err := gojsonschema.Validate(nodeSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate node: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
}

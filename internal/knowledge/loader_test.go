package knowledge_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/p-n-ai/pai-adaptive/internal/knowledge"
)

const validYAML = `
nodes:
  - id: k-01
    name: 加法
    grade: 4
    module: computation
    difficulty: 1
    prerequisites: []
  - id: k-02
    name: 减法
    grade: 4
    module: computation
    difficulty: 2
    prerequisites: [k-01]
    metadata:
      key_concepts: [退位]
      is_core: true
`

func TestLoadFS_SkipsSchemaInvalidNodes(t *testing.T) {
	fsys := fstest.MapFS{
		"grade4.yaml": {Data: []byte(validYAML + `
  - id: k-03
    name: 超纲
    grade: 9
    module: computation
    difficulty: 2
  - id: k-04
    name: 未知模块
    grade: 4
    module: music
    difficulty: 2
`)},
	}

	g, err := knowledge.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}

	n, err := g.Node(t.Context(), "k-02")
	if err != nil {
		t.Fatalf("Node(k-02) error = %v", err)
	}
	if !n.Metadata.IsCore || len(n.Metadata.KeyConcepts) != 1 {
		t.Errorf("Metadata = %+v", n.Metadata)
	}
}

func TestLoadFS_SkipsBrokenFilesAndOtherExtensions(t *testing.T) {
	fsys := fstest.MapFS{
		"ok.yml":      {Data: []byte(validYAML)},
		"broken.yaml": {Data: []byte("nodes: [unterminated")},
		"README.md":   {Data: []byte("# notes")},
	}

	g, err := knowledge.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
}

func TestLoadFS_UnknownPrerequisiteFails(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": {Data: []byte(`
nodes:
  - id: k-01
    name: 加法
    grade: 4
    module: computation
    difficulty: 1
    prerequisites: [ghost]
`)},
	}

	if _, err := knowledge.LoadFS(fsys); err == nil {
		t.Error("LoadFS() should fail on unknown prerequisite")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "grade4")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "computation.yaml"), []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := knowledge.LoadYAML(dir)
	if err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}

	path, _ := g.LearningPath(t.Context(), 4)
	if got := ids(path); len(got) != 2 || got[0] != "k-01" {
		t.Errorf("LearningPath(4) = %v", got)
	}
}

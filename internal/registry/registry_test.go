package registry

import (
	"os"
	"path/filepath"
	"testing"

	"xrayd/pkg/types"
)

func writeWeights(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("onnx"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return p
}

func specs(t *testing.T, dir string, ids ...string) []types.ModelSpec {
	t.Helper()
	out := make([]types.ModelSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.ModelSpec{
			ID:         id,
			Path:       writeWeights(t, dir, id+".onnx"),
			InputShape: []int64{1, 3, 224, 224},
			Labels:     []string{"COVID", "Normal", "Pneumonia"},
		})
	}
	return out
}

func TestNewValidRegistry(t *testing.T) {
	dir := t.TempDir()
	r, err := New(specs(t, dir, "a", "b", "c"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 models, got %d", r.Len())
	}
	// declaration order preserved
	ms := r.Models()
	if ms[0].ID != "a" || ms[1].ID != "b" || ms[2].ID != "c" {
		t.Fatalf("order not preserved: %+v", ms)
	}
	if r.Index("b") != 1 || r.Index("nope") != -1 {
		t.Fatalf("index lookup broken")
	}
	// memory estimated from file size when unset
	if ms[0].MemoryMB <= 0 {
		t.Fatalf("memory estimate missing: %+v", ms[0])
	}
}

func TestModelsReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	r, err := New(specs(t, dir, "a", "b"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out := r.Models()
	out[0].ID = "mutated"
	if got := r.Models()[0].ID; got != "a" {
		t.Fatalf("registry mutated via returned slice: %s", got)
	}
}

func TestNewRejectsEmptyManifest(t *testing.T) {
	if _, err := New(nil); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsMissingWeights(t *testing.T) {
	dir := t.TempDir()
	ss := specs(t, dir, "a")
	ss[0].Path = filepath.Join(dir, "absent.onnx")
	if _, err := New(ss); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsEmptyLabels(t *testing.T) {
	dir := t.TempDir()
	ss := specs(t, dir, "a")
	ss[0].Labels = nil
	if _, err := New(ss); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsMismatchedLabelSpaces(t *testing.T) {
	dir := t.TempDir()
	ss := specs(t, dir, "a", "b")
	ss[1].Labels = []string{"COVID", "Normal"}
	if _, err := New(ss); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	ss := specs(t, dir, "a")
	ss = append(ss, ss[0])
	if _, err := New(ss); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	w := writeWeights(t, dir, "densenet.onnx")
	manifest := "models:\n" +
		"  - id: densenet121-chest\n" +
		"    path: " + w + "\n" +
		"    family: densenet\n" +
		"    input_shape: [1, 3, 224, 224]\n" +
		"    labels: [COVID, Normal, Pneumonia]\n" +
		"    memory_mb: 1200\n"
	p := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(p, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	r, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s, ok := r.Get("densenet121-chest")
	if !ok {
		t.Fatalf("model not found")
	}
	if s.Family != "densenet" || s.MemoryMB != 1200 || s.InputSize() != 224 {
		t.Fatalf("unexpected spec: %+v", s)
	}
	if got := r.Labels(); len(got) != 3 || got[0] != "COVID" {
		t.Fatalf("unexpected labels: %v", got)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	if _, err := Load("/no/such/manifest.yaml"); !IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

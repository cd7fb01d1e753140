package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"xrayd/internal/common/fsutil"
	"xrayd/pkg/types"
)

// Registry is the ordered, read-only set of candidate models. Built once at
// startup; no mutation path is exposed afterwards.
type Registry struct {
	models []types.ModelSpec
}

// manifest is the on-disk shape of the model declaration file.
type manifest struct {
	Models []types.ModelSpec `yaml:"models"`
}

// Load reads a YAML manifest and validates every declared model. Validation
// is fail-fast: an unreachable weight file, an empty label space, or label
// spaces that differ between models abort startup with a ConfigurationError.
func Load(path string) (*Registry, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, ErrConfiguration(fmt.Sprintf("manifest path: %v", err))
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, ErrConfiguration(fmt.Sprintf("read manifest: %v", err))
	}
	var m manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, ErrConfiguration(fmt.Sprintf("parse manifest: %v", err))
	}
	return New(m.Models)
}

// New builds a validated registry from already-parsed specs.
func New(specs []types.ModelSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, ErrConfiguration("manifest declares no models")
	}
	seen := make(map[string]bool, len(specs))
	out := make([]types.ModelSpec, 0, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return nil, ErrConfiguration(fmt.Sprintf("model #%d has empty id", i))
		}
		if seen[s.ID] {
			return nil, ErrConfiguration("duplicate model id: " + s.ID)
		}
		seen[s.ID] = true
		p, err := fsutil.ExpandHome(s.Path)
		if err != nil {
			return nil, ErrConfiguration(fmt.Sprintf("model %s: %v", s.ID, err))
		}
		s.Path = p
		if !fsutil.PathExists(s.Path) {
			return nil, ErrConfiguration(fmt.Sprintf("model %s: weight file unreachable: %s", s.ID, s.Path))
		}
		if len(s.Labels) == 0 {
			return nil, ErrConfiguration("model " + s.ID + ": empty label space")
		}
		if i > 0 && !sameLabels(out[0].Labels, s.Labels) {
			return nil, ErrConfiguration(fmt.Sprintf("model %s: label space differs from %s; consensus requires a shared label space", s.ID, out[0].ID))
		}
		if s.MemoryMB <= 0 {
			s.MemoryMB = fsutil.SizeMB(s.Path)
		}
		out = append(out, s)
	}
	return &Registry{models: out}, nil
}

// Models returns the specs in declaration order. Returns a copy so callers
// cannot mutate the registry.
func (r *Registry) Models() []types.ModelSpec {
	out := make([]types.ModelSpec, len(r.models))
	copy(out, r.models)
	return out
}

// Len reports the number of registered models.
func (r *Registry) Len() int { return len(r.models) }

// Labels returns the shared label space.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.models[0].Labels))
	copy(out, r.models[0].Labels)
	return out
}

// Get finds a spec by id.
func (r *Registry) Get(id string) (types.ModelSpec, bool) {
	for _, s := range r.models {
		if s.ID == id {
			return s, true
		}
	}
	return types.ModelSpec{}, false
}

// Index returns the declaration position of a model id, or -1.
func (r *Registry) Index(id string) int {
	for i, s := range r.models {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

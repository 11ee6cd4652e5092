package etl

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts a Dataset from an external system.
// Implementations live in etl/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "string" | "file" | "url"
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label and config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every data source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Discover introspects the source and returns the expected schema.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read extracts the full dataset in one pass.
	Read(ctx context.Context, cfg SourceConfig) (*Dataset, error)
}

// String returns the string value of key, or "".
func (c SourceConfig) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Require returns an error naming every required field of spec missing from c.
func (c SourceConfig) Require(spec SourceSpec) error {
	for _, f := range spec.ConfigFields {
		if f.Required && c.String(f.Key) == "" {
			return fmt.Errorf("%s is required", f.Key)
		}
	}
	return nil
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// SourceDeps are the runtime dependencies of a source taken from the registry.
type SourceDeps struct {
	Client *http.Client
	Log    Logger
}

// Binder is implemented by sources that need SourceDeps. Registered values
// are shared templates; WithDeps returns a fresh source bound to deps.
type Binder interface {
	WithDeps(deps SourceDeps) Source
}

// ResolveSource looks up typ and binds deps when the source accepts them.
func ResolveSource(typ string, deps SourceDeps) (Source, error) {
	s, err := GetSource(typ)
	if err != nil {
		return nil, err
	}
	if b, ok := s.(Binder); ok {
		return b.WithDeps(deps), nil
	}
	return s, nil
}

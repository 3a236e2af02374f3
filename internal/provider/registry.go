package provider

import (
	"fmt"
	"os"
	"sort"

	"github.com/dvloznov/billrecon/internal/domain"
	"gopkg.in/yaml.v3"
)

// Registry holds the provider configurations known to the engine.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	providers map[domain.Source]Provider
}

// DefaultRegistry returns a registry with the built-in Alipay and WeChat
// configurations.
func DefaultRegistry() *Registry {
	r := &Registry{providers: make(map[domain.Source]Provider)}
	for _, p := range []Provider{Alipay(), WeChat()} {
		r.providers[p.Source] = p
	}
	return r
}

// NewRegistry builds a registry from explicit configurations.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[domain.Source]Provider, len(providers))}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("NewRegistry: %w", err)
		}
		r.providers[p.Source] = p
	}
	return r, nil
}

// Get returns the configuration for a source.
func (r *Registry) Get(source domain.Source) (Provider, error) {
	p, ok := r.providers[source]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %q", source)
	}
	return p, nil
}

// Sources lists registered sources in sorted order.
func (r *Registry) Sources() []domain.Source {
	out := make([]domain.Source, 0, len(r.providers))
	for s := range r.providers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Detect infers the provider from a bill filename.
func (r *Registry) Detect(filename string) (domain.Source, error) {
	for _, s := range r.Sources() {
		p := r.providers[s]
		if p.Matches(filename) {
			return s, nil
		}
	}
	return "", fmt.Errorf("cannot infer provider from filename %q", filename)
}

// Detect infers the provider from a filename using the built-in registry.
func Detect(filename string) (domain.Source, error) {
	return DefaultRegistry().Detect(filename)
}

type registryFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadFile reads provider configurations from a YAML file and layers them
// over the built-in defaults. A provider whose source matches a built-in
// replaces it entirely.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: failed to read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML provider configurations over the built-in defaults.
func Load(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("Load: failed to parse providers: %w", err)
	}

	r := DefaultRegistry()
	for _, p := range f.Providers {
		if p.Summary.ScanRows == 0 {
			p.Summary.ScanRows = DefaultScanRows
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		r.providers[p.Source] = p
	}
	return r, nil
}

// Package metadata loads document descriptors from YAML files.
//
// A descriptor file declares one or more documents:
//
//	documents:
//	  - repository: product
//	    namespace: App\Product
//	    proxy_namespace: App\ProductProxy
//	    type: product
//	    properties:
//	      title: {type: text}
package metadata

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/introspection"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/strata/pkg/core"
)

// DefaultPattern matches descriptor files at any depth.
const DefaultPattern = "**/*.{yaml,yml}"

// Definition is one document entry of a descriptor file.
type Definition struct {
	Repository      string `json:"repository" yaml:"repository"`
	core.Descriptor `yaml:",inline"`
	Properties      map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type descriptorFile struct {
	Documents []Definition `yaml:"documents"`
}

// Collector implements core.MetadataCollector.
// It is immutable once built; reload by building a new one.
type Collector struct {
	dir      string
	pattern  string
	logger   *slog.Logger
	types    core.TypesMapping
	bundles  core.BundlesMapping
	fields   map[string]map[string]any // storage type -> properties
	sources  map[string]string         // repository key -> file
	defs     []Definition
	files    int
}

// Option configures a Collector.
type Option func(*Collector)

// WithPattern sets the doublestar pattern used to discover descriptor files.
func WithPattern(pattern string) Option {
	return func(c *Collector) {
		c.pattern = pattern
	}
}

// WithLogger sets the logger for the collector.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

func newCollector(opts ...Option) *Collector {
	c := &Collector{
		pattern: DefaultPattern,
		types:   core.TypesMapping{},
		bundles: core.BundlesMapping{},
		fields:  make(map[string]map[string]any),
		sources: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Load reads every descriptor file under dir.
func Load(dir string, opts ...Option) (*Collector, error) {
	c := newCollector(opts...)
	c.dir = dir

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mapping path %s is not a directory", dir)
	}
	if !doublestar.ValidatePattern(c.pattern) {
		return nil, fmt.Errorf("invalid mapping pattern %q", c.pattern)
	}

	files, err := doublestar.Glob(os.DirFS(dir), c.pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping files: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		data, err := fs.ReadFile(os.DirFS(dir), name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var f descriptorFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for _, def := range f.Documents {
			if err := c.add(def, filepath.ToSlash(name)); err != nil {
				return nil, err
			}
		}
		c.files++
		c.logger.Debug("mapping file loaded", "file", name, "documents", len(f.Documents))
	}

	return c, nil
}

// New builds a collector from in-memory definitions.
func New(defs []Definition, opts ...Option) (*Collector, error) {
	c := newCollector(opts...)
	for i, def := range defs {
		if err := c.add(def, fmt.Sprintf("definition #%d", i)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) add(def Definition, source string) error {
	if def.Repository == "" {
		return fmt.Errorf("%s: document without repository key", source)
	}
	if def.Namespace == "" || def.Type == "" {
		return fmt.Errorf("%s: repository %s needs namespace and type", source, def.Repository)
	}
	if prev, ok := c.sources[def.Repository]; ok {
		return fmt.Errorf("%w: repository %s is declared in %s and %s", core.ErrMappingConflict, def.Repository, prev, source)
	}

	c.sources[def.Repository] = source
	c.types[def.Repository] = def.Namespace
	c.bundles[def.Repository] = def.Descriptor
	c.defs = append(c.defs, def)

	props, ok := c.fields[def.Type]
	if !ok {
		props = make(map[string]any)
		c.fields[def.Type] = props
	}
	for name, field := range def.Properties {
		props[name] = field
	}
	return nil
}

// Types implements core.MetadataCollector.
func (c *Collector) Types() core.TypesMapping {
	out := make(core.TypesMapping, len(c.types))
	for k, v := range c.types {
		out[k] = v
	}
	return out
}

// Descriptors implements core.MetadataCollector.
func (c *Collector) Descriptors() core.BundlesMapping {
	out := make(core.BundlesMapping, len(c.bundles))
	for k, v := range c.bundles {
		out[k] = v
	}
	return out
}

// Mapping returns {"properties": ...} for a known storage type.
func (c *Collector) Mapping(storageType string) (map[string]any, bool) {
	props, ok := c.fields[storageType]
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return map[string]any{"properties": copied}, true
}

// StorageTypes returns every storage type, sorted.
func (c *Collector) StorageTypes() []string {
	out := make([]string, 0, len(c.fields))
	for st := range c.fields {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// Source returns where a repository was declared.
func (c *Collector) Source(repository string) string {
	return c.sources[repository]
}

// Definitions returns the loaded definitions in load order.
func (c *Collector) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Dir returns the directory the collector was loaded from.
func (c *Collector) Dir() string {
	return c.dir
}

// CollectorState exposes internal state for observability.
type CollectorState struct {
	Dir          string   `json:"dir"`
	Pattern      string   `json:"pattern"`
	Files        int      `json:"files"`
	Repositories []string `json:"repositories"`
}

// State implements introspection.Introspectable.
func (c *Collector) State() any {
	return CollectorState{
		Dir:          c.dir,
		Pattern:      c.pattern,
		Files:        c.files,
		Repositories: c.bundles.Keys(),
	}
}

// ComponentType implements introspection.Component.
func (c *Collector) ComponentType() string {
	return "yaml-collector"
}

var _ core.MetadataCollector = (*Collector)(nil)
var _ introspection.Introspectable = (*Collector)(nil)
var _ introspection.Component = (*Collector)(nil)

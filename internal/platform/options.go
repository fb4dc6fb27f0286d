package platform

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/strata/pkg/converter"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/metadata"
)

// options holds the internal configuration for a strata manager.
type options struct {
	connection   core.Connection
	collector    core.MetadataCollector
	definitions  []metadata.Definition
	logger       *slog.Logger
	adapter      string
	config       map[string]interface{}
	constructors map[string]converter.Constructor
}

// Option defines a functional option for configuring strata.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		connection:   nil,
		logger:       nil,
		adapter:      "elastic",
		config:       make(map[string]interface{}),
		constructors: make(map[string]converter.Constructor),
	}
}

// WithLogger sets the logger for the manager and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnection allows injecting a custom connection (e.g. mock, another engine).
// If provided, the adapter selected by WithAdapter is skipped.
func WithConnection(conn core.Connection) Option {
	return func(o *options) {
		o.connection = conn
	}
}

// WithAdapter selects the connection adapter by name ("elastic" or "memory").
// Defaults to "elastic".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithCollector injects the metadata collector, bypassing mapping files.
func WithCollector(collector core.MetadataCollector) Option {
	return func(o *options) {
		o.collector = collector
	}
}

// WithDefinitions declares document mappings in code instead of mapping files.
func WithDefinitions(defs ...metadata.Definition) Option {
	return func(o *options) {
		o.definitions = append(o.definitions, defs...)
	}
}

// WithMappingDir sets the directory holding the YAML descriptor files.
func WithMappingDir(dir string) Option {
	return func(o *options) {
		o.config["mapping_dir"] = dir
	}
}

// WithMappingPattern sets the doublestar pattern of descriptor files inside the mapping directory.
func WithMappingPattern(pattern string) Option {
	return func(o *options) {
		o.config["mapping_pattern"] = pattern
	}
}

// WithAddresses sets the search engine node URLs.
func WithAddresses(addrs ...string) Option {
	return func(o *options) {
		o.config["addresses"] = addrs
	}
}

// WithCredentials sets basic auth credentials for the search engine.
func WithCredentials(username, password string) Option {
	return func(o *options) {
		o.config["username"] = username
		o.config["password"] = password
	}
}

// WithIndexPrefix sets the prefix prepended to storage types to name indices.
func WithIndexPrefix(prefix string) Option {
	return func(o *options) {
		o.config["index_prefix"] = prefix
	}
}

// WithBulkCommitSize sets how many staged operations trigger an automatic commit.
// Zero means default (100).
func WithBulkCommitSize(size int) Option {
	return func(o *options) {
		o.config["bulk_commit_size"] = size
	}
}

// WithTransport overrides the HTTP transport of the search engine client (useful for testing).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.config["transport"] = rt
	}
}

// WithConstructor registers the constructor used to decode documents of a class.
// Classes without one are returned as *core.RawDocument.
func WithConstructor(class string, fn func() core.Document) Option {
	return func(o *options) {
		o.constructors[class] = fn
	}
}

// WithStrict enables strict number parsing in the converter.
// When enabled, numbers are parsed as json.Number (string based)
// to preserve precision of large integers.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.config["strict"] = strict
	}
}

package strata

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/metadata"
)

// --- Types ---

// Manager is a public alias for the persistence manager.
type Manager = core.Manager

// Repository is a public alias for the untyped repository view.
type Repository = core.Repository

// Document is a public alias for the document contract.
type Document = core.Document

// Descriptor is a public alias for a document mapping.
type Descriptor = core.Descriptor

// Definition is a public alias for a mapping declared in code.
type Definition = metadata.Definition

// --- Configuration ---

// Option defines a functional option for configuring strata.
type Option = platform.Option

// WithLogger sets the logger for the manager and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithConnection allows injecting a custom connection.
func WithConnection(conn core.Connection) Option {
	return platform.WithConnection(conn)
}

// WithAdapter allows specifying the connection adapter by name ("elastic" or "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithCollector injects the metadata collector.
func WithCollector(collector core.MetadataCollector) Option {
	return platform.WithCollector(collector)
}

// WithDefinitions declares document mappings in code.
func WithDefinitions(defs ...Definition) Option {
	return platform.WithDefinitions(defs...)
}

// WithMappingDir sets the directory of the YAML descriptor files.
func WithMappingDir(dir string) Option {
	return platform.WithMappingDir(dir)
}

// WithMappingPattern sets the doublestar pattern of descriptor files.
func WithMappingPattern(pattern string) Option {
	return platform.WithMappingPattern(pattern)
}

// WithAddresses sets the search engine node URLs.
func WithAddresses(addrs ...string) Option {
	return platform.WithAddresses(addrs...)
}

// WithCredentials sets basic auth credentials.
func WithCredentials(username, password string) Option {
	return platform.WithCredentials(username, password)
}

// WithIndexPrefix sets the index name prefix.
func WithIndexPrefix(prefix string) Option {
	return platform.WithIndexPrefix(prefix)
}

// WithBulkCommitSize sets how many staged operations trigger an automatic commit.
func WithBulkCommitSize(size int) Option {
	return platform.WithBulkCommitSize(size)
}

// WithTransport overrides the HTTP transport of the search engine client.
func WithTransport(rt http.RoundTripper) Option {
	return platform.WithTransport(rt)
}

// WithConstructor registers the constructor of a document class.
func WithConstructor(class string, fn func() core.Document) Option {
	return platform.WithConstructor(class, fn)
}

// WithStrict enables strict number parsing in the converter.
func WithStrict(strict bool) Option {
	return platform.WithStrict(strict)
}

// --- Factory ---

// New creates a new Manager.
func New(opts ...Option) (*core.Manager, error) {
	return platform.New(opts...)
}

// LoadMappings returns the metadata collector described by opts without connecting anywhere.
func LoadMappings(opts ...Option) (core.MetadataCollector, error) {
	return platform.Collector(opts...)
}

// FindProjectRoot recursively looks upwards for a .strata directory or strata config file.
func FindProjectRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

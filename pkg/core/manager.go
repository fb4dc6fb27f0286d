package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ManagerConfig holds the collaborators of a Manager.
// Types and Bundles default to the collector's mappings when nil.
type ManagerConfig struct {
	Connection   Connection
	Collector    MetadataCollector
	Types        TypesMapping
	Bundles      BundlesMapping
	NewConverter ConverterFactory
	Logger       *slog.Logger
}

// Manager resolves where documents live and stages their writes on a connection.
// It is meant for single-owner use: it does no locking of its own.
type Manager struct {
	conn      Connection
	collector MetadataCollector
	types     TypesMapping
	bundles   BundlesMapping
	converter Converter
	kinds     map[string]string // class name -> repository key
	logger    *slog.Logger
}

// NewManager validates the mappings and builds the converter.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Connection == nil {
		return nil, errors.New("connection is required")
	}
	if cfg.NewConverter == nil {
		return nil, errors.New("converter factory is required")
	}

	types, bundles := cfg.Types, cfg.Bundles
	if cfg.Collector != nil {
		if types == nil {
			types = cfg.Collector.Types()
		}
		if bundles == nil {
			bundles = cfg.Collector.Descriptors()
		}
	}
	types, bundles = types.clone(), bundles.clone()

	kinds, err := indexKinds(types, bundles)
	if err != nil {
		return nil, err
	}

	converter, err := cfg.NewConverter(types.clone(), bundles.clone())
	if err != nil {
		return nil, fmt.Errorf("failed to build converter: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		conn:      cfg.Connection,
		collector: cfg.Collector,
		types:     types,
		bundles:   bundles,
		converter: converter,
		kinds:     kinds,
		logger:    logger,
	}, nil
}

// indexKinds maps every namespace and proxy namespace to its repository key.
// A class name claimed by two repositories is a conflict.
func indexKinds(types TypesMapping, bundles BundlesMapping) (map[string]string, error) {
	for key, class := range types {
		if class == "" {
			return nil, fmt.Errorf("%w: repository %s has an empty class name", ErrMappingConflict, key)
		}
	}

	kinds := make(map[string]string, len(bundles)*2)
	claim := func(kind, key string) error {
		if other, ok := kinds[kind]; ok && other != key {
			return fmt.Errorf("%w: %s is claimed by repositories %s and %s", ErrMappingConflict, kind, other, key)
		}
		kinds[kind] = key
		return nil
	}

	// sorted so the reported pair is stable
	for _, key := range bundles.Keys() {
		d := bundles[key]
		if d.Namespace == "" {
			return nil, fmt.Errorf("%w: repository %s has no namespace", ErrMappingConflict, key)
		}
		if d.Type == "" {
			return nil, fmt.Errorf("%w: repository %s has no storage type", ErrMappingConflict, key)
		}
		if err := claim(d.Namespace, key); err != nil {
			return nil, err
		}
		if d.ProxyNamespace != "" {
			if err := claim(d.ProxyNamespace, key); err != nil {
				return nil, err
			}
		}
	}
	return kinds, nil
}

// GetRepository returns a repository bound to the given keys.
// Every key must exist in the bundles mapping.
func (m *Manager) GetRepository(types ...string) (*Repository, error) {
	if len(types) == 0 {
		return nil, ErrNoRepository
	}
	for _, t := range types {
		if err := m.checkRepositoryType(t); err != nil {
			return nil, err
		}
	}

	bound := make([]string, len(types))
	copy(bound, types)
	return &Repository{manager: m, types: bound}, nil
}

func (m *Manager) checkRepositoryType(t string) error {
	if _, ok := m.bundles[t]; ok {
		return nil
	}
	return &UndefinedRepositoryError{Type: t, Valid: m.bundles.Keys()}
}

// Persist stages an index operation for doc.
func (m *Manager) Persist(ctx context.Context, doc Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrUnmappedDocument)
	}

	mapping, ok := m.DocumentMapping(doc)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmappedDocument, doc.DocumentKind())
	}

	payload, err := m.converter.ConvertToArray(doc)
	if err != nil {
		return fmt.Errorf("failed to convert %s document: %w", doc.DocumentKind(), err)
	}

	m.logger.Debug("persist", "kind", doc.DocumentKind(), "type", mapping.Type, "id", doc.DocumentID())
	return m.conn.Bulk(ctx, OpIndex, mapping.Type, payload)
}

// Commit sends the staged batch.
func (m *Manager) Commit(ctx context.Context) error {
	return m.conn.Commit(ctx)
}

// Flush commits and persists the engine segments.
func (m *Manager) Flush(ctx context.Context) error {
	return m.conn.Flush(ctx)
}

// Refresh makes committed writes visible.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.conn.Refresh(ctx)
}

// DocumentMapping returns the descriptor of doc's kind.
func (m *Manager) DocumentMapping(doc Document) (Descriptor, bool) {
	if doc == nil {
		return Descriptor{}, false
	}
	key, ok := m.kinds[doc.DocumentKind()]
	if !ok {
		return Descriptor{}, false
	}
	return m.bundles[key], true
}

// RepositoryKey returns the repository key of doc's kind.
func (m *Manager) RepositoryKey(doc Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	key, ok := m.kinds[doc.DocumentKind()]
	return key, ok
}

// Converter returns the converter built at construction.
func (m *Manager) Converter() Converter {
	return m.converter
}

func (m *Manager) Connection() Connection {
	return m.conn
}

func (m *Manager) MetadataCollector() MetadataCollector {
	return m.collector
}

// TypesMapping returns a copy of the types mapping.
func (m *Manager) TypesMapping() TypesMapping {
	return m.types.clone()
}

// BundlesMapping returns a copy of the bundles mapping.
func (m *Manager) BundlesMapping() BundlesMapping {
	return m.bundles.clone()
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

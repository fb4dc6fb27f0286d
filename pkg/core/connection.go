package core

import "context"

// Connection defines the contract the manager writes through.
// Bulk stages an operation; Commit sends the staged batch.
// Adhering to this interface keeps the manager independent of the search engine.
type Connection interface {
	// Bulk stages one operation for the given storage type.
	Bulk(ctx context.Context, op Operation, storageType string, payload Payload) error

	// Commit sends every staged operation.
	Commit(ctx context.Context) error

	// Flush commits and asks the engine to persist its segments.
	Flush(ctx context.Context) error

	// Refresh makes committed operations visible to reads.
	Refresh(ctx context.Context) error
}

// Reader is implemented by connections that can fetch a single document.
type Reader interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, storageType, id string) (Hit, error)
}

// Searcher is implemented by connections that can run queries.
type Searcher interface {
	Search(ctx context.Context, storageTypes []string, query Query) (SearchResult, error)
}

// IndexEnsurer is implemented by connections that can create storage for a type.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context, storageType string, mapping map[string]any) error
}

// Pinger is implemented by connections that can check the remote is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Converter turns documents into payloads and hits back into documents.
type Converter interface {
	ConvertToArray(doc Document) (Payload, error)
	ConvertToDocument(hit Hit) (Document, error)
}

// ConverterFactory builds the converter for a manager from its mappings.
type ConverterFactory func(types TypesMapping, bundles BundlesMapping) (Converter, error)

// MetadataCollector supplies the document mappings.
type MetadataCollector interface {
	Types() TypesMapping
	Descriptors() BundlesMapping

	// Mapping returns the engine field mapping of a storage type.
	Mapping(storageType string) (map[string]any, bool)
}

// Package strata is the Composition Root for the strata persistence manager.
//
// It connects the core manager (Domain Layer) with the search engine adapters
// (Persistence Layer) using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// strata maps application documents onto a search engine the way an ORM maps
// objects onto tables. A Manager resolves the mapping of a document, converts it
// into a payload, and stages an index operation on a Connection. The caller
// decides when the batch is committed, flushed or refreshed.
//
// Features:
//
//   - **Explicit Mapping**: Documents name their class via DocumentKind; descriptors map classes to storage types.
//   - **Batched Writes**: Persist stages bulk operations; Commit sends them in one request.
//   - **YAML Descriptors**: Mappings are discovered with doublestar patterns and can be watched for changes.
//   - **Typed Retrieval**: Generic wrapper (`NewTypedRepository[T]`) for type-safe document access.
//   - **Default Adapter (Elasticsearch)**: Out-of-the-box support through the official client; an in-memory adapter serves tests.
//   - **Kafka Ingest**: A worker that routes topics to repositories and commits per batch.
//
// Usage:
//
//	// Initialize the manager with functional options
//	m, err := strata.New(
//		strata.WithMappingDir("./mappings"),
//		strata.WithAddresses("http://localhost:9200"),
//		strata.WithLogger(logger),
//	)
//
//	// Stage and send a document
//	err = m.Persist(ctx, product)
//	err = m.Commit(ctx)
package strata

// Package core holds the persistence manager and the contracts it talks to.
package core

import (
	"encoding/json"
	"sort"
)

// Document is anything the manager can persist.
// DocumentKind is the class identifier matched against a descriptor's
// Namespace or ProxyNamespace.
type Document interface {
	DocumentKind() string
	DocumentID() string
}

// IdentitySetter is implemented by documents that accept the id assigned by the store on read.
type IdentitySetter interface {
	SetDocumentID(id string)
}

// Descriptor tells the manager where a document class lives.
type Descriptor struct {
	Namespace      string `json:"namespace" yaml:"namespace"`
	ProxyNamespace string `json:"proxy_namespace,omitempty" yaml:"proxy_namespace,omitempty"`
	Type           string `json:"type" yaml:"type"`
}


// TypesMapping maps a repository key to the document class name.
type TypesMapping map[string]string

// BundlesMapping maps a repository key to its descriptor.
type BundlesMapping map[string]Descriptor

// Keys returns the repository keys in sorted order.
func (b BundlesMapping) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b BundlesMapping) clone() BundlesMapping {
	out := make(BundlesMapping, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (t TypesMapping) clone() TypesMapping {
	out := make(TypesMapping, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Payload is the storage representation of a document.
type Payload map[string]any

// IDField is the reserved payload key carrying the document id.
const IDField = "_id"

// Operation is a bulk operation kind.
type Operation string

const (
	OpIndex  Operation = "index"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether o is a known bulk operation.
func (o Operation) Valid() bool {
	switch o {
	case OpIndex, OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Hit is a raw document read back from a connection.
// Repository, when set, names the repository key the hit was read for; the
// converter needs it when several repositories share a storage type.
type Hit struct {
	Type       string          `json:"type"`
	Repository string          `json:"repository,omitempty"`
	ID         string          `json:"id"`
	Score      float64         `json:"score,omitempty"`
	Source     json.RawMessage `json:"source"`
}

// Query is a search request. Body is the engine query clause (e.g. {"match_all": {}}).
type Query struct {
	Body map[string]any
	From int
	Size int
}

// SearchResult is the outcome of a Search.
type SearchResult struct {
	Total int64
	Hits  []Hit
}

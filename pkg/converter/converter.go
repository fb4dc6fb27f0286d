// Package converter turns documents into storage payloads and back.
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/introspection"

	"github.com/aretw0/strata/pkg/core"
)

// Constructor returns a new, empty document of one class, ready to be decoded into.
type Constructor func() core.Document

// Converter is the default core.Converter.
// Field names come from the documents' json tags.
type Converter struct {
	types        core.TypesMapping
	bundles      core.BundlesMapping
	byStorage    map[string][]string // storage type -> repository keys
	constructors map[string]Constructor
	strict       bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithConstructor registers the constructor of a document class.
// Classes without one decode into *core.RawDocument.
func WithConstructor(class string, fn Constructor) Option {
	return func(c *Converter) {
		c.constructors[class] = fn
	}
}

// WithStrict enables strict number parsing (as json.Number) to avoid precision loss.
func WithStrict(strict bool) Option {
	return func(c *Converter) {
		c.strict = strict
	}
}

// New creates a converter for the given mappings.
func New(types core.TypesMapping, bundles core.BundlesMapping, opts ...Option) *Converter {
	c := &Converter{
		types:        types,
		bundles:      bundles,
		byStorage:    make(map[string][]string),
		constructors: make(map[string]Constructor),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, key := range bundles.Keys() {
		st := bundles[key].Type
		c.byStorage[st] = append(c.byStorage[st], key)
	}
	return c
}

// Factory adapts New to core.ConverterFactory.
func Factory(opts ...Option) core.ConverterFactory {
	return func(types core.TypesMapping, bundles core.BundlesMapping) (core.Converter, error) {
		return New(types, bundles, opts...), nil
	}
}

// ConvertToArray encodes doc into a payload. The document id, when set, is stored under core.IDField.
func (c *Converter) ConvertToArray(doc core.Document) (core.Payload, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot convert nil document")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	payload := core.Payload{}
	if err := c.decode(data, &payload); err != nil {
		return nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}

	if id := doc.DocumentID(); id != "" {
		payload[core.IDField] = id
	}
	return payload, nil
}

// ConvertToDocument decodes a hit into a document of the class mapped to its
// repository key, or to its storage type when the hit carries no key.
func (c *Converter) ConvertToDocument(hit core.Hit) (core.Document, error) {
	class, err := c.classOf(hit)
	if err != nil {
		return nil, err
	}

	var doc core.Document
	if fn, ok := c.constructors[class]; ok {
		doc = fn()
	} else {
		doc = core.NewRawDocument(class, "", nil)
	}

	if len(hit.Source) > 0 {
		if err := c.decode(hit.Source, doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s document %s: %w", class, hit.ID, err)
		}
	}

	if setter, ok := doc.(core.IdentitySetter); ok && hit.ID != "" {
		setter.SetDocumentID(hit.ID)
	}
	return doc, nil
}

func (c *Converter) classOf(hit core.Hit) (string, error) {
	key, err := c.keyOf(hit)
	if err != nil {
		return "", err
	}
	if class, ok := c.types[key]; ok && class != "" {
		return class, nil
	}
	// types mapping may be sparse; the descriptor knows the class too
	return c.bundles[key].Namespace, nil
}

func (c *Converter) keyOf(hit core.Hit) (string, error) {
	if hit.Repository != "" {
		desc, ok := c.bundles[hit.Repository]
		if !ok {
			return "", &core.UndefinedRepositoryError{Type: hit.Repository, Valid: c.bundles.Keys()}
		}
		if hit.Type != "" && hit.Type != desc.Type {
			return "", fmt.Errorf("repository %s stores %q, not %q", hit.Repository, desc.Type, hit.Type)
		}
		return hit.Repository, nil
	}

	keys := c.byStorage[hit.Type]
	switch len(keys) {
	case 0:
		return "", fmt.Errorf("no repository is mapped to storage type %q", hit.Type)
	case 1:
		return keys[0], nil
	default:
		return "", fmt.Errorf("%w: storage type %q is shared by %v", core.ErrMappingConflict, hit.Type, keys)
	}
}

func (c *Converter) decode(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if c.strict {
		decoder.UseNumber()
	}
	return decoder.Decode(v)
}

// ConverterState exposes internal state for observability.
type ConverterState struct {
	Classes      []string `json:"classes"`
	Constructors []string `json:"constructors"`
	Strict       bool     `json:"strict"`
}

// State implements introspection.Introspectable.
func (c *Converter) State() any {
	classes := make([]string, 0, len(c.types))
	for _, class := range c.types {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	ctors := make([]string, 0, len(c.constructors))
	for class := range c.constructors {
		ctors = append(ctors, class)
	}
	sort.Strings(ctors)

	return ConverterState{Classes: classes, Constructors: ctors, Strict: c.strict}
}

// ComponentType implements introspection.Component.
func (c *Converter) ComponentType() string {
	return "json-converter"
}

var _ core.Converter = (*Converter)(nil)
var _ introspection.Introspectable = (*Converter)(nil)
var _ introspection.Component = (*Converter)(nil)

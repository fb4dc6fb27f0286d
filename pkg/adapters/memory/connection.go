// Package memory provides an in-process core.Connection.
// Writes are staged until Commit and become searchable after Refresh; Get reads committed state.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/introspection"
	"github.com/google/uuid"

	"github.com/aretw0/strata/pkg/core"
)

type stagedOp struct {
	op          core.Operation
	storageType string
	id          string
	source      map[string]any
}

type store map[string]map[string]map[string]any // storage type -> id -> fields

func (s store) clone() store {
	out := make(store, len(s))
	for st, docs := range s {
		copied := make(map[string]map[string]any, len(docs))
		for id, fields := range docs {
			copied[id] = fields
		}
		out[st] = copied
	}
	return out
}

// Connection is a core.Connection kept in memory.
type Connection struct {
	mu        sync.Mutex
	logger    *slog.Logger
	staged    []stagedOp
	committed store
	visible   store
	indices   map[string]map[string]any
	stats     Stats
}

// Stats counts the calls a connection served.
type Stats struct {
	Staged    int `json:"staged"`
	Commits   int `json:"commits"`
	Flushes   int `json:"flushes"`
	Refreshes int `json:"refreshes"`
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger for the connection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// New creates an empty connection.
func New(opts ...Option) *Connection {
	c := &Connection{
		committed: store{},
		visible:   store{},
		indices:   make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Bulk stages an operation. Index and create without an id get a generated one.
func (c *Connection) Bulk(ctx context.Context, op core.Operation, storageType string, payload core.Payload) error {
	if !op.Valid() {
		return fmt.Errorf("unknown bulk operation %q", op)
	}
	if storageType == "" {
		return errors.New("storage type cannot be empty")
	}

	source := make(map[string]any, len(payload))
	var id string
	for k, v := range payload {
		if k == core.IDField {
			id = fmt.Sprint(v)
			continue
		}
		source[k] = v
	}
	if id == "" {
		switch op {
		case core.OpIndex, core.OpCreate:
			id = uuid.NewString()
		default:
			return fmt.Errorf("%s operation requires %s", op, core.IDField)
		}
	}

	// normalize through JSON so reads see what a remote engine would return
	data, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	normalized, err := decode(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = append(c.staged, stagedOp{op: op, storageType: storageType, id: id, source: normalized})
	c.stats.Staged++
	return nil
}

// Commit applies the staged operations in order.
// Failed items are reported together; the others are applied.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

func (c *Connection) commitLocked() error {
	if len(c.staged) == 0 {
		return nil
	}

	var errs []error
	for _, s := range c.staged {
		docs, ok := c.committed[s.storageType]
		if !ok {
			docs = make(map[string]map[string]any)
			c.committed[s.storageType] = docs
		}

		switch s.op {
		case core.OpIndex:
			docs[s.id] = s.source
		case core.OpCreate:
			if _, exists := docs[s.id]; exists {
				errs = append(errs, fmt.Errorf("create %s/%s: document already exists", s.storageType, s.id))
				continue
			}
			docs[s.id] = s.source
		case core.OpUpdate:
			current, exists := docs[s.id]
			if !exists {
				errs = append(errs, fmt.Errorf("update %s/%s: %w", s.storageType, s.id, core.ErrNotFound))
				continue
			}
			merged := make(map[string]any, len(current)+len(s.source))
			for k, v := range current {
				merged[k] = v
			}
			for k, v := range s.source {
				merged[k] = v
			}
			docs[s.id] = merged
		case core.OpDelete:
			delete(docs, s.id)
		}
	}

	c.logger.Debug("batch committed", "operations", len(c.staged), "failed", len(errs))
	c.staged = nil
	c.stats.Commits++
	return errors.Join(errs...)
}

// Flush commits the staged operations.
func (c *Connection) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Flushes++
	return c.commitLocked()
}

// Refresh makes committed documents visible to Search.
func (c *Connection) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = c.committed.clone()
	c.stats.Refreshes++
	return nil
}

// Get reads a committed document.
func (c *Connection) Get(ctx context.Context, storageType, id string) (core.Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields, ok := c.committed[storageType][id]
	if !ok {
		return core.Hit{}, fmt.Errorf("%s/%s: %w", storageType, id, core.ErrNotFound)
	}
	return toHit(storageType, id, fields)
}

// Search matches refreshed documents. Supported clauses: match_all, term, match, bool (must/filter).
func (c *Connection) Search(ctx context.Context, storageTypes []string, query core.Query) (core.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hits []core.Hit
	for _, st := range storageTypes {
		ids := make([]string, 0, len(c.visible[st]))
		for id := range c.visible[st] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			fields := c.visible[st][id]
			ok, err := matches(query.Body, fields)
			if err != nil {
				return core.SearchResult{}, err
			}
			if !ok {
				continue
			}
			hit, err := toHit(st, id, fields)
			if err != nil {
				return core.SearchResult{}, err
			}
			hits = append(hits, hit)
		}
	}

	total := int64(len(hits))
	size := query.Size
	if size <= 0 {
		size = 10
	}
	from := query.From
	if from < 0 {
		from = 0
	}
	if from > len(hits) {
		from = len(hits)
	}
	end := from + size
	if end > len(hits) {
		end = len(hits)
	}
	return core.SearchResult{Total: total, Hits: hits[from:end]}, nil
}

// EnsureIndex records the mapping of a storage type.
func (c *Connection) EnsureIndex(ctx context.Context, storageType string, mapping map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indices[storageType]; !ok {
		c.indices[storageType] = mapping
	}
	return nil
}

// Ping always succeeds.
func (c *Connection) Ping(ctx context.Context) error {
	return nil
}

// Staged returns the number of operations waiting for Commit.
func (c *Connection) Staged() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.staged)
}

// Stats returns the call counters.
func (c *Connection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Index returns the mapping recorded by EnsureIndex.
func (c *Connection) Index(storageType string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.indices[storageType]
	return m, ok
}

func toHit(storageType, id string, fields map[string]any) (core.Hit, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return core.Hit{}, err
	}
	return core.Hit{Type: storageType, ID: id, Source: data}, nil
}

func decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectionState exposes internal state for observability.
type ConnectionState struct {
	Stats
	Pending     int      `json:"pending"`
	Types       []string `json:"types"`
	VisibleDocs int      `json:"visible_docs"`
}

// State implements introspection.Introspectable.
func (c *Connection) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, 0, len(c.committed))
	visible := 0
	for st := range c.committed {
		types = append(types, st)
	}
	for _, docs := range c.visible {
		visible += len(docs)
	}
	sort.Strings(types)

	return ConnectionState{Stats: c.stats, Pending: len(c.staged), Types: types, VisibleDocs: visible}
}

// ComponentType implements introspection.Component.
func (c *Connection) ComponentType() string {
	return "memory"
}

var (
	_ core.Connection   = (*Connection)(nil)
	_ core.Reader       = (*Connection)(nil)
	_ core.Searcher     = (*Connection)(nil)
	_ core.IndexEnsurer = (*Connection)(nil)
	_ core.Pinger       = (*Connection)(nil)

	_ introspection.Introspectable = (*Connection)(nil)
	_ introspection.Component      = (*Connection)(nil)
)

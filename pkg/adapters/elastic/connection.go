// Package elastic implements core.Connection on top of Elasticsearch.
//
// Each storage type lives in its own index named IndexPrefix + type.
// Bulk stages operations; they are sent as one _bulk request on Commit,
// or as soon as BulkCommitSize operations are staged.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/introspection"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/aretw0/strata/pkg/core"
)

// DefaultBulkCommitSize is the number of staged operations that triggers an automatic commit.
const DefaultBulkCommitSize = 100

// Config holds the configuration for the Elasticsearch connection.
type Config struct {
	Addresses []string
	Username  string
	Password  string

	// IndexPrefix is prepended to every storage type to build the index name.
	IndexPrefix string

	// BulkCommitSize triggers a commit when that many operations are staged. Zero means default.
	BulkCommitSize int

	// Types limits Flush and Refresh to the indices of these storage types.
	// When empty they target IndexPrefix* (or every index without a prefix).
	Types []string

	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Connection is a core.Connection backed by an Elasticsearch cluster.
type Connection struct {
	client *elasticsearch.Client
	config Config

	mu      sync.Mutex
	staged  []action
	batchID string
	stats   Stats
}

// Stats counts the requests a connection made.
type Stats struct {
	Staged    int `json:"staged"`
	Commits   int `json:"commits"`
	Failures  int `json:"failures"`
	Flushes   int `json:"flushes"`
	Refreshes int `json:"refreshes"`
}

// New creates a connection. It does not contact the cluster; use Ping for that.
func New(config Config) (*Connection, error) {
	if config.BulkCommitSize <= 0 {
		config.BulkCommitSize = DefaultBulkCommitSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Connection{
		client:  client,
		config:  config,
		batchID: uuid.NewString(),
	}, nil
}

// IndexName returns the index of a storage type.
func (c *Connection) IndexName(storageType string) string {
	return c.config.IndexPrefix + storageType
}

func (c *Connection) storageType(index string) string {
	return strings.TrimPrefix(index, c.config.IndexPrefix)
}

// Bulk stages an operation and commits when the batch is full.
// Once staged, the operation is never reported as failed to stage: if the
// automatic commit cannot reach the engine the batch stays staged, the failure
// is logged and the next Commit retries it. Item failures of an accepted
// automatic commit are returned as *BulkError.
func (c *Connection) Bulk(ctx context.Context, op core.Operation, storageType string, payload core.Payload) error {
	if !op.Valid() {
		return fmt.Errorf("unknown bulk operation %q", op)
	}
	if storageType == "" {
		return errors.New("storage type cannot be empty")
	}

	a := action{op: op, index: c.IndexName(storageType), source: make(map[string]any, len(payload))}
	for k, v := range payload {
		if k == core.IDField {
			a.id = fmt.Sprint(v)
			continue
		}
		a.source[k] = v
	}
	if a.id == "" && (op == core.OpUpdate || op == core.OpDelete) {
		return fmt.Errorf("%s operation requires %s", op, core.IDField)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.staged = append(c.staged, a)
	c.stats.Staged++

	if len(c.staged) >= c.config.BulkCommitSize {
		c.config.Logger.Debug("bulk commit size reached", "batch", c.batchID, "size", len(c.staged))
		err := c.commitLocked(ctx)
		var bulkErr *BulkError
		if err != nil && !errors.As(err, &bulkErr) {
			c.config.Logger.Warn("automatic bulk commit failed, batch kept", "batch", c.batchID, "staged", len(c.staged), "error", err)
			return nil
		}
		return err
	}
	return nil
}

// Commit sends the staged batch. An empty batch is a no-op.
// On a transport failure the batch is kept so Commit can be retried.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(ctx)
}

func (c *Connection) commitLocked(ctx context.Context) error {
	if len(c.staged) == 0 {
		return nil
	}

	body, err := encodeBatch(c.staged)
	if err != nil {
		return err
	}

	batchID := c.batchID
	res, err := c.client.Bulk(bytes.NewReader(body.Bytes()), c.client.Bulk.WithContext(ctx))
	if err != nil {
		c.stats.Failures++
		return fmt.Errorf("bulk %s request failed: %w", batchID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		c.stats.Failures++
		return fmt.Errorf("bulk %s rejected: %w", batchID, responseError(res))
	}

	// the engine accepted the request; items are applied or individually failed
	count := len(c.staged)
	c.staged = nil
	c.batchID = uuid.NewString()
	c.stats.Commits++

	if err := parseBulkResponse(res.Body, batchID); err != nil {
		c.stats.Failures++
		c.config.Logger.Warn("bulk committed with failures", "batch", batchID, "operations", count, "error", err)
		return err
	}

	c.config.Logger.Debug("bulk committed", "batch", batchID, "operations", count)
	return nil
}

// Flush commits and then flushes the managed indices.
func (c *Connection) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.commitLocked(ctx); err != nil {
		return err
	}

	res, err := c.client.Indices.Flush(
		c.client.Indices.Flush.WithContext(ctx),
		c.client.Indices.Flush.WithIndex(c.targets()...),
		c.client.Indices.Flush.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("flush request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("flush failed: %w", responseError(res))
	}

	c.stats.Flushes++
	return nil
}

// Refresh makes committed operations searchable.
func (c *Connection) Refresh(ctx context.Context) error {
	res, err := c.client.Indices.Refresh(
		c.client.Indices.Refresh.WithContext(ctx),
		c.client.Indices.Refresh.WithIndex(c.targets()...),
		c.client.Indices.Refresh.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("refresh failed: %w", responseError(res))
	}

	c.mu.Lock()
	c.stats.Refreshes++
	c.mu.Unlock()
	return nil
}

// targets returns the index list for Flush and Refresh. Empty means every index.
func (c *Connection) targets() []string {
	if len(c.config.Types) > 0 {
		out := make([]string, 0, len(c.config.Types))
		for _, st := range c.config.Types {
			out = append(out, c.IndexName(st))
		}
		return out
	}
	if c.config.IndexPrefix != "" {
		return []string{c.config.IndexPrefix + "*"}
	}
	return nil
}

// Get reads a document in real time.
func (c *Connection) Get(ctx context.Context, storageType, id string) (core.Hit, error) {
	res, err := c.client.Get(c.IndexName(storageType), id, c.client.Get.WithContext(ctx))
	if err != nil {
		return core.Hit{}, fmt.Errorf("get request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return core.Hit{}, fmt.Errorf("%s/%s: %w", storageType, id, core.ErrNotFound)
	}
	if res.IsError() {
		return core.Hit{}, fmt.Errorf("get %s/%s failed: %w", storageType, id, responseError(res))
	}

	var doc struct {
		ID     string          `json:"_id"`
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return core.Hit{}, fmt.Errorf("failed to decode get response: %w", err)
	}
	if !doc.Found {
		return core.Hit{}, fmt.Errorf("%s/%s: %w", storageType, id, core.ErrNotFound)
	}
	return core.Hit{Type: storageType, ID: doc.ID, Source: doc.Source}, nil
}

// Search runs a query over the indices of the given storage types.
func (c *Connection) Search(ctx context.Context, storageTypes []string, query core.Query) (core.SearchResult, error) {
	indices := make([]string, 0, len(storageTypes))
	for _, st := range storageTypes {
		indices = append(indices, c.IndexName(st))
	}

	body := map[string]any{"track_total_hits": true}
	if query.Body != nil {
		body["query"] = query.Body
	}
	if query.Size > 0 {
		body["size"] = query.Size
	}
	if query.From > 0 {
		body["from"] = query.From
	}
	data, err := json.Marshal(body)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(indices...),
		c.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return core.SearchResult{}, fmt.Errorf("search failed: %w", responseError(res))
	}

	var out struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string          `json:"_index"`
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return core.SearchResult{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := core.SearchResult{Total: out.Hits.Total.Value, Hits: make([]core.Hit, 0, len(out.Hits.Hits))}
	for _, h := range out.Hits.Hits {
		result.Hits = append(result.Hits, core.Hit{
			Type:   c.storageType(h.Index),
			ID:     h.ID,
			Score:  h.Score,
			Source: h.Source,
		})
	}
	return result, nil
}

// EnsureIndex creates the index of a storage type with the given mapping if it does not exist.
func (c *Connection) EnsureIndex(ctx context.Context, storageType string, mapping map[string]any) error {
	index := c.IndexName(storageType)

	exists, err := c.client.Indices.Exists([]string{index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: unexpected status %d", index, exists.StatusCode)
	}

	body := map[string]any{}
	if len(mapping) > 0 {
		body["mappings"] = mapping
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode mapping of %s: %w", index, err)
	}

	res, err := c.client.Indices.Create(index,
		c.client.Indices.Create.WithContext(ctx),
		c.client.Indices.Create.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %w", index, responseError(res))
	}

	c.config.Logger.Info("index created", "index", index)
	return nil
}

// Ping checks the cluster is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping failed: %s", res.Status())
	}
	return nil
}

// Staged returns the number of operations waiting for Commit.
func (c *Connection) Staged() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.staged)
}

func responseError(res *esapi.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error.Type != "" {
		return fmt.Errorf("[%d] %s: %s", res.StatusCode, body.Error.Type, body.Error.Reason)
	}
	return fmt.Errorf("[%d] %s", res.StatusCode, strings.TrimSpace(string(data)))
}

// ConnectionState exposes internal state for observability.
type ConnectionState struct {
	Stats
	Addresses   []string `json:"addresses"`
	IndexPrefix string   `json:"index_prefix"`
	Pending     int      `json:"pending"`
	BatchID     string   `json:"batch_id"`
}

// State implements introspection.Introspectable.
func (c *Connection) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionState{
		Stats:       c.stats,
		Addresses:   c.config.Addresses,
		IndexPrefix: c.config.IndexPrefix,
		Pending:     len(c.staged),
		BatchID:     c.batchID,
	}
}

// ComponentType implements introspection.Component.
func (c *Connection) ComponentType() string {
	return "elasticsearch"
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

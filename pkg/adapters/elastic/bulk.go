package elastic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/strata/pkg/core"
)

type action struct {
	op     core.Operation
	index  string
	id     string
	source map[string]any
}

// encodeBatch writes the NDJSON body of a _bulk request.
func encodeBatch(actions []action) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, a := range actions {
		meta := map[string]any{"_index": a.index}
		if a.id != "" {
			meta["_id"] = a.id
		}
		if err := enc.Encode(map[string]any{string(a.op): meta}); err != nil {
			return nil, fmt.Errorf("failed to encode %s action: %w", a.op, err)
		}

		switch a.op {
		case core.OpDelete:
			continue
		case core.OpUpdate:
			if err := enc.Encode(map[string]any{"doc": a.source}); err != nil {
				return nil, fmt.Errorf("failed to encode update of %s: %w", a.id, err)
			}
		default:
			if err := enc.Encode(a.source); err != nil {
				return nil, fmt.Errorf("failed to encode source of %s: %w", a.id, err)
			}
		}
	}
	return &buf, nil
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// ItemError is one failed operation of a bulk request.
type ItemError struct {
	Op     string
	Index  string
	ID     string
	Status int
	Type   string
	Reason string
}

func (e ItemError) String() string {
	return fmt.Sprintf("%s %s/%s: [%d] %s: %s", e.Op, e.Index, e.ID, e.Status, e.Type, e.Reason)
}

// BulkError reports the failed items of a committed batch.
// The successful items of the batch were applied.
type BulkError struct {
	BatchID string
	Items   []ItemError
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, item.String())
	}
	return fmt.Sprintf("bulk %s: %d operations failed: %s", e.BatchID, len(e.Items), strings.Join(parts, "; "))
}

func parseBulkResponse(r io.Reader, batchID string) error {
	var res bulkResponse
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !res.Errors {
		return nil
	}

	bulkErr := &BulkError{BatchID: batchID}
	for _, item := range res.Items {
		for op, outcome := range item {
			if outcome.Error == nil {
				continue
			}
			bulkErr.Items = append(bulkErr.Items, ItemError{
				Op:     op,
				Index:  outcome.Index,
				ID:     outcome.ID,
				Status: outcome.Status,
				Type:   outcome.Error.Type,
				Reason: outcome.Error.Reason,
			})
		}
	}
	if len(bulkErr.Items) == 0 {
		return nil
	}
	return bulkErr
}

package core

import (
	"bytes"
	"encoding/json"
)

// RawDocument is a schemaless document.
// It is what the converter hands back when no constructor is registered for a class,
// and what the CLI and ingest worker persist.
type RawDocument struct {
	Kind   string
	ID     string
	Fields Payload
}

// NewRawDocument creates a RawDocument of the given kind.
func NewRawDocument(kind, id string, fields Payload) *RawDocument {
	if fields == nil {
		fields = Payload{}
	}
	return &RawDocument{Kind: kind, ID: id, Fields: fields}
}

func (d *RawDocument) DocumentKind() string { return d.Kind }
func (d *RawDocument) DocumentID() string   { return d.ID }

// SetDocumentID implements IdentitySetter.
func (d *RawDocument) SetDocumentID(id string) { d.ID = id }

// MarshalJSON encodes the fields only; kind and id travel out of band.
func (d *RawDocument) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d.Fields))
}

// UnmarshalJSON decodes the fields, keeping large integers exact.
func (d *RawDocument) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	d.Fields = fields
	return nil
}

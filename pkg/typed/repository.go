package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/strata/pkg/core"
)

// DocumentModel wraps a typed payload as a core.Document.
// It acts as a typed view of a stored document.
type DocumentModel[T any] struct {
	ID    string
	Kind  string   // class name; filled by the repository when empty
	Data  T        // The typed fields
	Saver Saver[T] // Active Record reference interface
}

// Saver interface avoids circular dependencies or tight coupling with Repository structs.
type Saver[T any] interface {
	Save(ctx context.Context, doc *DocumentModel[T]) error
}

func (d *DocumentModel[T]) DocumentKind() string    { return d.Kind }
func (d *DocumentModel[T]) DocumentID() string      { return d.ID }
func (d *DocumentModel[T]) SetDocumentID(id string) { d.ID = id }

// MarshalJSON encodes Data only.
func (d *DocumentModel[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON decodes into Data.
func (d *DocumentModel[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}

// Save stages the document using the attached saver.
func (d *DocumentModel[T]) Save(ctx context.Context) error {
	if d.Saver == nil {
		return fmt.Errorf("document is detached (missing Saver)")
	}
	return d.Saver.Save(ctx, d)
}

// Repository wraps a core.Repository to provide type-safe access.
type Repository[T any] struct {
	repo *core.Repository
}

// NewRepository creates a new type-safe wrapper around an existing repository.
func NewRepository[T any](repo *core.Repository) *Repository[T] {
	return &Repository[T]{repo: repo}
}

// kind returns the class name of a single-type repository.
func (r *Repository[T]) kind() (string, error) {
	types := r.repo.Types()
	if len(types) != 1 {
		return "", fmt.Errorf("%w: cannot infer document kind", core.ErrAmbiguousRepository)
	}
	return r.repo.Manager().BundlesMapping()[types[0]].Namespace, nil
}

// Save stages a typed document on the manager.
func (r *Repository[T]) Save(ctx context.Context, doc *DocumentModel[T]) error {
	if doc.Kind == "" {
		kind, err := r.kind()
		if err != nil {
			return err
		}
		doc.Kind = kind
	}

	// Attach saver
	if doc.Saver == nil {
		doc.Saver = r
	}
	return r.repo.Manager().Persist(ctx, doc)
}

// New creates a model attached to this repository.
// On a multi-type repository Kind is left empty: set it before saving, or
// Save returns core.ErrAmbiguousRepository.
func (r *Repository[T]) New(id string, data T) *DocumentModel[T] {
	kind, _ := r.kind()
	return &DocumentModel[T]{ID: id, Kind: kind, Data: data, Saver: r}
}

// Get retrieves a document and unmarshals it.
func (r *Repository[T]) Get(ctx context.Context, id string) (*DocumentModel[T], error) {
	doc, err := r.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromCore(doc, r)
}

// Search returns the matching documents converted to the typed model and the total hit count.
func (r *Repository[T]) Search(ctx context.Context, query core.Query) ([]*DocumentModel[T], int64, error) {
	docs, total, err := r.repo.Search(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return r.convertAll(docs, total)
}

// FindBy returns documents whose fields equal every criterion.
func (r *Repository[T]) FindBy(ctx context.Context, criteria map[string]any, limit, offset int) ([]*DocumentModel[T], int64, error) {
	docs, total, err := r.repo.FindBy(ctx, criteria, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.convertAll(docs, total)
}

// Delete stages the removal of a document.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.repo.Remove(ctx, id)
}

func (r *Repository[T]) convertAll(docs []core.Document, total int64) ([]*DocumentModel[T], int64, error) {
	result := make([]*DocumentModel[T], 0, len(docs))
	for _, d := range docs {
		model, err := fromCore(d, r)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to process document %s: %w", d.DocumentID(), err)
		}
		result = append(result, model)
	}
	return result, total, nil
}

// Helper to convert a core.Document to DocumentModel
func fromCore[T any](doc core.Document, saver Saver[T]) (*DocumentModel[T], error) {
	if model, ok := doc.(*DocumentModel[T]); ok {
		if model.Saver == nil {
			model.Saver = saver
		}
		return model, nil
	}

	dataBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("document marshal failed: %w", err)
	}

	var data T
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return nil, fmt.Errorf("unmarshal to target type failed: %w", err)
	}

	return &DocumentModel[T]{
		ID:    doc.DocumentID(),
		Kind:  doc.DocumentKind(),
		Data:  data,
		Saver: saver,
	}, nil
}

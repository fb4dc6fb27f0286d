package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Repository is a view of one or more repository keys of a manager.
// Reads need a connection implementing Reader or Searcher.
type Repository struct {
	manager *Manager
	types   []string
}

// Types returns the repository keys the repository is bound to.
func (r *Repository) Types() []string {
	out := make([]string, len(r.types))
	copy(out, r.types)
	return out
}

// Manager returns the owning manager.
func (r *Repository) Manager() *Manager {
	return r.manager
}

// StorageTypes returns the distinct storage types behind the bound keys, in binding order.
func (r *Repository) StorageTypes() []string {
	seen := make(map[string]bool, len(r.types))
	var out []string
	for _, t := range r.types {
		st := r.manager.bundles[t].Type
		if seen[st] {
			continue
		}
		seen[st] = true
		out = append(out, st)
	}
	return out
}

func (r *Repository) single() (Descriptor, error) {
	if len(r.types) != 1 {
		return Descriptor{}, fmt.Errorf("%w: bound to %d", ErrAmbiguousRepository, len(r.types))
	}
	return r.manager.bundles[r.types[0]], nil
}

// Find retrieves a document by id.
func (r *Repository) Find(ctx context.Context, id string) (Document, error) {
	if id == "" {
		return nil, errors.New("document ID cannot be empty")
	}
	desc, err := r.single()
	if err != nil {
		return nil, err
	}

	reader, ok := r.manager.conn.(Reader)
	if !ok {
		return nil, fmt.Errorf("%w: get", ErrUnsupported)
	}

	hit, err := reader.Get(ctx, desc.Type, id)
	if err != nil {
		return nil, err
	}
	hit.Repository = r.types[0]
	return r.manager.converter.ConvertToDocument(hit)
}

// Search runs query across every bound storage type and returns the documents and the total hit count.
func (r *Repository) Search(ctx context.Context, query Query) ([]Document, int64, error) {
	searcher, ok := r.manager.conn.(Searcher)
	if !ok {
		return nil, 0, fmt.Errorf("%w: search", ErrUnsupported)
	}

	if query.From < 0 || query.Size < 0 {
		return nil, 0, fmt.Errorf("invalid page: from %d, size %d", query.From, query.Size)
	}

	res, err := searcher.Search(ctx, r.StorageTypes(), query)
	if err != nil {
		return nil, 0, err
	}

	owners := r.owners()
	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if hit.Repository == "" {
			hit.Repository = owners[hit.Type]
		}
		doc, err := r.manager.converter.ConvertToDocument(hit)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to process hit %s: %w", hit.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, res.Total, nil
}

// owners maps each storage type to the bound key stored in it.
// Types shared by several bound keys are left out; the converter resolves or rejects them.
func (r *Repository) owners() map[string]string {
	out := make(map[string]string, len(r.types))
	shared := make(map[string]bool)
	for _, t := range r.types {
		st := r.manager.bundles[t].Type
		if prev, ok := out[st]; ok && prev != t {
			shared[st] = true
		}
		out[st] = t
	}
	for st := range shared {
		delete(out, st)
	}
	return out
}

// FindBy returns documents whose fields equal every criterion.
// An empty criteria map matches everything.
func (r *Repository) FindBy(ctx context.Context, criteria map[string]any, limit, offset int) ([]Document, int64, error) {
	return r.Search(ctx, Query{Body: TermsQuery(criteria), Size: limit, From: offset})
}

// Remove stages a delete of id.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document ID cannot be empty")
	}
	desc, err := r.single()
	if err != nil {
		return err
	}
	return r.manager.conn.Bulk(ctx, OpDelete, desc.Type, Payload{IDField: id})
}

// TermsQuery builds a filter of exact term matches.
func TermsQuery(criteria map[string]any) map[string]any {
	if len(criteria) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	fields := make([]string, 0, len(criteria))
	for f := range criteria {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	filter := make([]any, 0, len(fields))
	for _, f := range fields {
		filter = append(filter, map[string]any{"term": map[string]any{f: criteria[f]}})
	}
	return map[string]any{"bool": map[string]any{"filter": filter}}
}

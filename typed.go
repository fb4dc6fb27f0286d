package strata

import (
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/typed"
)

// DocumentModel is a public alias for the typed document model.
type DocumentModel[T any] = typed.DocumentModel[T]

// TypedRepository is a public alias for the typed repository.
type TypedRepository[T any] = typed.Repository[T]

// NewTypedRepository creates a type-safe wrapper around an existing repository.
func NewTypedRepository[T any](repo *core.Repository) *TypedRepository[T] {
	return typed.NewRepository[T](repo)
}

// OpenTypedRepository simplifies creating a TypedRepository from a manager and repository key.
func OpenTypedRepository[T any](m *core.Manager, repository string) (*TypedRepository[T], error) {
	repo, err := m.GetRepository(repository)
	if err != nil {
		return nil, err
	}
	return typed.NewRepository[T](repo), nil
}

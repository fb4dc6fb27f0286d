package core

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrUndefinedRepository = errors.New("undefined repository")
	ErrNoRepository        = errors.New("at least one repository type is required")
	ErrUnmappedDocument    = errors.New("document is not mapped to any repository")
	ErrMappingConflict     = errors.New("conflicting document mapping")
	ErrUnsupported         = errors.New("connection does not support this operation")
	ErrAmbiguousRepository = errors.New("operation requires exactly one repository type")
	ErrNotFound            = errors.New("document not found")
)

// UndefinedRepositoryError is returned by GetRepository for an unknown repository key.
// It matches ErrUndefinedRepository with errors.Is.
type UndefinedRepositoryError struct {
	Type  string
	Valid []string
}

func (e *UndefinedRepositoryError) Error() string {
	return fmt.Sprintf("undefined repository %s, valid repositories are: %s.", e.Type, strings.Join(e.Valid, ", "))
}

func (e *UndefinedRepositoryError) Is(target error) bool {
	return target == ErrUndefinedRepository
}

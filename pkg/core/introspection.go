package core

import (
	"github.com/aretw0/introspection"
)

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Repositories   []string `json:"repositories"`
	ConnectionType string   `json:"connection_type"`
	ConverterType  string   `json:"converter_type"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	connType := "connection"
	// Try to get component type if connection implements introspection.Component
	if comp, ok := m.conn.(introspection.Component); ok {
		connType = comp.ComponentType()
	}

	convType := "converter"
	if comp, ok := m.converter.(introspection.Component); ok {
		convType = comp.ComponentType()
	}

	return ManagerState{
		Repositories:   m.bundles.Keys(),
		ConnectionType: connType,
		ConverterType:  convType,
	}
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)

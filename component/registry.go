package component

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360/mongosink/errors"
)

// Factory creates a component instance from raw configuration and
// dependencies.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)

// Registration holds everything the registry knows about a component type.
type Registration struct {
	Factory     Factory
	Schema      ConfigSchema
	Type        string
	Protocol    string
	Domain      string
	Description string
	Version     string
}

// RegistrationConfig provides a clean API for component registration.
// It maps 1:1 to Registration struct fields.
type RegistrationConfig struct {
	Name        string       // Component name (e.g., "mongodb")
	Factory     Factory      // Factory function to create component instances
	Schema      ConfigSchema // Configuration schema for validation and discovery
	Type        string       // Component type: "input", "processor", "output", "storage"
	Protocol    string       // Technical protocol (mongodb, nats, file, ...)
	Domain      string       // Business domain (storage, network, processing, ...)
	Description string       // Human-readable description of the component
	Version     string       // Component version (semver recommended)
}

// Registry manages component factories and instances. It provides
// thread-safe registration and lookup of both factories (for creation) and
// instances (for discovery and management).
type Registry struct {
	factories map[string]*Registration
	instances map[string]Discoverable
	mu        sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
		instances: make(map[string]Discoverable),
	}
}

// RegisterWithConfig registers a component factory described by a
// RegistrationConfig.
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	if config.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterWithConfig", "factory name validation")
	}
	if config.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterWithConfig", "factory function validation")
	}
	if config.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterWithConfig", "component type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[config.Name]; exists {
		msg := fmt.Errorf("factory %q is already registered", config.Name)
		return errors.WrapInvalid(msg, "Registry", "RegisterWithConfig", "duplicate factory check")
	}

	r.factories[config.Name] = &Registration{
		Factory:     config.Factory,
		Schema:      config.Schema,
		Type:        config.Type,
		Protocol:    config.Protocol,
		Domain:      config.Domain,
		Description: config.Description,
		Version:     config.Version,
	}
	return nil
}

// CreateComponent creates a component instance using the named factory and
// registers it under instanceName.
func (r *Registry) CreateComponent(factoryName, instanceName string, rawConfig json.RawMessage, deps Dependencies) (Discoverable, error) {
	r.mu.RLock()
	registration, ok := r.factories[factoryName]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown component factory %q", factoryName),
			"Registry", "CreateComponent", "factory lookup")
	}

	comp, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", fmt.Sprintf("create %q", instanceName))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[instanceName]; exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("instance %q already exists", instanceName),
			"Registry", "CreateComponent", "duplicate instance check")
	}
	r.instances[instanceName] = comp

	return comp, nil
}

// GetComponent returns a registered instance by name.
func (r *Registry) GetComponent(name string) (Discoverable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comp, ok := r.instances[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown component instance %q", name),
			"Registry", "GetComponent", "instance lookup")
	}
	return comp, nil
}

// UnregisterInstance removes an instance from the registry.
func (r *Registry) UnregisterInstance(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

// ListComponents returns a snapshot of all registered instances.
func (r *Registry) ListComponents() map[string]Discoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Discoverable, len(r.instances))
	for name, comp := range r.instances {
		out[name] = comp
	}
	return out
}

// GetComponentSchema returns the config schema for a factory.
func (r *Registry) GetComponentSchema(name string) (ConfigSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, ok := r.factories[name]
	if !ok {
		return ConfigSchema{}, errors.WrapInvalid(
			fmt.Errorf("unknown component factory %q", name),
			"Registry", "GetComponentSchema", "factory lookup")
	}
	return registration.Schema, nil
}

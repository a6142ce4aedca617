package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rzpsarthak13/rematerializer/internal/config"
	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// ConnectorFactory is the Strategy interface for creating connectors.
// Each backing driver (postgres, mysql, etc.) provides its own factory and
// registers it from init().
type ConnectorFactory interface {
	// Type returns the driver name this factory serves (e.g. "postgres").
	Type() string

	// Validate checks the driver-specific settings.
	Validate(settings config.Settings) error

	// Create builds a connector. It must not dial the database.
	Create(settings config.Settings) (core.Connector, error)
}

var (
	// factoryRegistry stores all registered connector factories.
	factoryRegistry = make(map[string]ConnectorFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a connector factory.
// Panics if factory is nil, its type is empty, or the type is already registered.
func RegisterFactory(factory ConnectorFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for driver %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create validates settings and creates a connector using the factory
// registered for settings.Driver.
func Create(settings config.Settings) (core.Connector, error) {
	if settings.Driver == "" {
		return nil, fmt.Errorf("%w: driver is required", core.ErrConfiguration)
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[settings.Driver]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: unsupported driver: %s (registered: %s)",
			core.ErrConfiguration, settings.Driver, strings.Join(GetRegisteredTypes(), ", "))
	}

	if err := factory.Validate(settings); err != nil {
		return nil, fmt.Errorf("%w: invalid settings for %s: %v", core.ErrConfiguration, settings.Driver, err)
	}

	connector, err := factory.Create(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s connector: %v", core.ErrConfiguration, settings.Driver, err)
	}
	return connector, nil
}

// GetRegisteredTypes returns the registered driver names, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

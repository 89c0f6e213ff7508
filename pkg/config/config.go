// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadWithDefaults loads configuration with fallback to a default file.
func LoadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile != "" {
			return Load(defaultFile, target)
		}
		return fmt.Errorf("config file not found: %s", filename)
	}
	return Load(filename, target)
}

// MustLoad loads configuration and panics on failure.
func MustLoad[T any](filename string, target *T) {
	if err := Load(filename, target); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
}

// Holder guards a loaded configuration so that it can be reloaded while
// readers hold a snapshot.
type Holder[T any] struct {
	mu       sync.RWMutex
	filename string
	current  *T
	defaults func() *T
}

// NewHolder loads filename into a value produced by defaults and returns a
// holder for it.
func NewHolder[T any](filename string, defaults func() *T) (*Holder[T], error) {
	h := &Holder[T]{filename: filename, defaults: defaults}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder[T]) Get() *T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the file. On failure the previous configuration stays in
// place.
func (h *Holder[T]) Reload() error {
	next := h.defaults()
	if err := Load(h.filename, next); err != nil {
		return err
	}
	h.mu.Lock()
	h.current = next
	h.mu.Unlock()
	return nil
}

package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"pmt/internal/config"
)

// Factory builds a component from the loaded configuration.
type Factory[T any] func(cfg *config.Config, logger *slog.Logger) (T, error)

// Entry describes one registered component.
type Entry[T any] struct {
	Name        string
	Description string
	New         Factory[T]
}

// Registry maps component names to factories.
type Registry[T any] struct {
	kind    string
	entries map[string]Entry[T]
}

// NewRegistry returns an empty registry. kind names the component family in
// error messages ("reader", "writer").
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: map[string]Entry[T]{}}
}

// Register adds an entry. Names are case-insensitive and must be unique.
func (r *Registry[T]) Register(e Entry[T]) error {
	name := strings.ToLower(strings.TrimSpace(e.Name))
	if name == "" {
		return fmt.Errorf("%s name is empty", r.kind)
	}
	if e.New == nil {
		return fmt.Errorf("%s %q has no factory", r.kind, name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%s %q already registered", r.kind, name)
	}
	e.Name = name
	r.entries[name] = e
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry[T]) Lookup(name string) (Entry[T], bool) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// New builds the component registered under name.
func (r *Registry[T]) New(name string, cfg *config.Config, logger *slog.Logger) (T, error) {
	e, ok := r.Lookup(name)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q (available: %s)", r.kind, name, strings.Join(r.Names(), ", "))
	}
	return e.New(cfg, logger)
}

// Names returns registered names sorted.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns registered entries sorted by name.
func (r *Registry[T]) Entries() []Entry[T] {
	out := make([]Entry[T], 0, len(r.entries))
	for _, name := range r.Names() {
		out = append(out, r.entries[name])
	}
	return out
}

func (r *Registry[T]) mustRegister(e Entry[T]) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

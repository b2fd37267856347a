package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an extractor. A nil logger discards output.
type Factory func(*slog.Logger) Extractor

var (
	registryMu sync.RWMutex
	registry   = make(map[SourceKind]Factory)
)

// Register adds an extractor factory to the registry.
// Called by extractor implementations in their init() functions.
func Register(kind SourceKind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Get retrieves an extractor factory by source kind.
func Get(kind SourceKind) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// NewExtractor creates the extractor registered for kind.
func NewExtractor(kind SourceKind, logger *slog.Logger) (Extractor, error) {
	if kind == "" {
		return nil, fmt.Errorf("source kind not specified")
	}
	factory, ok := Get(kind)
	if !ok {
		return nil, &UnknownSourceError{Kind: kind, Available: ListSources()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// ListSources returns all registered source kinds (sorted).
func ListSources() []SourceKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]SourceKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsRegistered checks if a source kind is registered.
func IsRegistered(kind SourceKind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// UnknownSourceError is returned when an unknown source kind is requested.
type UnknownSourceError struct {
	Kind      SourceKind
	Available []SourceKind
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source kind %q\nAvailable sources: %v\nHint: use one of the listed kinds for extract.source", e.Kind, e.Available)
}

package scan

import (
	"context"
	"fmt"
	"sync"

	"rowbridge/internal/keys"
	"rowbridge/internal/record"
)

// ── Source ──────────────────────────────────────────────────
// A Source reads rows out of an external system.
// Implementations live in scan/sources/ — one file per source type.
//
// Pattern: Airbyte connector protocol (spec → discover → read).

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "textarea" | "password" | "file"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // for "select" type
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label, whether its rows carry
// record keys, and the config fields it needs.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Keyed        bool          `json:"keyed"` // rows carry record keys
	ConfigFields []ConfigField `json:"configFields"`
}

// Row is a single row read from a source: its column values plus the
// source's key for the row, or the explicit absence of one. A source
// uses a single key kind for a whole read.
type Row struct {
	Key    keys.RecordKey
	Values map[string]any
}

// Source is the interface every data source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Discover introspects the source and returns its column schema.
	// The returned schema carries no recordkey column; the engine
	// attaches one when the job requests it.
	Discover(ctx context.Context, cfg SourceConfig) (*record.Schema, error)

	// Read streams rows from the source into a channel.
	// The channel is closed when all rows have been read or ctx is
	// cancelled. Errors are sent on the error channel (buffered size 1).
	Read(ctx context.Context, cfg SourceConfig) (<-chan Row, <-chan error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	return specs
}

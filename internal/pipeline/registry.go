package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/store"
)

// RunContext carries the shared dependencies and paths a step action needs.
// The configuration fields are set once by the caller and never mutated by
// the runner; Totals is the one accumulator, and the strictly sequential
// interpreter is the only writer path into it.
type RunContext struct {
	Store  *store.Store
	Engine *engine.Engine
	Log    *slog.Logger

	// RunID names this pipeline run; report blobs key off it.
	RunID string

	// BatchDir is the inbox the extraction collaborator drops batch files
	// into.
	BatchDir string

	// StagingDir holds batch files that have been ingested, pending
	// teardown.
	StagingDir string

	// Totals accumulates reconciliation counts across steps.
	Totals *Totals
}

// Totals aggregates batch reports over a pipeline run.
type Totals struct {
	Batches    int `json:"batches"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
	Merged     int `json:"merged"`
	Conflicts  int `json:"conflicts"`
}

// Add folds one batch report into the totals.
func (t *Totals) Add(r *engine.BatchReport) {
	t.Batches++
	t.New += r.New
	t.Duplicates += r.Duplicates
	t.Merged += r.Merged
	t.Conflicts += r.Conflicts
}

// Action is one executable pipeline step body. Implementations must honor
// ctx cancellation: a per-step timeout arrives as ctx expiry.
type Action func(ctx context.Context, rc *RunContext) error

// Registry maps action names to implementations.
type Registry struct {
	actions map[string]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action under a unique name.
func (r *Registry) Register(name string, a Action) error {
	if name == "" {
		return fmt.Errorf("register action: empty name")
	}
	if a == nil {
		return fmt.Errorf("register action %q: nil action", name)
	}
	if _, dup := r.actions[name]; dup {
		return fmt.Errorf("register action %q: already registered", name)
	}
	r.actions[name] = a
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

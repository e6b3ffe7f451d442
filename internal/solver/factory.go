package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/efebarandurmaz/ration/internal/model"
)

// DefaultName is the solver used when none is configured.
const DefaultName = "simplex"

// Config holds everything needed to construct any backend.
type Config struct {
	Name string
	// BinaryPath overrides the executable for backends that shell out.
	BinaryPath string
}

// Constructor builds a Solver from config.
type Constructor func(cfg Config) (Solver, error)

// Factory creates Solver instances by name.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

// Register adds a backend constructor under the given name.
func (f *Factory) Register(name string, ctor Constructor) {
	f.constructors[name] = ctor
}

// Names returns the registered names, sorted.
func (f *Factory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Create builds the named backend. An unknown name wraps ErrSolverUnavailable.
func (f *Factory) Create(cfg Config) (Solver, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	ctor, ok := f.constructors[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown solver %q (registered: %v)", ErrSolverUnavailable, cfg.Name, f.Names())
	}
	return ctor(cfg)
}

// Available reports whether the named backend is registered and runnable.
func (f *Factory) Available(cfg Config) bool {
	s, err := f.Create(cfg)
	if err != nil {
		return false
	}
	return s.Available()
}

// Solve checks availability, then runs s and stamps name and duration on the
// result. An unavailable backend returns ErrSolverUnavailable without solving.
func Solve(ctx context.Context, s Solver, m *model.Model, opts Options) (*Result, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: %s", ErrSolverUnavailable, s.Name())
	}
	start := time.Now()
	res, err := s.Solve(ctx, m, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	res.Solver = s.Name()
	res.Duration = time.Since(start)
	return res, nil
}

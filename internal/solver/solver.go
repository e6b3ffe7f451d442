// Package solver defines the contract between the diet model and the LP
// engines that solve it. Each backend lives in its own subpackage and is
// registered with a Factory under a name; swapping the name changes only which
// engine runs, never the model handed to it.
package solver

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/efebarandurmaz/ration/internal/model"
)

// ErrSolverUnavailable indicates the requested solver cannot be invoked in
// the current environment.
var ErrSolverUnavailable = errors.New("solver unavailable")

// Termination classifies how a solve ended.
type Termination string

const (
	Optimal    Termination = "optimal"
	Infeasible Termination = "infeasible"
	Unbounded  Termination = "unbounded"
	Other      Termination = "other"
)

// Solver is an LP backend.
type Solver interface {
	// Name returns the registered solver name (e.g. "simplex", "highs").
	Name() string
	// Available reports whether the backend can run here. It has no side effects.
	Available() bool
	// Solve runs the backend synchronously. Non-optimal outcomes are reported
	// through Result.Termination; an error means the backend itself failed.
	Solve(ctx context.Context, m *model.Model, opts Options) (*Result, error)
}

// Options tune a single solve.
type Options struct {
	// Trace surfaces solver progress on Output for operator diagnostics.
	Trace  bool
	Output io.Writer
	// TimeLimit bounds the solve when positive. Backends interpret it.
	TimeLimit time.Duration
}

// TraceWriter returns where progress output should go: Output when tracing,
// io.Discard otherwise.
func (o Options) TraceWriter() io.Writer {
	if !o.Trace || o.Output == nil {
		return io.Discard
	}
	return o.Output
}

// Result is the outcome of a solve.
type Result struct {
	Solver      string
	Termination Termination
	// Status is the backend's own wording of the outcome.
	Status    string
	Objective float64
	// Values holds one entry per model variable when the backend produced an
	// assignment (always when optimal), nil otherwise.
	Values   []float64
	Duration time.Duration
}

// Optimal reports whether the solve reached optimality.
func (r *Result) Optimal() bool {
	return r != nil && r.Termination == Optimal
}

// ObjectiveValue returns the objective when optimal, nil otherwise.
func (r *Result) ObjectiveValue() *float64 {
	if !r.Optimal() {
		return nil
	}
	v := r.Objective
	return &v
}

// Value returns the value of variable j, zero when absent.
func (r *Result) Value(j int) float64 {
	if r == nil || j < 0 || j >= len(r.Values) {
		return 0
	}
	return r.Values[j]
}

// Snap zeroes values within tol of zero so round-off from the engine does not
// show up as a selected food.
func Snap(values []float64, tol float64) {
	for i, v := range values {
		if math.Abs(v) <= tol {
			values[i] = 0
		}
	}
}

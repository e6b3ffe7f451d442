// Package simplex is the in-process LP backend. It converts a model into the
// standard form accepted by gonum's simplex implementation
//
//	minimize cᵀy  subject to  A y = b,  y >= 0
//
// by shifting variable lower bounds to zero, dropping variables whose bounds
// coincide, and adding one slack column per finite row side and one bound
// row per finite variable cap.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/solver"
)

// Name is the registry name of this backend.
const Name = "simplex"

const (
	pivotTol = 1e-10
	snapTol  = 1e-9
)

// Solver runs gonum's lp.Simplex.
type Solver struct{}

// New returns the in-process simplex backend.
func New() *Solver { return &Solver{} }

// Constructor adapts New to the solver factory.
func Constructor(solver.Config) (solver.Solver, error) { return New(), nil }

func (s *Solver) Name() string { return Name }

// Available is always true: the engine is linked into the binary.
func (s *Solver) Available() bool { return true }

// Solve converts m to standard form and runs the simplex method. A positive
// TimeLimit bounds the wall-clock time of the call; when it or ctx expires
// first the result is an "other" termination and the engine's answer is
// dropped.
func (s *Solver) Solve(ctx context.Context, m *model.Model, opts solver.Options) (*solver.Result, error) {
	out := opts.TraceWriter()

	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	sf, err := toStandardForm(m)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "simplex: %d variables, %d constraints -> standard form %d rows x %d columns (%d fixed at bound)\n",
		m.NumVariables(), m.NumConstraints(), len(sf.b), len(sf.c), len(sf.fixed))

	if sf.status != "" {
		fmt.Fprintf(out, "simplex: presolve: %s\n", sf.status)
		return &solver.Result{Termination: sf.termination, Status: sf.status}, nil
	}
	if err := ctx.Err(); err != nil {
		return interrupted(out, err), nil
	}

	y := make([]float64, len(sf.c))
	if len(sf.b) > 0 {
		type outcome struct {
			y   []float64
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			_, y, err := run(sf)
			done <- outcome{y, err}
		}()

		select {
		case <-ctx.Done():
			return interrupted(out, ctx.Err()), nil
		case o := <-done:
			if o.err != nil {
				term := classify(o.err)
				fmt.Fprintf(out, "simplex: %s (%v)\n", term, o.err)
				return &solver.Result{Termination: term, Status: o.err.Error()}, nil
			}
			y = o.y
		}
	}

	values := sf.solution(y)
	solver.Snap(values, snapTol)
	obj := m.Objective.Evaluate(values)
	fmt.Fprintf(out, "simplex: optimal, objective %.6g\n", obj)

	return &solver.Result{
		Termination: solver.Optimal,
		Status:      "optimal",
		Objective:   obj,
		Values:      values,
	}, nil
}

// interrupted reports a solve stopped by its deadline or by cancellation.
func interrupted(out io.Writer, err error) *solver.Result {
	status := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		status = "time limit reached"
	}
	fmt.Fprintf(out, "simplex: %s\n", status)
	return &solver.Result{Termination: solver.Other, Status: status}
}

func run(sf *standardForm) (opt float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lp: %v", r)
		}
	}()
	a := mat.NewDense(len(sf.b), len(sf.c), sf.a)
	return lp.Simplex(sf.c, a, sf.b, pivotTol, nil)
}

func classify(err error) solver.Termination {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return solver.Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return solver.Unbounded
	default:
		return solver.Other
	}
}

// standardForm is the converted problem plus what is needed to map a
// solution back onto the model's variables.
type standardForm struct {
	c []float64
	a []float64 // row-major, len(b) x len(c)
	b []float64

	n      int       // model variables
	lower  []float64 // lower bound per model variable
	column []int     // model variable -> standard column, -1 when fixed
	fixed  []int     // model variables fixed at their lower bound

	termination solver.Termination
	status      string
}

// row is one standard-form row before column numbering: the terms over
// free model variables plus its own slack column with sign +1 (<=) or -1 (>=).
type row struct {
	coefs map[int]float64 // model variable -> coefficient
	slack float64
	rhs   float64
}

func toStandardForm(m *model.Model) (*standardForm, error) {
	n := m.NumVariables()
	sign := 1.0
	if m.Objective.Sense == model.Maximize {
		sign = -1
	}

	sf := &standardForm{
		n:      n,
		lower:  make([]float64, n),
		column: make([]int, n),
	}
	pinned := make([]bool, n)
	for j, v := range m.Variables {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			return nil, fmt.Errorf("variable %q: finite lower bound required, got %v", v.Name, v.Lower)
		}
		if v.Upper < v.Lower {
			sf.termination, sf.status = solver.Infeasible, fmt.Sprintf("variable %q has upper %v below lower %v", v.Name, v.Upper, v.Lower)
			return sf, nil
		}
		sf.lower[j] = v.Lower
		// A variable with no room between its bounds is a constant, not a column.
		pinned[j] = v.Upper == v.Lower
	}

	// Every row carries a slack of its own, so A always has full row rank
	// and at least as many columns as rows. An equality becomes a >= row and
	// a <= row over the same terms, which forces both slacks to zero.
	var rows []row
	for _, c := range m.Constraints {
		coefs := make(map[int]float64, len(c.Terms))
		shift := 0.0
		for _, t := range c.Terms {
			shift += t.Coef * sf.lower[t.Var]
			if !pinned[t.Var] {
				coefs[t.Var] += t.Coef
			}
		}
		for j, v := range coefs {
			if v == 0 {
				delete(coefs, j)
			}
		}
		lo, up := c.Lower-shift, c.Upper-shift

		if len(coefs) == 0 {
			if (c.HasLower() && lo > pivotTol) || (c.HasUpper() && up < -pivotTol) {
				sf.termination, sf.status = solver.Infeasible, fmt.Sprintf("row %q cannot reach [%v, %v] with its free variables", c.Name, c.Lower, c.Upper)
				return sf, nil
			}
			continue
		}
		if c.HasLower() {
			rows = append(rows, row{coefs: coefs, slack: -1, rhs: lo})
		}
		if c.HasUpper() {
			rows = append(rows, row{coefs: coefs, slack: 1, rhs: up})
		}
	}
	for j, v := range m.Variables {
		if pinned[j] || math.IsInf(v.Upper, 1) {
			continue
		}
		rows = append(rows, row{coefs: map[int]float64{j: 1}, slack: 1, rhs: v.Upper - v.Lower})
	}

	// A column with no entries cannot move any row: cost >= 0 pins it at its
	// lower bound, negative cost makes the problem unbounded.
	used := make([]bool, n)
	for _, r := range rows {
		for j := range r.coefs {
			used[j] = true
		}
	}
	cols := 0
	for j := 0; j < n; j++ {
		if used[j] {
			sf.column[j] = cols
			cols++
			continue
		}
		sf.column[j] = -1
		sf.fixed = append(sf.fixed, j)
		if !pinned[j] && sign*m.Objective.Coefs[j] < 0 {
			sf.termination, sf.status = solver.Unbounded, fmt.Sprintf("variable %q improves the objective without limit", m.Variables[j].Name)
			return sf, nil
		}
	}

	width := cols + len(rows)
	sf.c = make([]float64, width)
	for j := 0; j < n; j++ {
		if k := sf.column[j]; k >= 0 {
			sf.c[k] = sign * m.Objective.Coefs[j]
		}
	}
	sf.a = make([]float64, len(rows)*width)
	sf.b = make([]float64, len(rows))
	for i, r := range rows {
		for j, v := range r.coefs {
			sf.a[i*width+sf.column[j]] = v
		}
		sf.a[i*width+cols+i] = r.slack
		sf.b[i] = r.rhs
	}
	return sf, nil
}

func (sf *standardForm) solution(y []float64) []float64 {
	values := make([]float64, sf.n)
	for j := 0; j < sf.n; j++ {
		values[j] = sf.lower[j]
		if k := sf.column[j]; k >= 0 && k < len(y) {
			values[j] += y[k]
		}
	}
	return values
}

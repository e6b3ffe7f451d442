// Package model builds the linear program for a diet instance: one continuous
// serving variable per food, one bounded row per nutrient and a minimize-cost
// objective. A Model is mutable so extensions can add rows before solving.
package model

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/ration/internal/diet"
)

// Index set names every built model exposes.
const (
	SetFoods     = "F"
	SetNutrients = "N"
)

// Sense is the optimization direction.
type Sense string

const (
	Minimize Sense = "minimize"
	Maximize Sense = "maximize"
)

// Variable is a continuous decision variable with Lower <= x <= Upper.
type Variable struct {
	Name  string
	Lower float64
	Upper float64 // math.Inf(1) when unbounded
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is a ranged row Lower <= sum(terms) <= Upper. An infinite side
// is absent; Lower == Upper makes it an equality.
type Constraint struct {
	Name  string
	Terms []Term
	Lower float64 // math.Inf(-1) when absent
	Upper float64 // math.Inf(1) when absent
}

// IsEquality reports whether both sides are finite and equal.
func (c Constraint) IsEquality() bool {
	return !math.IsInf(c.Lower, 0) && c.Lower == c.Upper
}

// HasLower reports whether the row has a finite lower side.
func (c Constraint) HasLower() bool { return !math.IsInf(c.Lower, -1) }

// HasUpper reports whether the row has a finite upper side.
func (c Constraint) HasUpper() bool { return !math.IsInf(c.Upper, 1) }

// Activity evaluates the row's linear expression at values.
func (c Constraint) Activity(values []float64) float64 {
	var sum float64
	for _, t := range c.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Objective is a linear expression with a direction. Coefs is indexed by variable.
type Objective struct {
	Name  string
	Sense Sense
	Coefs []float64
}

// Evaluate returns the objective value at values.
func (o Objective) Evaluate(values []float64) float64 {
	var sum float64
	for i, c := range o.Coefs {
		if i < len(values) {
			sum += c * values[i]
		}
	}
	return sum
}

// Model is a built optimization model instance.
type Model struct {
	Foods       []diet.Food
	Nutrients   []diet.Nutrient
	Variables   []Variable
	Constraints []Constraint
	Objective   Objective

	// Applied records the names of extensions applied to this instance.
	Applied []string

	sets map[string][]int
}

// Build derives a fresh model from a validated instance. Identical instances
// always yield identical models.
func Build(inst *diet.Instance) *Model {
	foods := inst.Foods()
	nutrients := inst.Nutrients()

	m := &Model{
		Foods:     foods,
		Nutrients: nutrients,
		Variables: make([]Variable, len(foods)),
		Objective: Objective{
			Name:  "cost",
			Sense: Minimize,
			Coefs: make([]float64, len(foods)),
		},
		sets: make(map[string][]int),
	}

	foodIdx := make([]int, len(foods))
	for j, f := range foods {
		// Zero-capped foods keep their variable so counts stay aligned with the food set.
		m.Variables[j] = Variable{Name: f.Name, Lower: 0, Upper: f.MaxServings}
		m.Objective.Coefs[j] = f.Cost
		foodIdx[j] = j
		for _, tag := range f.Tags {
			m.sets[tag] = append(m.sets[tag], j)
		}
	}
	m.sets[SetFoods] = foodIdx

	nutIdx := make([]int, len(nutrients))
	for i, n := range nutrients {
		c := Constraint{
			Name:  "nutrient_limit[" + n.Name + "]",
			Lower: n.Min,
			Upper: n.Max,
		}
		for j, f := range foods {
			if a := inst.Content(f.Name, n.Name); a != 0 {
				c.Terms = append(c.Terms, Term{Var: j, Coef: a})
			}
		}
		m.Constraints = append(m.Constraints, c)
		nutIdx[i] = i
	}
	m.sets[SetNutrients] = nutIdx

	return m
}

// NumVariables returns the number of decision variables.
func (m *Model) NumVariables() int { return len(m.Variables) }

// NumConstraints returns the number of rows, extensions included.
func (m *Model) NumConstraints() int { return len(m.Constraints) }

// Set returns a named index set. "F" and "N" always exist; every food tag
// forms a set of variable indices.
func (m *Model) Set(name string) ([]int, bool) {
	s, ok := m.sets[name]
	if !ok {
		return nil, false
	}
	return append([]int(nil), s...), true
}

// AddConstraint appends a row after checking its variable references.
func (m *Model) AddConstraint(c Constraint) error {
	for _, t := range c.Terms {
		if t.Var < 0 || t.Var >= len(m.Variables) {
			return fmt.Errorf("constraint %q references variable %d, model has %d", c.Name, t.Var, len(m.Variables))
		}
	}
	if c.Lower > c.Upper {
		return fmt.Errorf("constraint %q: lower %v exceeds upper %v", c.Name, c.Lower, c.Upper)
	}
	m.Constraints = append(m.Constraints, c)
	return nil
}

// Feasible reports whether values satisfy every bound and row. tol is
// relative to the magnitude of each bound.
func (m *Model) Feasible(values []float64, tol float64) bool {
	if len(values) != len(m.Variables) {
		return false
	}
	for j, v := range m.Variables {
		if below(values[j], v.Lower, tol) || above(values[j], v.Upper, tol) {
			return false
		}
	}
	for _, c := range m.Constraints {
		a := c.Activity(values)
		if below(a, c.Lower, tol) || above(a, c.Upper, tol) {
			return false
		}
	}
	return true
}

func below(x, bound, tol float64) bool {
	return !math.IsInf(bound, -1) && x < bound-tol*(1+math.Abs(bound))
}

func above(x, bound, tol float64) bool {
	return !math.IsInf(bound, 1) && x > bound+tol*(1+math.Abs(bound))
}

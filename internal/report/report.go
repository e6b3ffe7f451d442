// Package report turns a solve result into the human-readable solution text
// and the machine-readable run statistics.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/solver"
)

// Item is one selected food in an optimal solution.
type Item struct {
	Food     string
	Servings float64
	UnitCost float64
	Cost     float64 // UnitCost * Servings
}

// FoodServing is the solved serving count of one food, selected or not.
type FoodServing struct {
	Food     string
	Servings float64
}

// Solution is the reporter's view of a finished solve. Items and TotalCost
// are populated only when the solve is optimal.
type Solution struct {
	Termination solver.Termination
	Objective   *float64
	Items       []Item
	TotalCost   float64
	// Servings lists every food in declaration order, zeros included.
	Servings []FoodServing

	NumVariables   int
	NumConstraints int
}

// Extract reads res against the model it was solved from.
func Extract(m *model.Model, res *solver.Result) *Solution {
	sol := &Solution{
		Termination:    res.Termination,
		Objective:      res.ObjectiveValue(),
		Servings:       make([]FoodServing, len(m.Foods)),
		NumVariables:   m.NumVariables(),
		NumConstraints: m.NumConstraints(),
	}
	for j, f := range m.Foods {
		sol.Servings[j] = FoodServing{Food: f.Name, Servings: res.Value(j)}
	}
	if !res.Optimal() {
		return sol
	}
	for j, f := range m.Foods {
		servings := res.Value(j)
		if servings <= 0 {
			continue
		}
		cost := f.Cost * servings
		sol.Items = append(sol.Items, Item{Food: f.Name, Servings: servings, UnitCost: f.Cost, Cost: cost})
		sol.TotalCost += cost
	}
	return sol
}

// Optimal reports whether the solve reached optimality.
func (s *Solution) Optimal() bool { return s.Termination == solver.Optimal }

// SelectedFoods is the number of foods with positive servings.
func (s *Solution) SelectedFoods() int { return len(s.Items) }

// TotalServings sums the servings of the selected foods.
func (s *Solution) TotalServings() float64 {
	var total float64
	for _, it := range s.Items {
		total += it.Servings
	}
	return total
}

// WriteText writes the solution report.
func WriteText(w io.Writer, s *Solution) error {
	var b strings.Builder
	if !s.Optimal() {
		fmt.Fprintf(&b, "Solver terminated with condition: %s\n", s.Termination)
		b.WriteString("No optimal solution found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rule := strings.Repeat("=", 50)
	b.WriteString(rule + "\n")
	b.WriteString("DIET OPTIMIZATION SOLUTION\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Minimum cost: $%.2f\n\n", *s.Objective)
	b.WriteString("Optimal food selections:\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "%-18s: %2.0f servings @ $%.2f = $%.2f\n", it.Food, it.Servings, it.UnitCost, it.Cost)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package diet

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrMalformedInput indicates the problem data violates an invariant of the
// data model. Callers branch on it with errors.Is.
var ErrMalformedInput = errors.New("diet: malformed input")

// ValidationError lists every invariant violation found in one pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedInput, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrMalformedInput }

func validate(foods []Food, nutrients []Nutrient, content map[string]map[string]float64) error {
	var issues []string

	if len(foods) == 0 {
		issues = append(issues, "food set is empty")
	}
	if len(nutrients) == 0 {
		issues = append(issues, "nutrient set is empty")
	}

	foodSet := make(map[string]bool, len(foods))
	for i, f := range foods {
		switch {
		case strings.TrimSpace(f.Name) == "":
			issues = append(issues, fmt.Sprintf("food #%d has no name", i))
			continue
		case foodSet[f.Name]:
			issues = append(issues, fmt.Sprintf("duplicate food %q", f.Name))
		}
		foodSet[f.Name] = true

		if math.IsNaN(f.Cost) || math.IsInf(f.Cost, 0) || f.Cost <= 0 {
			issues = append(issues, fmt.Sprintf("food %q: cost must be positive, got %v", f.Name, f.Cost))
		}
		if math.IsNaN(f.MaxServings) || f.MaxServings < 0 {
			issues = append(issues, fmt.Sprintf("food %q: max_servings must be >= 0, got %v", f.Name, f.MaxServings))
		}
	}

	nutSet := make(map[string]bool, len(nutrients))
	for i, n := range nutrients {
		switch {
		case strings.TrimSpace(n.Name) == "":
			issues = append(issues, fmt.Sprintf("nutrient #%d has no name", i))
			continue
		case nutSet[n.Name]:
			issues = append(issues, fmt.Sprintf("duplicate nutrient %q", n.Name))
		}
		nutSet[n.Name] = true

		if math.IsNaN(n.Min) || math.IsInf(n.Min, 0) || n.Min < 0 {
			issues = append(issues, fmt.Sprintf("nutrient %q: min must be >= 0, got %v", n.Name, n.Min))
		}
		if math.IsNaN(n.Max) || n.Max < n.Min {
			issues = append(issues, fmt.Sprintf("nutrient %q: max %v is below min %v", n.Name, n.Max, n.Min))
		}
	}

	// Sorted so the message is stable across runs.
	foodNames := make([]string, 0, len(content))
	for food := range content {
		foodNames = append(foodNames, food)
	}
	sort.Strings(foodNames)
	for _, food := range foodNames {
		if !foodSet[food] {
			issues = append(issues, fmt.Sprintf("content references unknown food %q", food))
			continue
		}
		row := content[food]
		nutNames := make([]string, 0, len(row))
		for nut := range row {
			nutNames = append(nutNames, nut)
		}
		sort.Strings(nutNames)
		for _, nut := range nutNames {
			if !nutSet[nut] {
				issues = append(issues, fmt.Sprintf("content for %q references unknown nutrient %q", food, nut))
				continue
			}
			if v := row[nut]; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				issues = append(issues, fmt.Sprintf("content %q/%q must be >= 0, got %v", food, nut, v))
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

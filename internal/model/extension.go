package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/efebarandurmaz/ration/internal/diet"
)

// ErrExtensionPrecondition indicates an extension was applied to a model that
// lacks the structure it needs. Nothing is added when it is returned.
var ErrExtensionPrecondition = errors.New("model: extension precondition violated")

// OptionLimitDairy is the run option that enables the dairy cap.
const OptionLimitDairy = "limit_dairy"

// Extension mutates a built model in place, typically by adding one row.
type Extension func(m *Model) error

// DairyLimit caps the summed servings of every dairy-tagged food at limit.
func DairyLimit(limit float64) Extension {
	return SubsetLimit(diet.DairyTag, limit)
}

// SubsetLimit caps the summed servings of the foods in the named index set.
func SubsetLimit(set string, limit float64) Extension {
	return func(m *Model) error {
		if m == nil {
			return fmt.Errorf("%w: nil model", ErrExtensionPrecondition)
		}
		members, ok := m.Set(set)
		if !ok || len(members) == 0 {
			return fmt.Errorf("%w: model has no %q index set", ErrExtensionPrecondition, set)
		}
		if math.IsNaN(limit) || limit < 0 {
			return fmt.Errorf("%w: %s limit must be >= 0, got %v", ErrExtensionPrecondition, set, limit)
		}
		terms := make([]Term, len(members))
		for i, j := range members {
			terms[i] = Term{Var: j, Coef: 1}
		}
		return m.AddConstraint(Constraint{
			Name:  set + "_limit",
			Terms: terms,
			Lower: math.Inf(-1),
			Upper: limit,
		})
	}
}

// Extensions maps run option names to model mutators. The builder never
// consults it; the orchestration layer applies what the options enable.
type Extensions struct {
	byOption map[string]Extension
}

// NewExtensions creates an empty registry.
func NewExtensions() *Extensions {
	return &Extensions{byOption: make(map[string]Extension)}
}

// Register binds an extension to a run option name.
func (e *Extensions) Register(option string, ext Extension) {
	e.byOption[option] = ext
}

// Names returns the registered option names, sorted.
func (e *Extensions) Names() []string {
	out := make([]string, 0, len(e.byOption))
	for name := range e.byOption {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply runs every enabled extension once, in option-name order. Unknown
// enabled options are an error. It stops at the first failure.
func (e *Extensions) Apply(m *Model, enabled map[string]bool) ([]string, error) {
	names := make([]string, 0, len(enabled))
	for name, on := range enabled {
		if !on {
			continue
		}
		if _, ok := e.byOption[name]; !ok {
			return nil, fmt.Errorf("no model extension registered for option %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		if err := e.byOption[name](m); err != nil {
			return applied, fmt.Errorf("extension %s: %w", name, err)
		}
		m.Applied = append(m.Applied, name)
		applied = append(applied, name)
	}
	return applied, nil
}

// Package diet holds the problem instance for the diet model: foods, nutrients,
// costs and the nutrient content matrix. An Instance is immutable once loaded.
package diet

import (
	"math"
	"sort"
)

// DairyTag is the food tag that marks members of the dairy subset.
const DairyTag = "dairy"

// Food is a purchasable item with a cost per serving.
type Food struct {
	Name        string
	Cost        float64
	MaxServings float64 // math.Inf(1) when unbounded
	Tags        []string
}

// Bounded reports whether the food has a finite serving cap.
func (f Food) Bounded() bool {
	return !math.IsInf(f.MaxServings, 1)
}

// HasTag reports whether the food carries the given tag.
func (f Food) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Nutrient is an intake requirement. Max is math.Inf(1) when unbounded.
type Nutrient struct {
	Name string
	Min  float64
	Max  float64
}

// Bounded reports whether the nutrient has a finite maximum.
func (n Nutrient) Bounded() bool {
	return !math.IsInf(n.Max, 1)
}

// Instance is a validated diet problem. Food and nutrient order is the order
// in which they were declared in the input.
type Instance struct {
	foods     []Food
	nutrients []Nutrient
	content   map[string]map[string]float64
	foodIdx   map[string]int
	nutIdx    map[string]int
}

// NewInstance validates the given data and returns an immutable Instance.
// content maps food name to nutrient name to amount per serving; missing
// entries are zero. Validation failures wrap ErrMalformedInput.
func NewInstance(foods []Food, nutrients []Nutrient, content map[string]map[string]float64) (*Instance, error) {
	if err := validate(foods, nutrients, content); err != nil {
		return nil, err
	}

	inst := &Instance{
		foods:     make([]Food, len(foods)),
		nutrients: make([]Nutrient, len(nutrients)),
		content:   make(map[string]map[string]float64, len(content)),
		foodIdx:   make(map[string]int, len(foods)),
		nutIdx:    make(map[string]int, len(nutrients)),
	}
	for i, f := range foods {
		f.Tags = append([]string(nil), f.Tags...)
		inst.foods[i] = f
		inst.foodIdx[f.Name] = i
	}
	copy(inst.nutrients, nutrients)
	for i, n := range nutrients {
		inst.nutIdx[n.Name] = i
	}
	for food, row := range content {
		cp := make(map[string]float64, len(row))
		for nut, amount := range row {
			cp[nut] = amount
		}
		inst.content[food] = cp
	}
	return inst, nil
}

// Foods returns a copy of the foods in declaration order.
func (in *Instance) Foods() []Food {
	out := make([]Food, len(in.foods))
	for i, f := range in.foods {
		f.Tags = append([]string(nil), f.Tags...)
		out[i] = f
	}
	return out
}

// Nutrients returns a copy of the nutrients in declaration order.
func (in *Instance) Nutrients() []Nutrient {
	out := make([]Nutrient, len(in.nutrients))
	copy(out, in.nutrients)
	return out
}

// Food looks up a food by name.
func (in *Instance) Food(name string) (Food, bool) {
	i, ok := in.foodIdx[name]
	if !ok {
		return Food{}, false
	}
	f := in.foods[i]
	f.Tags = append([]string(nil), f.Tags...)
	return f, true
}

// Nutrient looks up a nutrient by name.
func (in *Instance) Nutrient(name string) (Nutrient, bool) {
	i, ok := in.nutIdx[name]
	if !ok {
		return Nutrient{}, false
	}
	return in.nutrients[i], true
}

// Content returns the amount of nutrient per serving of food, zero when absent.
func (in *Instance) Content(food, nutrient string) float64 {
	return in.content[food][nutrient]
}

// NumFoods returns the size of the food set.
func (in *Instance) NumFoods() int { return len(in.foods) }

// NumNutrients returns the size of the nutrient set.
func (in *Instance) NumNutrients() int { return len(in.nutrients) }

// Tags returns every distinct food tag, sorted.
func (in *Instance) Tags() []string {
	seen := make(map[string]struct{})
	for _, f := range in.foods {
		for _, t := range f.Tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

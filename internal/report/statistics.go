package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatisticsSchema is the schema tag written into every statistics document.
const StatisticsSchema = "v1"

// Statistics is the run statistics document.
type Statistics struct {
	Statistics StatisticsBody `json:"statistics"`
}

type StatisticsBody struct {
	Schema string      `json:"schema"`
	Result ResultStats `json:"result"`
}

// ResultStats carries the objective (null unless optimal) and custom counters.
type ResultStats struct {
	Value  *float64    `json:"value"`
	Custom CustomStats `json:"custom"`
}

type CustomStats struct {
	FoodServings  map[string]float64 `json:"food_servings"`
	NConstraints  int                `json:"nconstraints"`
	NVars         int                `json:"nvars"`
	SelectedFoods int                `json:"selected_foods"`
	TotalServings float64            `json:"total_servings"`
}

// NewStatistics builds the statistics document for s.
func NewStatistics(s *Solution) *Statistics {
	servings := make(map[string]float64, len(s.Servings))
	for _, fs := range s.Servings {
		servings[fs.Food] = fs.Servings
	}
	return &Statistics{Statistics: StatisticsBody{
		Schema: StatisticsSchema,
		Result: ResultStats{
			Value: s.Objective,
			Custom: CustomStats{
				FoodServings:  servings,
				NConstraints:  s.NumConstraints,
				NVars:         s.NumVariables,
				SelectedFoods: s.SelectedFoods(),
				TotalServings: s.TotalServings(),
			},
		},
	}}
}

// WriteStatistics writes the compact statistics document. Map keys are
// sorted by encoding/json, so identical solutions produce identical bytes.
func WriteStatistics(w io.Writer, s *Solution) error {
	data, err := json.Marshal(NewStatistics(s))
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	_, err = w.Write(data)
	return err
}

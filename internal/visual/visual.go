// Package visual renders an optimal diet as a grouped bar chart (servings on
// the primary axis, cost on the secondary one) wrapped in an assets document.
package visual

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/efebarandurmaz/ration/internal/report"
)

// Asset metadata.
const (
	AssetName    = "Diet Optimization Results"
	ContentType  = "json"
	VisualSchema = "plotly"
	VisualType   = "custom-tab"
	VisualLabel  = "Food Selection"
)

type Asset struct {
	Name        string   `json:"name"`
	ContentType string   `json:"content_type"`
	Visual      Visual   `json:"visual"`
	Content     []Figure `json:"content"`
}

type Visual struct {
	VisualSchema string `json:"visual_schema"`
	VisualType   string `json:"visual_type"`
	Label        string `json:"label"`
}

// Document is the top-level assets file.
type Document struct {
	Assets []Asset `json:"assets"`
}

// Emit returns the assets document for sol, or nil when there is nothing to
// show: the solve was not optimal or no food was selected.
func Emit(sol *report.Solution) *Document {
	if sol == nil || !sol.Optimal() || sol.SelectedFoods() == 0 {
		return nil
	}
	return &Document{Assets: []Asset{{
		Name:        AssetName,
		ContentType: ContentType,
		Visual: Visual{
			VisualSchema: VisualSchema,
			VisualType:   VisualType,
			Label:        VisualLabel,
		},
		Content: []Figure{NewFigure(sol.Items)},
	}}}
}

// NewFigure builds the grouped bar chart for the selected items.
func NewFigure(items []report.Item) Figure {
	names := make([]string, len(items))
	servings := make([]float64, len(items))
	servingLabels := make([]string, len(items))
	costs := make([]float64, len(items))
	costLabels := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Food
		servings[i] = it.Servings
		servingLabels[i] = fmt.Sprintf("%.0f", it.Servings)
		costs[i] = it.Cost
		costLabels[i] = fmt.Sprintf("$%.2f", it.Cost)
	}

	return Figure{
		Data: []Bar{
			{
				Type: "bar", Name: "Servings",
				X: names, Y: servings, Text: servingLabels, TextPosition: "auto",
				Marker: Marker{Color: "lightblue"}, OffsetGroup: "1",
				XAxis: "x", YAxis: "y",
			},
			{
				Type: "bar", Name: "Total Cost ($)",
				X: names, Y: costs, Text: costLabels, TextPosition: "auto",
				Marker: Marker{Color: "lightcoral"}, OffsetGroup: "2",
				XAxis: "x", YAxis: "y2",
			},
		},
		Layout: Layout{
			Title:   Title{Text: "Optimal Diet Solution: Selected Food Items"},
			XAxis:   Axis{Title: Title{Text: "Food Items"}, Anchor: "y", Domain: []float64{0, 0.94}},
			YAxis:   Axis{Title: Title{Text: "Number of Servings"}, Anchor: "x", Domain: []float64{0, 1}},
			YAxis2:  Axis{Title: Title{Text: "Total Cost ($)"}, Anchor: "x", Overlaying: "y", Side: "right"},
			BarMode: "group",
			Legend:  Legend{X: 0.7, Y: 1},
			Height:  500,
			Margin:  Margin{L: 50, R: 50, T: 80, B: 100},
		},
	}
}

// Write writes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal assets: %w", err)
	}
	_, err = w.Write(data)
	return err
}

package diet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a data file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the on-disk shape of a diet data file. Unbounded limits are
// written as null or omitted.
type File struct {
	Foods     []FoodEntry                   `yaml:"foods" json:"foods"`
	Nutrients []NutrientEntry               `yaml:"nutrients" json:"nutrients"`
	Content   map[string]map[string]float64 `yaml:"content" json:"content"`
}

type FoodEntry struct {
	Name        string   `yaml:"name" json:"name"`
	Cost        float64  `yaml:"cost" json:"cost"`
	MaxServings *float64 `yaml:"max_servings,omitempty" json:"max_servings,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

type NutrientEntry struct {
	Name string   `yaml:"name" json:"name"`
	Min  float64  `yaml:"min" json:"min"`
	Max  *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported data file extension %q", ErrMalformedInput, filepath.Ext(path))
	}
}

// Load reads and validates the data file at path.
func Load(path string) (*Instance, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	inst, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

// Decode parses a data file from r. Unknown fields are rejected.
func Decode(r io.Reader, format Format) (*Instance, error) {
	var file File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrMalformedInput, format)
	}
	return file.Instance()
}

// Instance converts the file into a validated Instance.
func (f *File) Instance() (*Instance, error) {
	foods := make([]Food, len(f.Foods))
	for i, e := range f.Foods {
		maxServings := math.Inf(1)
		if e.MaxServings != nil {
			maxServings = *e.MaxServings
		}
		foods[i] = Food{Name: e.Name, Cost: e.Cost, MaxServings: maxServings, Tags: e.Tags}
	}
	nutrients := make([]Nutrient, len(f.Nutrients))
	for i, e := range f.Nutrients {
		maxTotal := math.Inf(1)
		if e.Max != nil {
			maxTotal = *e.Max
		}
		nutrients[i] = Nutrient{Name: e.Name, Min: e.Min, Max: maxTotal}
	}
	return NewInstance(foods, nutrients, f.Content)
}

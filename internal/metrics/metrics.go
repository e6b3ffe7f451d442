package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PipelineMetrics collects statistics for a full pipeline run.
type PipelineMetrics struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"-"`
	DurationMS int64          `json:"duration_ms"`
	Input      InputMetrics   `json:"input"`
	Model      ModelMetrics   `json:"model"`
	Solve      SolveMetrics   `json:"solve"`
	Stages     []StageMetrics `json:"stages"`
	Outputs    []string       `json:"outputs,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

type InputMetrics struct {
	Path      string `json:"path"`
	Foods     int    `json:"foods"`
	Nutrients int    `json:"nutrients"`
}

type ModelMetrics struct {
	Variables   int      `json:"nvars"`
	Constraints int      `json:"nconstraints"`
	Extensions  []string `json:"extensions,omitempty"`
}

type SolveMetrics struct {
	Solver        string        `json:"solver"`
	Termination   string        `json:"termination,omitempty"`
	Objective     *float64      `json:"objective,omitempty"`
	SelectedFoods int           `json:"selected_foods"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
}

type StageMetrics struct {
	Name       string        `json:"name"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Errors     int           `json:"errors"`
}

// New starts tracking a pipeline run.
func New(runID string) *PipelineMetrics {
	return &PipelineMetrics{RunID: runID, StartedAt: time.Now()}
}

// RecordInput records the size of the loaded data set.
func (m *PipelineMetrics) RecordInput(path string, foods, nutrients int) {
	m.Input = InputMetrics{Path: path, Foods: foods, Nutrients: nutrients}
}

// RecordModel records the dimensions of the model handed to the solver.
func (m *PipelineMetrics) RecordModel(nvars, nconstraints int, extensions []string) {
	m.Model = ModelMetrics{
		Variables:   nvars,
		Constraints: nconstraints,
		Extensions:  append([]string(nil), extensions...),
	}
}

// RecordSolve records the solver outcome. objective is nil unless optimal.
func (m *PipelineMetrics) RecordSolve(solver, termination string, objective *float64, selected int, d time.Duration) {
	m.Solve = SolveMetrics{
		Solver:        solver,
		Termination:   termination,
		Objective:     objective,
		SelectedFoods: selected,
		Duration:      d,
		DurationMS:    d.Milliseconds(),
	}
}

// AddStage records a single stage's timing and status.
func (m *PipelineMetrics) AddStage(name string, d time.Duration, errCount int) {
	m.Stages = append(m.Stages, StageMetrics{
		Name:       name,
		Duration:   d,
		DurationMS: d.Milliseconds(),
		Errors:     errCount,
	})
}

// AddOutput records a written output file.
func (m *PipelineMetrics) AddOutput(path string) {
	m.Outputs = append(m.Outputs, path)
}

// Finish marks the pipeline as complete.
func (m *PipelineMetrics) Finish(errs []string) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.DurationMS = m.Duration.Milliseconds()
	m.Errors = errs
}

// PrintSummary writes a human-readable summary.
func (m *PipelineMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         RATION PIPELINE REPORT       ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Run:         %-23s║\n", shortID(m.RunID))
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Solver:      %-23s║\n", m.Solve.Solver)
	fmt.Fprintf(w, "║ Termination: %-23s║\n", orDash(m.Solve.Termination))
	if m.Solve.Objective != nil {
		fmt.Fprintf(w, "║ Objective:   %-23.2f║\n", *m.Solve.Objective)
	} else {
		fmt.Fprintf(w, "║ Objective:   %-23s║\n", "-")
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ INPUT (%s)\n", m.Input.Path)
	fmt.Fprintf(w, "║   Foods:       %d\n", m.Input.Foods)
	fmt.Fprintf(w, "║   Nutrients:   %d\n", m.Input.Nutrients)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ MODEL\n")
	fmt.Fprintf(w, "║   Variables:   %d\n", m.Model.Variables)
	fmt.Fprintf(w, "║   Constraints: %d\n", m.Model.Constraints)
	if len(m.Model.Extensions) > 0 {
		fmt.Fprintf(w, "║   Extensions:  %v\n", m.Model.Extensions)
	}
	fmt.Fprintf(w, "║   Selected:    %d\n", m.Solve.SelectedFoods)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Errors > 0 {
			status = fmt.Sprintf("%d errors", s.Errors)
		}
		fmt.Fprintf(w, "║   %-14s %8s  %s\n", s.Name, s.Duration.Round(time.Microsecond), status)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *PipelineMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

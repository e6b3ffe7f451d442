package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func sampleRun() *PipelineMetrics {
	m := New("5f0c3a2e-1d4b-4c8e-9a7f-0b1c2d3e4f50")
	m.RecordInput("inputs/diet.yaml", 9, 8)
	m.AddStage("load", 2*time.Millisecond, 0)
	m.AddStage("solve", 5*time.Millisecond, 0)
	m.RecordModel(9, 9, []string{"limit_dairy"})
	obj := 15.05
	m.RecordSolve("simplex", "optimal", &obj, 4, 5*time.Millisecond)
	m.AddOutput("outputs/diet_solution.txt")
	m.Finish(nil)
	return m
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	sampleRun().PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{"RATION PIPELINE REPORT", "5f0c3a2e", "simplex", "optimal", "15.05", "Constraints: 9", "limit_dairy", "load"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ERRORS") {
		t.Error("summary should not list errors for a clean run")
	}
}

func TestPrintSummary_NoObjective(t *testing.T) {
	m := New("")
	m.RecordSolve("highs", "infeasible", nil, 0, 0)
	m.Finish([]string{"boom"})

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	if !strings.Contains(buf.String(), "ERRORS") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("errors not printed:\n%s", buf.String())
	}
}

func TestJSON(t *testing.T) {
	data, err := sampleRun().JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	solve := decoded["solve"].(map[string]any)
	if solve["objective"] != 15.05 || solve["termination"] != "optimal" {
		t.Errorf("solve = %v", solve)
	}
	if stages := decoded["stages"].([]any); len(stages) != 2 {
		t.Errorf("stages = %v", stages)
	}
}

func TestRegistry(t *testing.T) {
	reg, err := sampleRun().Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	if f := byName["ration_objective_value"]; f == nil || f.GetMetric()[0].GetGauge().GetValue() != 15.05 {
		t.Errorf("objective gauge = %v", f)
	}
	if f := byName["ration_stage_duration_seconds"]; f == nil || len(f.GetMetric()) != 2 {
		t.Errorf("stage gauge = %v", f)
	}

	if n, err := testutil.GatherAndCount(reg, "ration_model_size"); err != nil || n != 2 {
		t.Errorf("model_size series = %d (%v), want 2", n, err)
	}
}

func TestRegistry_NoObjective(t *testing.T) {
	m := New("x")
	m.RecordSolve("simplex", "infeasible", nil, 0, 0)
	m.Finish(nil)

	reg, err := m.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg, "ration_objective_value"); err != nil || n != 0 {
		t.Errorf("objective exported for a non-optimal run: %d (%v)", n, err)
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ration.prom")
	if err := sampleRun().WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `ration_solve_info{solver="simplex",termination="optimal"} 1`) {
		t.Errorf("textfile missing solve_info:\n%s", data)
	}
}

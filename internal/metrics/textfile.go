package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric name.
const Namespace = "ration"

// Registry builds a Prometheus registry holding the run's gauges. Batch runs
// have no scrape endpoint, so the registry is written to a textfile for the
// node exporter's textfile collector.
func (m *PipelineMetrics) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of the last pipeline run.",
	})
	runDuration.Set(m.Duration.Seconds())

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last pipeline run finished.",
	})
	lastRun.Set(float64(m.FinishedAt.Unix()))

	stageDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage in the last run.",
	}, []string{"stage"})
	for _, s := range m.Stages {
		stageDuration.WithLabelValues(s.Name).Set(s.Duration.Seconds())
	}

	modelSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "model_size",
		Help:      "Dimensions of the last solved model.",
	}, []string{"dimension"})
	modelSize.WithLabelValues("variables").Set(float64(m.Model.Variables))
	modelSize.WithLabelValues("constraints").Set(float64(m.Model.Constraints))

	solves := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "solve_info",
		Help:      "Solver and termination of the last run (always 1).",
	}, []string{"solver", "termination"})
	if m.Solve.Solver != "" {
		solves.WithLabelValues(m.Solve.Solver, orDash(m.Solve.Termination)).Set(1)
	}

	collectors := []prometheus.Collector{runDuration, lastRun, stageDuration, modelSize, solves}

	if m.Solve.Objective != nil {
		objective := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "objective_value",
			Help:      "Minimum cost found by the last optimal solve.",
		})
		objective.Set(*m.Solve.Objective)
		collectors = append(collectors, objective)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return reg, nil
}

// WriteTextfile writes the run metrics in Prometheus text format to path.
func (m *PipelineMetrics) WriteTextfile(path string) error {
	reg, err := m.Registry()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

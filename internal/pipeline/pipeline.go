// Package pipeline runs one diet optimization end to end: load the data file,
// build the model, apply enabled extensions, solve, then write the solution
// report, the run statistics and, for optimal runs, the chart asset.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/ration/internal/config"
	"github.com/efebarandurmaz/ration/internal/diet"
	"github.com/efebarandurmaz/ration/internal/metrics"
	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/observability"
	"github.com/efebarandurmaz/ration/internal/report"
	"github.com/efebarandurmaz/ration/internal/solver"
	"github.com/efebarandurmaz/ration/internal/visual"
)

// Config is everything one run needs. It is built by the caller; the
// pipeline reads no global state.
type Config struct {
	RunID   string
	WorkDir string
	Paths   config.PathsConfig

	Solver     solver.Config
	Extensions map[string]bool
	Trace      bool
	TimeLimit  time.Duration
}

// FromConfig derives a run configuration from the loaded manifest.
func FromConfig(runID, workDir string, cfg *config.Config) Config {
	return Config{
		RunID:   runID,
		WorkDir: workDir,
		Paths:   cfg.Paths,
		Solver: solver.Config{
			Name:       cfg.Options.Solver,
			BinaryPath: cfg.Solver.HighsPath,
		},
		Extensions: map[string]bool{model.OptionLimitDairy: cfg.Options.LimitDairy},
		Trace:      cfg.Options.Trace,
		TimeLimit:  cfg.Options.TimeLimit,
	}
}

// Pipeline wires the registries and output streams a run uses.
type Pipeline struct {
	solvers    *solver.Factory
	extensions *model.Extensions
	logger     *slog.Logger
	stdout     io.Writer // confirmation lines
	stderr     io.Writer // solver trace
}

// New creates a pipeline. A nil logger discards logs; nil writers discard output.
func New(solvers *solver.Factory, extensions *model.Extensions, logger *slog.Logger, stdout, stderr io.Writer) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Pipeline{solvers: solvers, extensions: extensions, logger: logger, stdout: stdout, stderr: stderr}
}

// Result is the outcome of a run.
type Result struct {
	Model    *model.Model
	Solve    *solver.Result
	Solution *report.Solution

	// Written lists output paths in the order they were written.
	Written []string
	Metrics *metrics.PipelineMetrics
}

// Run executes the pipeline once. When the configured solver is unavailable
// it prints the operator message, writes nothing and returns an error
// wrapping solver.ErrSolverUnavailable.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (res *Result, err error) {
	pm := metrics.New(cfg.RunID)
	res = &Result{Metrics: pm}
	logger := p.logger.With("run_id", cfg.RunID)

	solverName := cfg.Solver.Name
	if solverName == "" {
		solverName = solver.DefaultName
	}
	ctx, runSpan := observability.StartRunSpan(ctx, cfg.RunID, solverName)
	defer func() {
		var errs []string
		if err != nil {
			errs = append(errs, err.Error())
			observability.RecordError(runSpan, err)
		}
		pm.Finish(errs)
		runSpan.End()
	}()

	// load
	inputPath := resolve(cfg.WorkDir, cfg.Paths.Input)
	var inst *diet.Instance
	err = p.stage(ctx, pm, observability.StageLoad, func(trace.Span) error {
		var lerr error
		inst, lerr = diet.Load(inputPath)
		return lerr
	})
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	pm.RecordInput(cfg.Paths.Input, inst.NumFoods(), inst.NumNutrients())
	logger.Info("data loaded", "path", inputPath, "foods", inst.NumFoods(), "nutrients", inst.NumNutrients())

	// build
	var m *model.Model
	_ = p.stage(ctx, pm, observability.StageBuild, func(span trace.Span) error {
		m = model.Build(inst)
		observability.RecordModelSize(span, m.NumVariables(), m.NumConstraints(), nil)
		return nil
	})
	res.Model = m

	// extend
	err = p.stage(ctx, pm, observability.StageExtend, func(span trace.Span) error {
		applied, aerr := p.extensions.Apply(m, cfg.Extensions)
		observability.RecordModelSize(span, m.NumVariables(), m.NumConstraints(), applied)
		return aerr
	})
	if err != nil {
		return res, fmt.Errorf("extend: %w", err)
	}
	pm.RecordModel(m.NumVariables(), m.NumConstraints(), m.Applied)
	logger.Info("model built", "nvars", m.NumVariables(), "nconstraints", m.NumConstraints(), "extensions", m.Applied)

	// solve
	s, cerr := p.solvers.Create(cfg.Solver)
	if cerr != nil || !s.Available() {
		fmt.Fprintf(p.stdout, "Error: %s solver is not available!\n", solverName)
		fmt.Fprintln(p.stdout, "Please install the solver or try a different solver.")
		pm.RecordSolve(solverName, "", nil, 0, 0)
		if cerr != nil {
			return res, cerr
		}
		return res, fmt.Errorf("%w: %s", solver.ErrSolverUnavailable, solverName)
	}

	sr, err := p.solve(ctx, pm, s, m, solver.Options{
		Trace:     cfg.Trace,
		Output:    p.stderr,
		TimeLimit: cfg.TimeLimit,
	})
	if err != nil {
		return res, fmt.Errorf("solve: %w", err)
	}
	res.Solve = sr
	logger.Info("solve finished", "solver", sr.Solver, "termination", sr.Termination, "status", sr.Status, "duration", sr.Duration)

	sol := report.Extract(m, sr)
	res.Solution = sol
	pm.RecordSolve(sr.Solver, string(sr.Termination), sol.Objective, sol.SelectedFoods(), sr.Duration)

	// report
	err = p.stage(ctx, pm, observability.StageReport, func(span trace.Span) error {
		return p.output(span, res, cfg.WorkDir,
			outputFile{rel: cfg.Paths.Solution, label: "Results", render: func(b *bytes.Buffer) error {
				return report.WriteText(b, sol)
			}},
			outputFile{rel: cfg.Paths.Statistics, label: "Statistics", render: func(b *bytes.Buffer) error {
				return report.WriteStatistics(b, sol)
			}},
		)
	})
	if err != nil {
		return res, fmt.Errorf("report: %w", err)
	}

	// visualize
	err = p.stage(ctx, pm, observability.StageVisualize, func(span trace.Span) error {
		doc := visual.Emit(sol)
		if doc == nil {
			return p.removeStale(resolve(cfg.WorkDir, cfg.Paths.Assets))
		}
		return p.output(span, res, cfg.WorkDir, outputFile{rel: cfg.Paths.Assets, label: "Assets", render: func(b *bytes.Buffer) error {
			return visual.Write(b, doc)
		}})
	})
	if err != nil {
		return res, fmt.Errorf("visualize: %w", err)
	}

	return res, nil
}

// stage runs fn inside a span and records its timing.
func (p *Pipeline) stage(ctx context.Context, pm *metrics.PipelineMetrics, name string, fn func(span trace.Span) error) error {
	_, span := observability.StartStageSpan(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(span)
	errCount := 0
	if err != nil {
		errCount = 1
		observability.RecordError(span, err)
		p.logger.Error("stage failed", "stage", name, "error", err)
	}
	pm.AddStage(name, time.Since(start), errCount)
	return err
}

func (p *Pipeline) solve(ctx context.Context, pm *metrics.PipelineMetrics, s solver.Solver, m *model.Model, opts solver.Options) (*solver.Result, error) {
	ctx, span := observability.StartSolveSpan(ctx, s.Name())
	defer span.End()

	start := time.Now()
	res, err := solver.Solve(ctx, s, m, opts)
	errCount := 0
	if err != nil {
		errCount = 1
		observability.RecordError(span, err)
		p.logger.Error("solver failed", "solver", s.Name(), "error", err)
	} else {
		observability.RecordSolveResult(span, string(res.Termination), res.ObjectiveValue(), res.Duration)
	}
	pm.AddStage(observability.StageSolve, time.Since(start), errCount)
	return res, err
}

// outputFile is one file a stage produces, relative to the work dir.
type outputFile struct {
	rel    string
	label  string
	render func(*bytes.Buffer) error
}

// output renders and stages every file before any is moved into place, so a
// failure leaves none of them behind. Each committed file prints its
// confirmation line.
func (p *Pipeline) output(span trace.Span, res *Result, workDir string, files ...outputFile) error {
	pending := make([]*staged, 0, len(files))
	discard := func() {
		for _, f := range pending {
			f.discard()
		}
	}
	for _, of := range files {
		f, err := stageFile(resolve(workDir, of.rel), of.render)
		if err != nil {
			discard()
			return err
		}
		pending = append(pending, f)
	}

	for i, f := range pending {
		if err := f.commit(); err != nil {
			for _, rest := range pending[i+1:] {
				rest.discard()
			}
			return err
		}
		of := files[i]
		res.Written = append(res.Written, of.rel)
		res.Metrics.AddOutput(of.rel)
		observability.RecordOutput(span, f.path, f.size)
		fmt.Fprintf(p.stdout, "%s written to %s\n", of.label, of.rel)
	}
	return nil
}

// removeStale deletes an assets file left by an earlier optimal run so the
// directory never shows a chart for a different outcome.
func (p *Pipeline) removeStale(path string) error {
	err := os.Remove(path)
	if err == nil {
		p.logger.Debug("removed stale asset", "path", path)
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove stale asset: %w", err)
}

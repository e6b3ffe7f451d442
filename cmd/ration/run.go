package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/efebarandurmaz/ration/internal/config"
	"github.com/efebarandurmaz/ration/internal/diet"
	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/observability"
	"github.com/efebarandurmaz/ration/internal/pipeline"
	"github.com/efebarandurmaz/ration/internal/solver"
	"github.com/efebarandurmaz/ration/internal/solver/highs"
	"github.com/efebarandurmaz/ration/internal/solver/simplex"
)

// loadConfig reads <workDir>/.env into the environment, then the manifest.
func loadConfig(workDir, configPath string) (*config.Config, error) {
	if err := godotenv.Load(filepath.Join(workDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(workDir, config.DefaultFile)
	}
	return config.Load(configPath)
}

func newSolverFactory() *solver.Factory {
	f := solver.NewFactory()
	f.Register(simplex.Name, simplex.Constructor)
	f.Register(highs.Name, highs.Constructor)
	return f
}

func newExtensions(cfg *config.Config) *model.Extensions {
	e := model.NewExtensions()
	e.Register(model.OptionLimitDairy, model.DairyLimit(cfg.Options.DairyLimit))
	return e
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runPipeline(ctx context.Context, workDir string, cfg *config.Config, jsonReport bool, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Log)

	tp, err := observability.InitTracing(ctx, tracingConfig(cfg))
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := tp.Shutdown(shutdownCtx); serr != nil {
				logger.Warn("tracing shutdown", "error", serr)
			}
		}()
	}

	p := pipeline.New(newSolverFactory(), newExtensions(cfg), logger, stdout, stderr)
	res, runErr := p.Run(ctx, pipeline.FromConfig(uuid.NewString(), workDir, cfg))
	if errors.Is(runErr, solver.ErrSolverUnavailable) {
		return runErr
	}

	if res != nil && res.Metrics != nil {
		if jsonReport {
			data, jerr := res.Metrics.JSON()
			if jerr != nil {
				return jerr
			}
			fmt.Fprintln(stdout, string(data))
		} else {
			res.Metrics.PrintSummary(stderr)
		}

		if cfg.Metrics.Textfile != "" {
			path := cfg.Metrics.Textfile
			if !filepath.IsAbs(path) {
				path = filepath.Join(workDir, path)
			}
			if merr := res.Metrics.WriteTextfile(path); merr != nil {
				logger.Warn("metrics textfile not written", "path", path, "error", merr)
			}
		}
	}
	return runErr
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	}
}

func listSolvers(w io.Writer, cfg *config.Config) {
	f := newSolverFactory()
	fmt.Fprintln(w, "Solver backends:")
	fmt.Fprintln(w)
	for _, name := range f.Names() {
		status := "available"
		if !f.Available(solver.Config{Name: name, BinaryPath: cfg.Solver.HighsPath}) {
			status = "not available"
		}
		marker := " "
		if name == cfg.Options.Solver {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %s\n", marker, name, status)
	}
}

func validateData(w io.Writer, workDir string, cfg *config.Config) error {
	path := cfg.Paths.Input
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	inst, err := diet.Load(path)
	if err != nil {
		return err
	}
	dairy := 0
	for _, f := range inst.Foods() {
		if f.HasTag(diet.DairyTag) {
			dairy++
		}
	}
	fmt.Fprintf(w, "%s: %d foods (%d dairy), %d nutrients\n", cfg.Paths.Input, inst.NumFoods(), dairy, inst.NumNutrients())
	return nil
}

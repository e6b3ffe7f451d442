// Package highs drives the HiGHS command-line solver. The model is written in
// CPLEX LP format to a scratch directory, the executable is run against it and
// the raw solution file it writes is parsed back into a result.
package highs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/solver"
)

// Name is the registry name of this backend.
const Name = "highs"

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "highs"

// grace is added on top of the solver's own time limit before the process is killed.
const grace = 30 * time.Second

// Solver runs the HiGHS executable.
type Solver struct {
	binary string
}

// New returns a backend using binary, or DefaultBinary when empty.
func New(binary string) *Solver {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Solver{binary: binary}
}

// Constructor adapts New to the solver factory.
func Constructor(cfg solver.Config) (solver.Solver, error) {
	return New(cfg.BinaryPath), nil
}

func (s *Solver) Name() string { return Name }

// Available reports whether the executable can be located.
func (s *Solver) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// Solve writes the model, runs HiGHS and reads its solution file. TimeLimit
// is passed to HiGHS as --time_limit and also bounds the process lifetime.
func (s *Solver) Solve(ctx context.Context, m *model.Model, opts solver.Options) (*solver.Result, error) {
	dir, err := os.MkdirTemp("", "ration-highs-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.lp")
	solutionPath := filepath.Join(dir, "model.sol")
	if err := writeModelFile(modelPath, m); err != nil {
		return nil, err
	}

	args := []string{"--model_file", modelPath, "--solution_file", solutionPath}
	if opts.TimeLimit > 0 {
		args = append(args, "--time_limit", strconv.FormatFloat(opts.TimeLimit.Seconds(), 'f', -1, 64))
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit+grace)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stdout = opts.TraceWriter()
	cmd.Stderr = &stderr

	err = cmd.Run()
	opts.TraceWriter().Write(stderr.Bytes())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &solver.Result{Termination: solver.Other, Status: "time limit reached"}, nil
		}
		return nil, fmt.Errorf("%s %v failed: %w\n%s", s.binary, args, err, stderr.Bytes())
	}

	f, err := os.Open(solutionPath)
	if err != nil {
		return nil, fmt.Errorf("open solution file: %w", err)
	}
	defer f.Close()

	sol, err := ParseSolution(f)
	if err != nil {
		return nil, err
	}
	return sol.Result(m)
}

func writeModelFile(path string, m *model.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := WriteLP(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write model file: %w", err)
	}
	return f.Close()
}

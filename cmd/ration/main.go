package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/ration/internal/config"
	"github.com/efebarandurmaz/ration/internal/solver"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// runFlags are the per-run overrides accepted on the command line.
type runFlags struct {
	solver     string
	limitDairy bool
	dairyLimit float64
	trace      bool
	timeLimit  time.Duration
	input      string
	jsonReport bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		workDir    string
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:           "ration",
		Short:         "Minimum-cost diet optimization",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", ".", "Working directory holding app.yaml, inputs and outputs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Manifest path (default <workdir>/app.yaml)")

	var rf runFlags
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Solve the diet model and write the solution, statistics and assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(workDir, configPath)
			if err != nil {
				return printErr(stderr, err)
			}
			applyFlags(cmd, cfg, rf)
			err = runPipeline(cmd.Context(), workDir, cfg, rf.jsonReport, stdout, stderr)
			if errors.Is(err, solver.ErrSolverUnavailable) {
				// The operator message is already on stdout.
				return nil
			}
			return printErr(stderr, err)
		},
	}
	runCmd.Flags().StringVar(&rf.solver, "solver", "", "Solver backend (simplex, highs)")
	runCmd.Flags().BoolVar(&rf.limitDairy, "limit-dairy", false, "Cap total dairy servings")
	runCmd.Flags().Float64Var(&rf.dairyLimit, "dairy-limit", 0, "Dairy serving cap used with --limit-dairy")
	runCmd.Flags().BoolVar(&rf.trace, "trace", false, "Stream solver output to stderr")
	runCmd.Flags().DurationVar(&rf.timeLimit, "time-limit", 0, "Solver time limit (0 = none)")
	runCmd.Flags().StringVar(&rf.input, "input", "", "Data file (YAML or JSON)")
	runCmd.Flags().BoolVar(&rf.jsonReport, "json", false, "Output run metrics as JSON")

	solversCmd := &cobra.Command{
		Use:   "solvers",
		Short: "List solver backends and whether they can run here",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(workDir, configPath)
			if err != nil {
				return printErr(stderr, err)
			}
			listSolvers(stdout, cfg)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the data file without solving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(workDir, configPath)
			if err != nil {
				return printErr(stderr, err)
			}
			if cmd.Flags().Changed("input") {
				cfg.Paths.Input = rf.input
			}
			return printErr(stderr, validateData(stdout, workDir, cfg))
		},
	}
	validateCmd.Flags().StringVar(&rf.input, "input", "", "Data file (YAML or JSON)")

	rootCmd.AddCommand(runCmd, solversCmd, validateCmd)
	return rootCmd
}

// applyFlags overrides manifest values with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, rf runFlags) {
	flags := cmd.Flags()
	if flags.Changed("solver") {
		cfg.Options.Solver = rf.solver
	}
	if flags.Changed("limit-dairy") {
		cfg.Options.LimitDairy = rf.limitDairy
	}
	if flags.Changed("dairy-limit") {
		cfg.Options.DairyLimit = rf.dairyLimit
	}
	if flags.Changed("trace") {
		cfg.Options.Trace = rf.trace
	}
	if flags.Changed("time-limit") {
		cfg.Options.TimeLimit = rf.timeLimit
	}
	if flags.Changed("input") {
		cfg.Paths.Input = rf.input
	}
}

func printErr(w io.Writer, err error) error {
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return err
}

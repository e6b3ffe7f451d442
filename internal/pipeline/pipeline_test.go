package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/ration/internal/config"
	"github.com/efebarandurmaz/ration/internal/diet"
	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/solver"
	"github.com/efebarandurmaz/ration/internal/solver/highs"
	"github.com/efebarandurmaz/ration/internal/solver/simplex"
)

const twoFoods = `foods:
  - name: A
    cost: 1.0
  - name: B
    cost: 2.0
    tags: [dairy]
nutrients:
  - name: N
    min: 10
    max: 20
content:
  A: {N: 2}
  B: {N: 5}
`

const infeasible = `foods:
  - name: A
    cost: 1.0
    max_servings: 1
nutrients:
  - name: N
    min: 10
content:
  A: {N: 2}
`

type harness struct {
	dir    string
	stdout *bytes.Buffer
	p      *Pipeline
}

func newHarness(t *testing.T, data string) *harness {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "inputs", "diet.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.WriteFile(input, []byte(data), 0o644))

	solvers := solver.NewFactory()
	solvers.Register(simplex.Name, simplex.Constructor)
	solvers.Register(highs.Name, highs.Constructor)

	exts := model.NewExtensions()
	exts.Register(model.OptionLimitDairy, model.DairyLimit(0))

	stdout := &bytes.Buffer{}
	return &harness{dir: dir, stdout: stdout, p: New(solvers, exts, nil, stdout, nil)}
}

func (h *harness) config(limitDairy bool) Config {
	cfg := config.Default()
	cfg.Options.LimitDairy = limitDairy
	return FromConfig("test-run", h.dir, cfg)
}

func (h *harness) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, rel))
	require.NoError(t, err)
	return string(data)
}

func (h *harness) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(h.dir, rel))
	return err == nil
}

func TestRun_Optimal(t *testing.T) {
	h := newHarness(t, twoFoods)

	res, err := h.p.Run(context.Background(), h.config(false))
	require.NoError(t, err)
	require.True(t, res.Solution.Optimal())

	assert.InDelta(t, 4, *res.Solution.Objective, 1e-9)
	assert.Equal(t, []string{"outputs/diet_solution.txt", "statistics.json", "assets.json"}, res.Written)
	assert.Equal(t,
		"Results written to outputs/diet_solution.txt\nStatistics written to statistics.json\nAssets written to assets.json\n",
		h.stdout.String())

	text := h.read(t, "outputs/diet_solution.txt")
	assert.Contains(t, text, "Minimum cost: $4.00")
	assert.Contains(t, text, "B                 :  2 servings @ $2.00 = $4.00")
	assert.NotContains(t, text, "A                 :", "unselected foods are not itemized")

	stats := h.read(t, "statistics.json")
	assert.Contains(t, stats, `"nconstraints":1`)
	assert.Contains(t, stats, `"nvars":2`)
	assert.Contains(t, stats, `"food_servings":{"A":0,"B":`)

	assert.Contains(t, h.read(t, "assets.json"), `"visual_schema": "plotly"`)

	for _, s := range res.Metrics.Stages {
		assert.Zero(t, s.Errors, "stage %s", s.Name)
	}
	assert.Len(t, res.Metrics.Stages, 6)
}

func TestRun_DairyCap(t *testing.T) {
	free := newHarness(t, twoFoods)
	base, err := free.p.Run(context.Background(), free.config(false))
	require.NoError(t, err)

	h := newHarness(t, twoFoods)
	res, err := h.p.Run(context.Background(), h.config(true))
	require.NoError(t, err)
	require.True(t, res.Solution.Optimal())

	// The cap forces B out: A=5 at cost 5, never cheaper than the uncapped run.
	assert.InDelta(t, 5, *res.Solution.Objective, 1e-9)
	assert.GreaterOrEqual(t, *res.Solution.Objective, *base.Solution.Objective)
	assert.Equal(t, []string{model.OptionLimitDairy}, res.Model.Applied)
	assert.Contains(t, h.read(t, "statistics.json"), `"nconstraints":2`)
}

func TestRun_Infeasible(t *testing.T) {
	h := newHarness(t, infeasible)

	// An earlier optimal run left a chart behind.
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "assets.json"), []byte("{}"), 0o644))

	res, err := h.p.Run(context.Background(), h.config(false))
	require.NoError(t, err)
	assert.Equal(t, solver.Infeasible, res.Solution.Termination)

	assert.Equal(t,
		"Solver terminated with condition: infeasible\nNo optimal solution found.\n",
		h.read(t, "outputs/diet_solution.txt"))
	assert.Contains(t, h.read(t, "statistics.json"), `"value":null`)
	assert.False(t, h.exists("assets.json"), "no asset for a non-optimal run")
	assert.NotContains(t, h.stdout.String(), "Assets written")
}

func TestRun_SolverUnavailable(t *testing.T) {
	h := newHarness(t, twoFoods)
	cfg := h.config(false)
	cfg.Solver = solver.Config{Name: highs.Name, BinaryPath: filepath.Join(h.dir, "no-such-highs")}

	_, err := h.p.Run(context.Background(), cfg)
	require.True(t, errors.Is(err, solver.ErrSolverUnavailable), "got %v", err)
	assert.Equal(t,
		"Error: highs solver is not available!\nPlease install the solver or try a different solver.\n",
		h.stdout.String())

	for _, rel := range []string{"outputs/diet_solution.txt", "statistics.json", "assets.json"} {
		assert.False(t, h.exists(rel), "%s must not be written", rel)
	}
}

func TestRun_UnknownSolver(t *testing.T) {
	h := newHarness(t, twoFoods)
	cfg := h.config(false)
	cfg.Solver.Name = "cplex"

	_, err := h.p.Run(context.Background(), cfg)
	assert.True(t, errors.Is(err, solver.ErrSolverUnavailable), "got %v", err)
	assert.Contains(t, h.stdout.String(), "Error: cplex solver is not available!")
	assert.False(t, h.exists("statistics.json"))
}

func TestRun_MalformedInput(t *testing.T) {
	h := newHarness(t, "foods: []\nnutrients: []\n")

	_, err := h.p.Run(context.Background(), h.config(false))
	assert.True(t, errors.Is(err, diet.ErrMalformedInput), "got %v", err)
	assert.False(t, h.exists("statistics.json"))
}

func TestRun_ExtensionPrecondition(t *testing.T) {
	h := newHarness(t, infeasible) // no dairy-tagged foods

	res, err := h.p.Run(context.Background(), h.config(true))
	assert.True(t, errors.Is(err, model.ErrExtensionPrecondition), "got %v", err)
	assert.Equal(t, 1, res.Model.NumConstraints(), "failed extension adds nothing")
	assert.False(t, h.exists("statistics.json"))
}

func TestRun_StatisticsByteIdentical(t *testing.T) {
	h := newHarness(t, twoFoods)
	_, err := h.p.Run(context.Background(), h.config(true))
	require.NoError(t, err)
	first := h.read(t, "statistics.json")

	_, err = h.p.Run(context.Background(), h.config(true))
	require.NoError(t, err)
	assert.Equal(t, first, h.read(t, "statistics.json"))
}

func TestRun_NoTempFilesLeft(t *testing.T) {
	h := newHarness(t, twoFoods)
	_, err := h.p.Run(context.Background(), h.config(false))
	require.NoError(t, err)

	err = filepath.Walk(h.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, ".tmp") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
	require.NoError(t, err)
}

// The bundled fast-food data set must solve, with and without the dairy cap.
func TestRun_BundledData(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "inputs", "diet.yaml"))
	require.NoError(t, err)

	run := func(limitDairy bool) *Result {
		h := newHarness(t, string(data))
		h.p.extensions = model.NewExtensions()
		h.p.extensions.Register(model.OptionLimitDairy, model.DairyLimit(config.Default().Options.DairyLimit))
		res, err := h.p.Run(context.Background(), h.config(limitDairy))
		require.NoError(t, err)
		require.True(t, res.Solution.Optimal(), "termination %s (%s)", res.Solve.Termination, res.Solve.Status)
		require.True(t, res.Model.Feasible(res.Solve.Values, 1e-6))
		return res
	}

	free, capped := run(false), run(true)
	for _, res := range []*Result{free, capped} {
		sol := res.Solution
		assert.InDelta(t, *sol.Objective, sol.TotalCost, 1e-6*math.Max(1, *sol.Objective))
		assert.Len(t, sol.Servings, 9)
	}
	assert.Equal(t, free.Model.NumConstraints()+1, capped.Model.NumConstraints())
	assert.GreaterOrEqual(t, *capped.Solution.Objective, *free.Solution.Objective-1e-9)

	var dairy float64
	for _, it := range capped.Solution.Items {
		if it.Food == "Cheeseburger" || it.Food == "Lowfat Milk" {
			dairy += it.Servings
		}
	}
	assert.LessOrEqual(t, dairy, 6+1e-6)
}

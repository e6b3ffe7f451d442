package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/ration/internal/config"
)

const sampleData = `foods:
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

func workspace(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inputs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inputs", "diet.yaml"), []byte(sampleData), 0o644))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(manifest), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := workspace(t, "")

	stdout, stderr, err := execute(t, "run", "--workdir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Results written to outputs/diet_solution.txt")
	assert.Contains(t, stdout, "Statistics written to statistics.json")
	assert.Contains(t, stdout, "Assets written to assets.json")
	assert.Contains(t, stderr, "RATION PIPELINE REPORT")

	stats, err := os.ReadFile(filepath.Join(dir, "statistics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(stats), `"nconstraints":1`)
}

func TestRunCommand_FlagsOverrideManifest(t *testing.T) {
	dir := workspace(t, "options:\n  limit_dairy: false\n  dairy_limit: 6\n")

	_, _, err := execute(t, "run", "--workdir", dir, "--limit-dairy", "--dairy-limit", "0")
	require.NoError(t, err)

	stats, err := os.ReadFile(filepath.Join(dir, "statistics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(stats), `"nconstraints":2`)
	assert.Contains(t, string(stats), `"B":0`)
}

func TestRunCommand_JSONMetrics(t *testing.T) {
	dir := workspace(t, "")

	stdout, _, err := execute(t, "run", "--workdir", dir, "--json")
	require.NoError(t, err)
	lines := strings.SplitN(stdout, "\n", 4)
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "Assets written to"))
	assert.True(t, strings.HasPrefix(lines[3], "{"), "metrics JSON should follow the confirmation lines: %q", stdout)
	assert.Contains(t, lines[3], `"run_id"`)
}

func TestRunCommand_SolverUnavailableExitsCleanly(t *testing.T) {
	dir := workspace(t, "solver:\n  highs_path: "+filepath.Join(t.TempDir(), "missing-highs")+"\n")

	stdout, _, err := execute(t, "run", "--workdir", dir, "--solver", "highs")
	require.NoError(t, err)
	assert.Equal(t, "Error: highs solver is not available!\nPlease install the solver or try a different solver.\n", stdout)
	_, statErr := os.Stat(filepath.Join(dir, "statistics.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCommand_MalformedInputFails(t *testing.T) {
	dir := workspace(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inputs", "diet.yaml"), []byte("foods: [\n"), 0o644))

	_, stderr, err := execute(t, "run", "--workdir", dir)
	require.Error(t, err)
	assert.Contains(t, stderr, "malformed")
}

func TestRunCommand_MetricsTextfile(t *testing.T) {
	dir := workspace(t, "metrics:\n  textfile: metrics/ration.prom\n")

	_, _, err := execute(t, "run", "--workdir", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "metrics", "ration.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ration_run_duration_seconds")
}

func TestSolversCommand(t *testing.T) {
	dir := workspace(t, "")

	stdout, _, err := execute(t, "solvers", "--workdir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "* simplex    available")
	assert.Contains(t, stdout, "highs")
}

func TestValidateCommand(t *testing.T) {
	dir := workspace(t, "")

	stdout, _, err := execute(t, "validate", "--workdir", dir)
	require.NoError(t, err)
	assert.Equal(t, "inputs/diet.yaml: 2 foods (1 dairy), 1 nutrients\n", stdout)
}

func TestDotEnvOverridesSolver(t *testing.T) {
	dir := workspace(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RATION_OPTIONS_SOLVER=nosuch\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RATION_OPTIONS_SOLVER") })

	stdout, _, err := execute(t, "run", "--workdir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Error: nosuch solver is not available!")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "ration version "+version+"\n", stdout)

	assert.Equal(t, version, tracingConfig(workspaceConfig(t)).ServiceVersion)
}

func workspaceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := loadConfig(workspace(t, ""), "")
	require.NoError(t, err)
	return cfg
}

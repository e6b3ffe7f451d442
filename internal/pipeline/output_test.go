package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/ration/internal/metrics"
)

func text(s string) func(*bytes.Buffer) error {
	return func(b *bytes.Buffer) error {
		b.WriteString(s)
		return nil
	}
}

func outputHarness() (*Pipeline, *Result, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	return New(nil, nil, nil, stdout, nil), &Result{Metrics: metrics.New("test-run")}, stdout
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			names = append(names, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestOutput_WritesAllInOrder(t *testing.T) {
	dir := t.TempDir()
	p, res, stdout := outputHarness()
	span := trace.SpanFromContext(context.Background())

	err := p.output(span, res, dir,
		outputFile{rel: "outputs/a.txt", label: "Results", render: text("a")},
		outputFile{rel: "b.json", label: "Statistics", render: text("{}")},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"outputs/a.txt", "b.json"}, res.Written)
	assert.Equal(t, "Results written to outputs/a.txt\nStatistics written to b.json\n", stdout.String())
	assert.ElementsMatch(t, []string{"b.json", filepath.Join("outputs", "a.txt")}, listDir(t, dir))
}

func TestOutput_RenderFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	p, res, stdout := outputHarness()
	span := trace.SpanFromContext(context.Background())
	boom := errors.New("render failed")

	err := p.output(span, res, dir,
		outputFile{rel: "a.txt", label: "Results", render: text("a")},
		outputFile{rel: "b.json", label: "Statistics", render: func(*bytes.Buffer) error { return boom }},
	)
	require.ErrorIs(t, err, boom)

	assert.Empty(t, listDir(t, dir), "no file and no temp file may survive")
	assert.Empty(t, res.Written)
	assert.Empty(t, stdout.String())
}

func TestOutput_StageFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the second output's directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), nil, 0o644))
	p, res, stdout := outputHarness()
	span := trace.SpanFromContext(context.Background())

	err := p.output(span, res, dir,
		outputFile{rel: "a.txt", label: "Results", render: text("a")},
		outputFile{rel: "blocked/b.json", label: "Statistics", render: text("{}")},
	)
	require.Error(t, err)

	assert.Equal(t, []string{"blocked"}, listDir(t, dir))
	assert.Empty(t, stdout.String())
}

func TestOutput_ReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644))
	p, res, _ := outputHarness()

	require.NoError(t, p.output(trace.SpanFromContext(context.Background()), res, dir,
		outputFile{rel: "a.txt", label: "Results", render: text("new")}))

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	info, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

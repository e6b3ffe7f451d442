package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// staged is a rendered output sitting in a temp file beside its target.
type staged struct {
	path string
	tmp  string
	size int
}

// stageFile renders into memory and writes the bytes to a temp file in the
// target's directory. Nothing is visible at path until commit.
func stageFile(path string, render func(*bytes.Buffer) error) (*staged, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	f := &staged{path: path, tmp: tmp.Name(), size: buf.Len()}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		f.discard()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		f.discard()
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(f.tmp, 0o644); err != nil {
		f.discard()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return f, nil
}

// commit renames the temp file into place.
func (f *staged) commit() error {
	if err := os.Rename(f.tmp, f.path); err != nil {
		f.discard()
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	return nil
}

func (f *staged) discard() {
	os.Remove(f.tmp)
}

// resolve joins rel onto dir unless rel is already absolute.
func resolve(dir, rel string) string {
	if filepath.IsAbs(rel) || dir == "" {
		return rel
	}
	return filepath.Join(dir, rel)
}

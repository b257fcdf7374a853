package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrConfigExists is returned by CreateSample when the target is already present.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample streams the annotated sample configuration to w.
func WriteSample(w io.Writer) error {
	_, err := io.WriteString(w, sampleConfig)
	return err
}

// CreateSample writes the sample configuration to path, creating parent
// directories. An existing file is kept unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w at %s", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := WriteSample(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

package migration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pgschema/relmig/internal/logger"
)

const fileExtension = ".yaml"

// FileName returns the file a migration is stored in.
func FileName(id string) string {
	return id + fileExtension
}

// LoadDir reads every migration file in dir. A missing directory is an
// empty assembly.
func LoadDir(ctx context.Context, dir string) (*Assembly, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewAssembly(nil)
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExtension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	migrations := make([]*Migration, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := ReadFile(path)
			if err != nil {
				return err
			}
			migrations[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Get().Debug("Loaded migrations", "dir", dir, "count", len(migrations))
	return NewAssembly(migrations)
}

// ReadFile parses one migration file. The id must match the file name.
func ReadFile(path string) (*Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file: %w", err)
	}
	var m Migration
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if want := strings.TrimSuffix(filepath.Base(path), fileExtension); m.ID != want {
		return nil, fmt.Errorf("%s: migration id %q does not match file name", path, m.ID)
	}
	return &m, nil
}

// Marshal renders a migration as a YAML document.
func Marshal(m *Migration) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode migration %s: %w", m.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile stores m in dir, creating the directory when needed, and
// returns the path written.
func WriteFile(dir string, m *Migration) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}
	path := filepath.Join(dir, FileName(m.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}
	return path, nil
}

// RemoveFile deletes the file of the migration with the given id.
func RemoveFile(dir, id string) error {
	if err := os.Remove(filepath.Join(dir, FileName(id))); err != nil {
		return fmt.Errorf("failed to remove migration %s: %w", id, err)
	}
	return nil
}

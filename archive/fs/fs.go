// Package fs stores daily archives in a local directory tree. Files are
// written atomically: a reader sees either the previous content or the
// complete new file, never a partial archive.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/xraph/fiscal/archive"
)

var _ archive.Sink = (*Sink)(nil)

// Sink writes archives below Root.
type Sink struct {
	root string
	perm os.FileMode
}

// New creates the root directory if needed.
func New(root string) (*Sink, error) {
	if root == "" {
		return nil, errors.New("fs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("fs: create root %s: %w", root, err)
	}
	return &Sink{root: root, perm: 0o640}, nil
}

// Root returns the archive directory.
func (s *Sink) Root() string { return s.root }

func (s *Sink) path(name string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("fs: object name %q escapes the archive root", name)
	}
	return p, nil
}

// Put implements archive.Sink.
func (s *Sink) Put(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("fs: create directory for %s: %w", name, err)
	}
	if err := renameio.WriteFile(p, data, s.perm); err != nil {
		return fmt.Errorf("fs: write %s: %w", name, err)
	}
	return nil
}

// Get implements archive.Sink.
func (s *Sink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", archive.ErrNotFound, name)
	}
	return data, err
}

// List returns the object names below prefix in lexical order.
func (s *Sink) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

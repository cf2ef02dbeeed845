// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.astrophena.name/bdaybot/internal/atomicio"
)

// Files is a [Store] that keeps every key in its own file named <key>.json in
// a directory. Files are replaced atomically, and previous versions are kept as
// backups.
type Files struct {
	dir string
}

// FilesBackups is the number of previous versions [Files] keeps per key.
const FilesBackups = 3

// NewFiles creates a [Files] store in dir, creating the directory if needed.
func NewFiles(dir string) (*Files, error) {
	if dir == "" {
		return nil, errors.New("store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Files{dir: dir}, nil
}

// Dir returns the directory of the store.
func (s *Files) Dir() string { return s.dir }

func (s *Files) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("store: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get retrieves a value for a given key.
func (s *Files) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Set stores a value for a given key.
func (s *Files) Set(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	return atomicio.WriteFileBackup(path, value, 0o600, FilesBackups)
}

// Close is a no-op for Files.
func (s *Files) Close() error { return nil }

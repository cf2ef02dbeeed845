// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package atomicio writes files atomically, optionally keeping timestamped
// backups of the previous contents.
package atomicio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const backupTimeFormat = "20060102150405.000000000"

// WriteFile replaces the contents of name with data. Readers observe either the
// old or the new contents, never a partial write.
func WriteFile(name string, data []byte, perm fs.FileMode) error {
	return WriteFileBackup(name, data, perm, 0)
}

// WriteFileBackup is like WriteFile, but moves the previous contents of name to
// a timestamped name.<time>.bak file first, keeping at most keep backups.
// A keep of zero disables backups.
func WriteFileBackup(name string, data []byte, perm fs.FileMode, keep int) (err error) {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if keep > 0 {
		if err := backup(name); err != nil {
			return fmt.Errorf("backing up %s: %w", name, err)
		}
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return err
	}
	if keep > 0 {
		return Prune(name, keep)
	}
	return nil
}

// Backups returns backup files of name, oldest first.
func Backups(name string) ([]string, error) {
	matches, err := filepath.Glob(name + ".*.bak")
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// Prune removes all but the newest keep backups of name.
func Prune(name string, keep int) error {
	backups, err := Backups(name)
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		return nil
	}
	var errs []error
	for _, b := range backups[:len(backups)-keep] {
		if err := os.Remove(b); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func backup(name string) error {
	old, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	fi, err := os.Stat(name)
	if err != nil {
		return err
	}
	return os.WriteFile(name+"."+time.Now().UTC().Format(backupTimeFormat)+".bak", old, fi.Mode().Perm())
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"

	"go.astrophena.name/bdaybot/internal/syncx"
)

// Mem is an in-memory implementation of the [Store] interface.
type Mem struct {
	data *syncx.Protected[map[string][]byte]
}

// NewMem creates an empty [Mem].
func NewMem() *Mem {
	return &Mem{data: syncx.Protect(make(map[string][]byte))}
}

// Get retrieves a value for a given key.
func (s *Mem) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	s.data.RAccess(func(m map[string][]byte) {
		if v, ok := m[key]; ok {
			// Return a copy to prevent the caller from mutating the store.
			val = append([]byte(nil), v...)
		}
	})
	return val, nil
}

// Set stores a value for a given key.
func (s *Mem) Set(_ context.Context, key string, value []byte) error {
	// Store a copy to prevent the caller from mutating the store.
	valueCopy := append([]byte(nil), value...)
	s.data.Access(func(m map[string][]byte) { m[key] = valueCopy })
	return nil
}

// Close is a no-op for Mem.
func (s *Mem) Close() error { return nil }

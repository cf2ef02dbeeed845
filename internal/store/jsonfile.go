// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"crawshaw.dev/jsonfile"
)

// JSONFile is a [Store] that keeps all keys in a single JSON file.
//
// Values must be valid JSON; they are embedded into the file as is, so the
// file stays readable and editable by hand.
type JSONFile struct {
	f *jsonfile.JSONFile[jsonStore]
}

type jsonStore struct {
	Data map[string]entry `json:"data"`
}

type entry struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewJSONFile creates a new [JSONFile] backed by the file at path.
func NewJSONFile(path string) (*JSONFile, error) {
	f, err := jsonfile.Load[jsonStore](path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = jsonfile.New[jsonStore](path)
		if err == nil {
			if err := f.Write(func(js *jsonStore) error {
				js.Data = make(map[string]entry)
				return nil
			}); err != nil {
				return nil, err
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &JSONFile{f: f}, nil
}

// Get retrieves a value for a given key. The value is returned in compact
// form, regardless of how the file is indented.
func (s *JSONFile) Get(_ context.Context, key string) ([]byte, error) {
	var (
		val   []byte
		found bool
	)
	s.f.Read(func(js *jsonStore) {
		var e entry
		if e, found = js.Data[key]; found {
			val = append([]byte(nil), e.Value...)
		}
	})
	if !found {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Set stores a value for a given key.
func (s *JSONFile) Set(_ context.Context, key string, val []byte) error {
	if !json.Valid(val) {
		return fmt.Errorf("store: value for %q is not valid JSON", key)
	}
	return s.f.Write(func(js *jsonStore) error {
		if js.Data == nil {
			js.Data = make(map[string]entry)
		}
		js.Data[key] = entry{
			Value:     append(json.RawMessage(nil), val...),
			UpdatedAt: time.Now(),
		}
		return nil
	})
}

// Close closes the file store.
func (s *JSONFile) Close() error { return nil }

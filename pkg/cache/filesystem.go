// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FilesystemStore keeps one JSON file per key under a root directory.
// A key "a/b" is stored at <root>/a/b.json.
type FilesystemStore struct {
	basePath string
}

var _ Store = &FilesystemStore{}

func NewFilesystemStore(basePath string) *FilesystemStore {
	return &FilesystemStore{basePath: basePath}
}

// Path returns the file that backs key.
func (s *FilesystemStore) Path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key)+fileExtension)
}

func (s *FilesystemStore) Save(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}

	target := s.Path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Write to a sibling temp file and rename so readers never observe a
	// partially written entry.
	tmp := filepath.Join(dir, "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

func (s *FilesystemStore) Load(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", key, err)
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

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

// Package cache persists the service reference directory and per-service
// read-only operation lists so they survive process restarts and can be used
// when the service reference endpoint is unreachable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DirectoryKey addresses the serialized service reference directory.
	DirectoryKey = "service_reference_urls"

	serviceOperationsDirName = "service_operations"
	fileExtension            = ".json"
)

// ErrNotFound is returned by Load when the key has never been saved.
var ErrNotFound = errors.New("cache entry not found")

// Store is a key-value store for JSON-serializable values.
//
// Save writes value under key, replacing any previous value. Load decodes the
// value stored under key into value; it returns an error wrapping ErrNotFound
// if nothing is stored there. Callers treat every Load error as "absent".
type Store interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, value any) error
}

// ServiceOperationsKey addresses the read-only operation list of service.
// The name is not cleaned, so a service name that is not a single path
// segment yields a key every backend rejects.
func ServiceOperationsKey(service string) string {
	return serviceOperationsDirName + "/" + service
}

// Options selects and configures a Store backend.
type Options struct {
	// Backend is "filesystem" (default) or "memory".
	Backend string
	// Dir is the root directory of the filesystem backend.
	Dir string
	// Mirror, when set, receives every write as well and is consulted on a
	// local miss.
	Mirror Store
}

// NewStore builds the Store described by opts.
func NewStore(opts Options) (Store, error) {
	var primary Store
	switch opts.Backend {
	case "", "filesystem":
		if opts.Dir == "" {
			return nil, fmt.Errorf("filesystem cache requires a directory")
		}
		primary = NewFilesystemStore(opts.Dir)
	case "memory":
		primary = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", opts.Backend)
	}

	if opts.Mirror != nil {
		return NewMultiStore(primary, opts.Mirror), nil
	}
	return primary, nil
}

// validateKey rejects keys that could escape the cache root.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty cache key")
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	segments := strings.Split(key, "/")
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("invalid cache key %q", key)
		}
	}
	if segments[0] == serviceOperationsDirName && len(segments) != 2 {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}

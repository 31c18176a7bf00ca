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
	"errors"
)

// MultiStore fans writes out to every backend and reads from the first
// backend that has the key, in order.
type MultiStore struct {
	stores []Store
}

var _ Store = &MultiStore{}

func NewMultiStore(stores ...Store) *MultiStore {
	var filtered []Store
	for _, s := range stores {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiStore{stores: filtered}
}

func (m *MultiStore) Save(ctx context.Context, key string, value any) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Save(ctx, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiStore) Load(ctx context.Context, key string, value any) error {
	var errs []error
	for _, s := range m.stores {
		err := s.Load(ctx, key, value)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNotFound
	}
	return errors.Join(errs...)
}

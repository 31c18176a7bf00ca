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

// Package operations lazily resolves the read-only operations of a service
// from its service reference document, with a local cache as fallback.
package operations

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/fetch"
	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"k8s.io/klog/v2"
)

var (
	// ErrUnknownService is returned by Resolve for services missing from
	// the directory.
	ErrUnknownService = errors.New("service not in service reference directory")

	// ErrUnavailable matches any *UnavailableError.
	ErrUnavailable = errors.New("service operations unavailable")
)

// UnavailableError reports that a known service could be neither fetched
// nor loaded from the cache.
type UnavailableError struct {
	Service  string
	FetchErr error
	CacheErr error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("error retrieving the service reference document for %s and no usable local cache: %v (cache: %v)", e.Service, e.FetchErr, e.CacheErr)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{e.FetchErr, e.CacheErr}
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// State is the resolution state of a single service.
type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// URLLookup finds the service reference URL of a service.
type URLLookup interface {
	URL(service string) (string, bool)
}

type entry struct {
	state      State
	done       chan struct{}
	operations []string
	lookup     map[string]struct{}
	err        error
}

// Resolver resolves each service at most once per instance. Concurrent
// callers for a service that is being resolved wait for that resolution and
// share its outcome. A failed resolution is retried by the next caller.
type Resolver struct {
	urls    URLLookup
	fetcher fetch.Fetcher
	store   cache.Store

	mu      sync.Mutex
	entries map[string]*entry
}

func NewResolver(urls URLLookup, fetcher fetch.Fetcher, store cache.Store) *Resolver {
	return &Resolver{
		urls:    urls,
		fetcher: fetcher,
		store:   store,
		entries: make(map[string]*entry),
	}
}

// State returns the current resolution state of service.
func (r *Resolver) State(service string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[service]
	if !ok {
		return StateUnresolved
	}
	return e.state
}

// Known reports whether service appears in the directory.
func (r *Resolver) Known(service string) bool {
	_, ok := r.urls.URL(service)
	return ok
}

// Has reports whether operation is read-only according to the service
// reference of service. Services missing from the directory are never
// read-only; that is an answer, not an error.
func (r *Resolver) Has(ctx context.Context, service, operation string) (bool, error) {
	e, err := r.resolve(ctx, service)
	if errors.Is(err, ErrUnknownService) {
		klog.V(2).Infof("service %q not in service reference directory, treating %s as not read-only", service, operation)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := e.lookup[operation]
	return ok, nil
}

// Resolve returns the read-only operations of service, resolving it first if
// needed. The returned slice must not be modified.
func (r *Resolver) Resolve(ctx context.Context, service string) ([]string, error) {
	e, err := r.resolve(ctx, service)
	if err != nil {
		return nil, err
	}
	return e.operations, nil
}

func (r *Resolver) resolve(ctx context.Context, service string) (*entry, error) {
	url, ok := r.urls.URL(service)
	if !ok {
		return nil, fmt.Errorf("%q: %w", service, ErrUnknownService)
	}

	r.mu.Lock()
	e, ok := r.entries[service]
	switch {
	case ok && e.state == StateResolved:
		r.mu.Unlock()
		return e, nil

	case ok && e.state == StateResolving:
		done := e.done
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if e.state == StateResolved {
			return e, nil
		}
		return nil, e.err
	}

	// Unresolved, or failed on an earlier attempt.
	e = &entry{state: StateResolving, done: make(chan struct{})}
	r.entries[service] = e
	r.mu.Unlock()

	operations, err := r.populate(ctx, service, url)

	r.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.err = err
	} else {
		e.state = StateResolved
		e.operations = operations
		e.lookup = make(map[string]struct{}, len(operations))
		for _, op := range operations {
			e.lookup[op] = struct{}{}
		}
	}
	close(e.done)
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Resolver) populate(ctx context.Context, service, url string) ([]string, error) {
	key := cache.ServiceOperationsKey(service)

	operations, fetchErr := r.fetch(ctx, url)
	if fetchErr == nil {
		if err := r.store.Save(ctx, key, operations); err != nil {
			klog.Warningf("Failed to save service operations cache for %s: %v", service, err)
		}
		klog.V(1).Infof("Service operations for %s loaded from remote (%d read-only)", service, len(operations))
		return operations, nil
	}

	klog.Warningf("Failed to retrieve service operations from remote for %s: %v", service, fetchErr)

	var cached []string
	if cacheErr := r.store.Load(ctx, key, &cached); cacheErr != nil {
		if errors.Is(cacheErr, cache.ErrNotFound) {
			klog.Errorf("No local cache available for service operations: %s", service)
		} else {
			klog.Errorf("Failed to load service operations cache for %s: %v", service, cacheErr)
		}
		return nil, &UnavailableError{Service: service, FetchErr: fetchErr, CacheErr: cacheErr}
	}

	journal.Record(ctx, journal.ActionCacheFallback, journal.FallbackRecord{
		Key:    key,
		Reason: fetchErr.Error(),
	})
	klog.Infof("Service operations for %s loaded from local cache", service)
	if cached == nil {
		cached = []string{}
	}
	return cached, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]string, error) {
	body, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseReadOnlyActions(body)
}

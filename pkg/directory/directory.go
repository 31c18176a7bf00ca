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

// Package directory resolves the mapping from service name to the URL of its
// service reference document.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/fetch"
	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"k8s.io/klog/v2"
)

// DefaultURL is the well-known service reference endpoint.
const DefaultURL = "https://servicereference.us-east-1.amazonaws.com/"

// ErrUnavailable matches any *UnavailableError.
var ErrUnavailable = errors.New("service reference directory unavailable")

// UnavailableError reports that neither the network nor the local cache
// could provide the directory.
type UnavailableError struct {
	FetchErr error
	CacheErr error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("error retrieving the service reference document and no local cache found: %v (cache: %v)", e.FetchErr, e.CacheErr)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{e.FetchErr, e.CacheErr}
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Entry is one record of the service reference directory.
type Entry struct {
	Service string `json:"service"`
	URL     string `json:"url"`
}

// Directory maps a service name to its service reference URL. It is
// immutable once built.
type Directory struct {
	urls map[string]string
}

// New builds a Directory from entries. Later entries win on duplicates.
func New(entries []Entry) *Directory {
	urls := make(map[string]string, len(entries))
	for _, e := range entries {
		urls[e.Service] = e.URL
	}
	return &Directory{urls: urls}
}

// URL returns the reference URL for service.
func (d *Directory) URL(service string) (string, bool) {
	url, ok := d.urls[service]
	return url, ok
}

// Services returns the known service names in sorted order.
func (d *Directory) Services() []string {
	services := make([]string, 0, len(d.urls))
	for s := range d.urls {
		services = append(services, s)
	}
	sort.Strings(services)
	return services
}

func (d *Directory) Len() int {
	return len(d.urls)
}

// Parse decodes a directory document.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding service reference directory: %w", err)
	}
	if err := validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func validate(entries []Entry) error {
	for i, e := range entries {
		if e.Service == "" || e.URL == "" {
			return fmt.Errorf("service reference directory entry %d is missing service or url", i)
		}
	}
	return nil
}

// Fetch retrieves the directory from url without consulting any cache. The
// raw response is returned alongside the parsed entries so callers can
// persist it unchanged.
func Fetch(ctx context.Context, fetcher fetch.Fetcher, url string) ([]Entry, json.RawMessage, error) {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	entries, err := Parse(body)
	if err != nil {
		return nil, nil, err
	}
	return entries, json.RawMessage(body), nil
}

// Load retrieves the directory from url, persisting it to store on success.
// If the network fetch fails, the copy previously persisted to store is used
// instead; if that is missing too, Load returns an *UnavailableError.
func Load(ctx context.Context, fetcher fetch.Fetcher, store cache.Store, url string) (*Directory, error) {
	entries, raw, fetchErr := Fetch(ctx, fetcher, url)
	if fetchErr == nil {
		if err := store.Save(ctx, cache.DirectoryKey, raw); err != nil {
			klog.Warningf("Failed to save service reference cache: %v", err)
		}
		klog.V(1).Infof("Service reference loaded from remote and cached locally (%d services)", len(entries))
		return New(entries), nil
	}

	klog.Warningf("Failed to retrieve service reference from remote: %v", fetchErr)

	var cached []Entry
	cacheErr := store.Load(ctx, cache.DirectoryKey, &cached)
	if cacheErr == nil {
		cacheErr = validate(cached)
	}
	if cacheErr != nil {
		if !errors.Is(cacheErr, cache.ErrNotFound) {
			klog.Warningf("Failed to load service reference cache: %v", cacheErr)
		}
		klog.Errorf("No local cache available for service reference")
		return nil, &UnavailableError{FetchErr: fetchErr, CacheErr: cacheErr}
	}

	journal.Record(ctx, journal.ActionCacheFallback, journal.FallbackRecord{
		Key:    cache.DirectoryKey,
		Reason: fetchErr.Error(),
	})
	klog.Infof("Service reference loaded from local cache")
	return New(cached), nil
}

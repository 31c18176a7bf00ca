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

// Package prewarm populates a cache with the service reference directory and
// the read-only operations of every service listed in it, so that classifiers
// started later never need the network.
package prewarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/directory"
	"github.com/ShubyM/aws-readonly-ops/pkg/fetch"
	"github.com/ShubyM/aws-readonly-ops/pkg/operations"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

const (
	DefaultConcurrency = 20
	DefaultTimeout     = 10 * time.Second
	DefaultCacheDir    = "/app/cache"
)

// Options configures a pre-warm run. Store is required.
type Options struct {
	Store cache.Store

	// Fetcher defaults to an HTTP fetcher built from Timeout and RateLimit.
	Fetcher fetch.Fetcher

	// DirectoryURL defaults to directory.DefaultURL.
	DirectoryURL string
	// Concurrency bounds the number of in-flight service fetches.
	Concurrency int
	// Timeout bounds each request of the default fetcher.
	Timeout time.Duration
	// RateLimit paces requests of the default fetcher; zero means unlimited.
	RateLimit rate.Limit
}

// Run fetches the directory and then every service document in it. It fails
// only if the directory cannot be fetched or saved; per-service failures are
// recorded in the returned Report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("prewarm: store is required")
	}
	if opts.DirectoryURL == "" {
		opts.DirectoryURL = directory.DefaultURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Fetcher == nil {
		fetcherOpts := []fetch.Option{fetch.WithTimeout(opts.Timeout)}
		if opts.RateLimit > 0 {
			fetcherOpts = append(fetcherOpts, fetch.WithRateLimit(opts.RateLimit, 1))
		}
		opts.Fetcher = fetch.NewHTTPFetcher(fetcherOpts...)
	}

	entries, raw, err := directory.Fetch(ctx, opts.Fetcher, opts.DirectoryURL)
	if err != nil {
		return nil, fmt.Errorf("fetching service reference directory: %w", err)
	}
	if err := opts.Store.Save(ctx, cache.DirectoryKey, raw); err != nil {
		return nil, fmt.Errorf("saving service reference directory: %w", err)
	}
	klog.Infof("Saved service reference directory (%d services)", len(entries))

	report := &Report{
		GeneratedAt:  time.Now().UTC(),
		DirectoryURL: opts.DirectoryURL,
		Services:     len(entries),
		Failures:     []Failure{},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, e := range entries {
		g.Go(func() error {
			n, err := warmService(gctx, opts.Fetcher, opts.Store, e)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				klog.Errorf("Failed to pre-warm %s: %v", e.Service, err)
				report.Failed++
				report.Failures = append(report.Failures, Failure{
					Service: e.Service,
					URL:     e.URL,
					Error:   err.Error(),
				})
				return nil
			}
			klog.V(1).Infof("Saved %d read-only operations for %s", n, e.Service)
			report.Succeeded++
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Service < report.Failures[j].Service
	})
	klog.Infof("Pre-warm complete: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report, nil
}

func warmService(ctx context.Context, fetcher fetch.Fetcher, store cache.Store, e directory.Entry) (int, error) {
	body, err := fetcher.Fetch(ctx, e.URL)
	if err != nil {
		return 0, err
	}
	ops, err := operations.ParseReadOnlyActions(body)
	if err != nil {
		return 0, err
	}
	if err := store.Save(ctx, cache.ServiceOperationsKey(e.Service), ops); err != nil {
		return 0, err
	}
	return len(ops), nil
}

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

package readonly

import (
	"context"
	"fmt"

	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/catalog"
	"github.com/ShubyM/aws-readonly-ops/pkg/config"
	"github.com/ShubyM/aws-readonly-ops/pkg/fetch"
	"github.com/ShubyM/aws-readonly-ops/pkg/overrides"
)

// NewStore builds the cache store described by cfg, including the optional
// S3 mirror.
func NewStore(ctx context.Context, cfg config.Config) (cache.Store, error) {
	opts := cache.Options{
		Backend: cfg.CacheBackend,
		Dir:     cfg.CacheDir,
	}
	if cfg.CacheBucket != "" {
		mirror, err := cache.NewS3Store(ctx, cache.S3Config{
			Bucket:   cfg.CacheBucket,
			Region:   cfg.CacheRegion,
			Endpoint: cfg.CacheEndpoint,
			Prefix:   cfg.CacheBucketPrefix,
		})
		if err != nil {
			return nil, err
		}
		opts.Mirror = mirror
	}
	return cache.NewStore(opts)
}

// OptionsFromConfig resolves everything New needs from cfg, except the
// fetcher and store when they are already set on base.
func OptionsFromConfig(ctx context.Context, cfg config.Config, base Options) (Options, error) {
	opts := base
	if opts.DirectoryURL == "" {
		opts.DirectoryURL = cfg.ServiceReferenceURL
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewHTTPFetcher(fetch.WithTimeout(cfg.RequestTimeout))
	}
	if opts.Store == nil {
		store, err := NewStore(ctx, cfg)
		if err != nil {
			return Options{}, err
		}
		opts.Store = store
	}

	var policy config.Policy
	if cfg.PolicyFile != "" {
		loaded, err := config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return Options{}, err
		}
		policy = *loaded
	}

	if opts.Overrides == nil {
		opts.Overrides = overrides.Default().With(policy.Overrides)
	}

	if opts.Static == nil {
		var (
			static *catalog.Set
			err    error
		)
		if cfg.MetadataFile != "" {
			static, err = catalog.FromFile(cfg.MetadataFile, policy.CustomReadOnlyOperations)
		} else {
			static, err = catalog.New(catalog.BundledMetadata(), catalog.CustomReadOnlyOperations(), policy.CustomReadOnlyOperations)
		}
		if err != nil {
			return Options{}, fmt.Errorf("loading api metadata: %w", err)
		}
		opts.Static = static
	}
	return opts, nil
}

// FromConfig builds a Classifier wired with the default HTTP fetcher and the
// configured cache store.
func FromConfig(ctx context.Context, cfg config.Config) (*Classifier, error) {
	opts, err := OptionsFromConfig(ctx, cfg, Options{})
	if err != nil {
		return nil, err
	}
	return New(ctx, opts)
}

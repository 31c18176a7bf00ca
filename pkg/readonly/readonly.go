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

// Package readonly decides whether an API operation is read-only.
//
// Sources are consulted in a fixed order and the first match wins:
//
//  1. the override table, for credential-issuing operations that must never
//     be treated as read-only;
//  2. the static set built from bundled metadata and custom CLI commands;
//  3. the service reference document of the service, fetched on first use
//     and cached on disk.
package readonly

import (
	"context"
	"fmt"

	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/catalog"
	"github.com/ShubyM/aws-readonly-ops/pkg/directory"
	"github.com/ShubyM/aws-readonly-ops/pkg/fetch"
	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"github.com/ShubyM/aws-readonly-ops/pkg/operations"
	"github.com/ShubyM/aws-readonly-ops/pkg/overrides"
	"k8s.io/klog/v2"
)

// Source names the data source that decided a classification.
type Source string

const (
	SourceOverride         Source = "override"
	SourceStatic           Source = "static"
	SourceServiceReference Source = "service-reference"
	SourceUnknownService   Source = "unknown-service"
)

// Decision is the classification of one (service, operation) pair.
type Decision struct {
	Service   string `json:"service"`
	Operation string `json:"operation"`
	ReadOnly  bool   `json:"readOnly"`
	Source    Source `json:"source"`
}

// Options configures a Classifier. Fetcher and Store are required.
type Options struct {
	Fetcher fetch.Fetcher
	Store   cache.Store

	// DirectoryURL defaults to directory.DefaultURL.
	DirectoryURL string
	// Overrides defaults to overrides.Default().
	Overrides *overrides.Table
	// Static defaults to catalog.Bundled().
	Static *catalog.Set
}

// Classifier is the single entry point for read-only classification. It is
// safe for concurrent use.
type Classifier struct {
	overrides *overrides.Table
	static    *catalog.Set
	directory *directory.Directory
	resolver  *operations.Resolver
}

// New loads the service reference directory and builds a Classifier. It
// fails with an error matching directory.ErrUnavailable when the directory
// can be obtained from neither the network nor the cache.
func New(ctx context.Context, opts Options) (*Classifier, error) {
	if opts.Fetcher == nil || opts.Store == nil {
		return nil, fmt.Errorf("readonly: fetcher and store are required")
	}
	if opts.DirectoryURL == "" {
		opts.DirectoryURL = directory.DefaultURL
	}
	if opts.Overrides == nil {
		opts.Overrides = overrides.Default()
	}
	if opts.Static == nil {
		static, err := catalog.Bundled()
		if err != nil {
			return nil, fmt.Errorf("loading bundled metadata: %w", err)
		}
		opts.Static = static
	}

	dir, err := directory.Load(ctx, opts.Fetcher, opts.Store, opts.DirectoryURL)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		overrides: opts.Overrides,
		static:    opts.Static,
		directory: dir,
		resolver:  operations.NewResolver(dir, opts.Fetcher, opts.Store),
	}, nil
}

// Has reports whether operation of service is read-only. An error means the
// answer could not be determined and the operation must not be assumed safe.
func (c *Classifier) Has(ctx context.Context, service, operation string) (bool, error) {
	d, err := c.Classify(ctx, service, operation)
	if err != nil {
		return false, err
	}
	return d.ReadOnly, nil
}

// Classify is Has, plus the source of the answer.
func (c *Classifier) Classify(ctx context.Context, service, operation string) (Decision, error) {
	klog.V(2).Infof("checking in read only list : %s - %s", service, operation)

	d, err := c.classify(ctx, service, operation)
	record := journal.DecisionRecord{
		Service:   service,
		Operation: operation,
		ReadOnly:  d.ReadOnly,
		Source:    string(d.Source),
	}
	if err != nil {
		record.Error = err.Error()
	}
	journal.Record(ctx, journal.ActionClassification, record)
	return d, err
}

func (c *Classifier) classify(ctx context.Context, service, operation string) (Decision, error) {
	d := Decision{Service: service, Operation: operation}

	if readOnly, ok := c.overrides.Lookup(service, operation); ok {
		d.ReadOnly = readOnly
		d.Source = SourceOverride
		return d, nil
	}

	if c.static.Contains(service, operation) {
		d.ReadOnly = true
		d.Source = SourceStatic
		return d, nil
	}

	if !c.resolver.Known(service) {
		d.Source = SourceUnknownService
		return d, nil
	}

	readOnly, err := c.resolver.Has(ctx, service, operation)
	if err != nil {
		return d, err
	}
	d.ReadOnly = readOnly
	d.Source = SourceServiceReference
	return d, nil
}

// Directory returns the service reference directory in use.
func (c *Classifier) Directory() *directory.Directory {
	return c.directory
}

// ResolutionState reports how far resolution of service has progressed.
func (c *Classifier) ResolutionState(service string) operations.State {
	return c.resolver.State(service)
}

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

// Package fetch retrieves service reference documents over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each request, including reading the body.
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 64 << 20
)

// Fetcher retrieves the body of a URL with a single GET. Implementations do
// not retry; callers fall back to cached data on error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPFetcher is the default Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
}

var _ Fetcher = &HTTPFetcher{}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRateLimit paces requests to at most r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(f *HTTPFetcher) {
		if r > 0 {
			f.limiter = rate.NewLimiter(r, max(burst, 1))
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = userAgent
	}
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    http.DefaultClient,
		timeout:   DefaultTimeout,
		userAgent: "aws-readonly-ops",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET against url and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()
	journal.Record(ctx, journal.ActionHTTPRequest, journal.RequestRecord{ID: requestID, URL: url})

	body, status, err := f.get(ctx, url)
	if err != nil {
		journal.Record(ctx, journal.ActionHTTPError, journal.RequestRecord{
			ID:         requestID,
			StatusCode: status,
			Duration:   time.Since(start),
			Error:      err.Error(),
		})
		return nil, err
	}

	journal.Record(ctx, journal.ActionHTTPResponse, journal.RequestRecord{
		ID:         requestID,
		StatusCode: status,
		Bytes:      len(body),
		Duration:   time.Since(start),
	})
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if len(body) > maxBodyBytes {
		return nil, resp.StatusCode, fmt.Errorf("response from %s exceeds %d bytes", url, maxBodyBytes)
	}
	return body, resp.StatusCode, nil
}

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

package operations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShubyM/aws-readonly-ops/internal/mocks"
	"github.com/ShubyM/aws-readonly-ops/pkg/cache"
	"github.com/ShubyM/aws-readonly-ops/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const s3URL = "https://servicereference.example.com/s3.json"

var s3Reference = []byte(`{
  "Name": "s3",
  "Actions": [
    {"Name": "ListBuckets", "Annotations": {"Properties": {"IsWrite": false}}},
    {"Name": "GetObject", "Annotations": {"Properties": {"IsWrite": false}}},
    {"Name": "PutObject", "Annotations": {"Properties": {"IsWrite": true}}},
    {"Name": "RestoreObject", "Annotations": {}}
  ]
}`)

func testDirectory() *directory.Directory {
	return directory.New([]directory.Entry{{Service: "s3", URL: s3URL}})
}

func TestParseReadOnlyActions(t *testing.T) {
	ops, err := ParseReadOnlyActions(s3Reference)
	require.NoError(t, err)
	assert.Equal(t, []string{"ListBuckets", "GetObject"}, ops)

	_, err = ParseReadOnlyActions([]byte(`{"Name": "s3"}`))
	assert.Error(t, err)

	_, err = ParseReadOnlyActions([]byte(`not json`))
	assert.Error(t, err)

	ops, err = ParseReadOnlyActions([]byte(`{"Actions": []}`))
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestResolverFetchesOncePerService(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(s3Reference, nil).Times(1)

	store := cache.NewMemoryStore()
	r := NewResolver(testDirectory(), fetcher, store)
	ctx := context.Background()

	assert.Equal(t, StateUnresolved, r.State("s3"))

	got, err := r.Has(ctx, "s3", "ListBuckets")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, StateResolved, r.State("s3"))

	got, err = r.Has(ctx, "s3", "PutObject")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = r.Has(ctx, "s3", "RestoreObject")
	require.NoError(t, err)
	assert.False(t, got)

	var cached []string
	require.NoError(t, store.Load(ctx, cache.ServiceOperationsKey("s3"), &cached))
	assert.Equal(t, []string{"ListBuckets", "GetObject"}, cached)
}

func TestResolverUnknownService(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectations: any fetch fails the test.
	fetcher := mocks.NewMockFetcher(ctrl)
	store := mocks.NewMockStore(ctrl)

	r := NewResolver(testDirectory(), fetcher, store)

	got, err := r.Has(context.Background(), "made-up", "ListThings")
	require.NoError(t, err)
	assert.False(t, got)

	_, err = r.Resolve(context.Background(), "made-up")
	assert.True(t, errors.Is(err, ErrUnknownService))
	assert.Equal(t, StateUnresolved, r.State("made-up"))
}

func TestResolverFallsBackToCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(nil, errors.New("connection refused")).Times(1)

	store := cache.NewFilesystemStore(t.TempDir())
	require.NoError(t, store.Save(context.Background(), cache.ServiceOperationsKey("s3"), []string{"ListBuckets"}))

	r := NewResolver(testDirectory(), fetcher, store)
	got, err := r.Has(context.Background(), "s3", "ListBuckets")
	require.NoError(t, err)
	assert.True(t, got)

	// Resolved from cache: no second fetch
	got, err = r.Has(context.Background(), "s3", "GetObject")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestResolverUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetchErr := errors.New("connection refused")
	fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(nil, fetchErr).Times(2)

	r := NewResolver(testDirectory(), fetcher, cache.NewMemoryStore())

	_, err := r.Has(context.Background(), "s3", "ListBuckets")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, fetchErr))

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "s3", unavailable.Service)
	assert.True(t, errors.Is(unavailable.CacheErr, cache.ErrNotFound))
	assert.Equal(t, StateFailed, r.State("s3"))

	// Failures are not cached: the next query tries again.
	_, err = r.Has(context.Background(), "s3", "ListBuckets")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestResolverRetriesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(nil, errors.New("timeout")),
		fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(s3Reference, nil),
	)

	r := NewResolver(testDirectory(), fetcher, cache.NewMemoryStore())

	_, err := r.Has(context.Background(), "s3", "ListBuckets")
	require.Error(t, err)

	got, err := r.Has(context.Background(), "s3", "ListBuckets")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, StateResolved, r.State("s3"))
}

func TestResolverCorruptCacheIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return([]byte(`{"broken":`), nil)

	store := cache.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), cache.ServiceOperationsKey("s3"), map[string]int{"a": 1}))

	r := NewResolver(testDirectory(), fetcher, store)
	_, err := r.Has(context.Background(), "s3", "ListBuckets")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestResolverSaveFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), s3URL).Return(s3Reference, nil)

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Save(gomock.Any(), cache.ServiceOperationsKey("s3"), gomock.Any()).Return(errors.New("read-only file system"))

	r := NewResolver(testDirectory(), fetcher, store)
	got, err := r.Has(context.Background(), "s3", "GetObject")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestResolverRestartRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	queries := []string{"ListBuckets", "GetObject", "PutObject", "RestoreObject", "ls"}

	ctrl := gomock.NewController(t)
	online := mocks.NewMockFetcher(ctrl)
	online.EXPECT().Fetch(gomock.Any(), s3URL).Return(s3Reference, nil).Times(1)

	first := NewResolver(testDirectory(), online, cache.NewFilesystemStore(dir))
	var want []bool
	for _, op := range queries {
		got, err := first.Has(ctx, "s3", op)
		require.NoError(t, err)
		want = append(want, got)
	}
	firstOps, err := first.Resolve(ctx, "s3")
	require.NoError(t, err)

	// Simulate a restart without network access.
	offline := mocks.NewMockFetcher(ctrl)
	offline.EXPECT().Fetch(gomock.Any(), s3URL).Return(nil, errors.New("network unreachable")).Times(1)

	second := NewResolver(testDirectory(), offline, cache.NewFilesystemStore(dir))
	secondOps, err := second.Resolve(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, firstOps, secondOps)

	for i, op := range queries {
		got, err := second.Has(ctx, "s3", op)
		require.NoError(t, err)
		assert.Equal(t, want[i], got, op)
	}
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	body    []byte
	err     error
}

func (f *blockingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		close(f.started)
	}
	<-f.release
	return f.body, f.err
}

func TestResolverConcurrentCallersShareOneFetch(t *testing.T) {
	fetcher := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		body:    s3Reference,
	}
	r := NewResolver(testDirectory(), fetcher, cache.NewMemoryStore())
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	results := make([]bool, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = r.Has(ctx, "s3", "ListBuckets")
	}()
	<-fetcher.started
	assert.Equal(t, StateResolving, r.State("s3"))

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Has(ctx, "s3", "ListBuckets")
		}(i)
	}

	// Give the waiters a chance to block on the in-flight resolution.
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i])
	}
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolverWaiterRespectsContext(t *testing.T) {
	fetcher := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		body:    s3Reference,
	}
	r := NewResolver(testDirectory(), fetcher, cache.NewMemoryStore())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Has(context.Background(), "s3", "ListBuckets")
	}()
	<-fetcher.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Has(ctx, "s3", "ListBuckets")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(fetcher.release)
	<-done
	assert.Equal(t, StateResolved, r.State("s3"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "resolving", StateResolving.String())
	assert.Equal(t, "State(9)", State(9).String())
}

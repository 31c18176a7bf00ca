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

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"service":"s3","url":"https://example.com/s3.json"}]`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tests := []struct {
		name       string
		path       string
		timeout    time.Duration
		wantBody   string
		wantStatus int
		wantErr    bool
	}{
		{
			name:     "success",
			path:     "/ok",
			wantBody: `[{"service":"s3","url":"https://example.com/s3.json"}]`,
		},
		{
			name:       "non-2xx is an error",
			path:       "/missing",
			wantStatus: http.StatusNotFound,
			wantErr:    true,
		},
		{
			name:    "timeout",
			path:    "/slow",
			timeout: 50 * time.Millisecond,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewHTTPFetcher(WithTimeout(tt.timeout))
			body, err := f.Fetch(context.Background(), server.URL+tt.path)
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantStatus != 0 {
					var statusErr *StatusError
					require.True(t, errors.As(err, &statusErr))
					assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), url)
	assert.Error(t, err)
}

func TestHTTPFetcherRecordsJournal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	recorder, err := journal.NewFileRecorder(filepath.Join(t.TempDir(), "journal.json"))
	require.NoError(t, err)
	defer recorder.Close()

	ctx := journal.ContextWithRecorder(context.Background(), recorder)
	_, err = NewHTTPFetcher(WithRateLimit(100, 1)).Fetch(ctx, server.URL)
	require.NoError(t, err)

	run := recorder.Snapshot()
	require.Len(t, run.Requests, 1)
	assert.Equal(t, server.URL, run.Requests[0].URL)
	assert.Equal(t, http.StatusOK, run.Requests[0].StatusCode)
	assert.Equal(t, "success", run.Requests[0].Status)
}

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

package prewarm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Report summarizes a pre-warm run.
type Report struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	DirectoryURL string    `json:"directoryUrl"`
	Services     int       `json:"services"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	// Rate is SuccessRate, a fraction between 0 and 1.
	Rate         float64   `json:"successRate"`
	Failures     []Failure `json:"failures"`
}

// Failure is a service whose operations could not be cached.
type Failure struct {
	Service string `json:"service"`
	URL     string `json:"url"`
	Error   string `json:"error"`
}

// SuccessRate is the fraction of services that were cached.
func (r *Report) SuccessRate() float64 {
	if r.Services == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Services)
}

// WriteJSON encodes the report to w.
func (r *Report) WriteJSON(w io.Writer) error {
	out := *r
	out.Rate = r.SuccessRate()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteJSONFile writes the report to path, creating parent directories.
func (r *Report) WriteJSONFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

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

package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Policy is a site-specific extension of the built-in classification data.
//
//	customReadOnlyOperations:
//	  s3: [ls, presign]
//	overrides:
//	  secretsmanager:
//	    GetSecretValue: false
type Policy struct {
	CustomReadOnlyOperations map[string][]string        `json:"customReadOnlyOperations,omitempty"`
	Overrides                map[string]map[string]bool `json:"overrides,omitempty"`
}

// LoadPolicy reads a YAML or JSON policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var policy Policy
	if err := yaml.UnmarshalStrict(data, &policy); err != nil {
		return nil, fmt.Errorf("unmarshaling policy file %q: %w", path, err)
	}
	return &policy, nil
}

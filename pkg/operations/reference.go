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
	"encoding/json"
	"fmt"
)

// ServiceReference is the part of a per-service reference document we read.
type ServiceReference struct {
	Name    string   `json:"Name,omitempty"`
	Actions []Action `json:"Actions"`
}

type Action struct {
	Name        string            `json:"Name"`
	Annotations ActionAnnotations `json:"Annotations"`
}

type ActionAnnotations struct {
	Properties ActionProperties `json:"Properties"`
}

type ActionProperties struct {
	IsWrite *bool `json:"IsWrite"`
}

// IsWrite reports whether the action is annotated as a write. Actions
// without the annotation count as writes.
func (a Action) IsWrite() bool {
	isWrite := a.Annotations.Properties.IsWrite
	return isWrite == nil || *isWrite
}

// ParseReadOnlyActions decodes a service reference document and returns the
// names of all actions not marked as writes, in document order.
func ParseReadOnlyActions(data []byte) ([]string, error) {
	var ref ServiceReference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("decoding service reference: %w", err)
	}
	if ref.Actions == nil {
		return nil, fmt.Errorf("service reference has no Actions")
	}

	readOnly := []string{}
	for _, action := range ref.Actions {
		if action.Name == "" || action.IsWrite() {
			continue
		}
		readOnly = append(readOnly, action.Name)
	}
	return readOnly, nil
}

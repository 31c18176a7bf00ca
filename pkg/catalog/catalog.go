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

// Package catalog holds the static set of operations known to be read-only:
// the bundled API metadata plus a hand-maintained list of CLI commands the
// metadata does not classify.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// TypeReadOnly is the metadata type tag of read-only operations.
const TypeReadOnly = "ReadOnly"

//go:embed data/api_metadata.json
var bundledMetadata []byte

// OperationMetadata is the per-operation record of the bundled dataset.
type OperationMetadata struct {
	Type string `json:"type"`
}

// Metadata maps service -> operation -> metadata.
type Metadata map[string]map[string]OperationMetadata

// Set is an immutable service -> read-only operations lookup.
type Set struct {
	operations map[string]map[string]struct{}
}

// customReadOnlyOperations lists CLI commands that are read-only but absent
// from the bundled metadata.
var customReadOnlyOperations = map[string][]string{
	"s3":            {"ls", "presign"},
	"cloudfront":    {"sign"},
	"cloudtrail":    {"validate-logs"},
	"codeartifact":  {"login"},
	"codecommit":    {"credential-helper"},
	"datapipeline":  {"list-runs"},
	"ecr":           {"get-login", "get-login-password"},
	"ecr-public":    {"get-login-password"},
	"eks":           {"get-token"},
	"emr":           {"describe-cluster"},
	"gamelift":      {"get-game-session-log"},
	"logs":          {"start-live-tail"},
	"rds":           {"generate-db-auth-token"},
	"configservice": {"get-status"},
}

// CustomReadOnlyOperations returns a copy of the hand-maintained table.
func CustomReadOnlyOperations() map[string][]string {
	out := make(map[string][]string, len(customReadOnlyOperations))
	for service, ops := range customReadOnlyOperations {
		out[service] = append([]string(nil), ops...)
	}
	return out
}

// BundledMetadata returns the dataset embedded in the binary.
func BundledMetadata() []byte {
	return bundledMetadata
}

// ParseMetadata decodes a metadata document.
func ParseMetadata(data []byte) (Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("decoding api metadata: %w", err)
	}
	return metadata, nil
}

// New builds a Set from a metadata document and one or more custom tables.
// Only operations tagged ReadOnly are kept from the metadata; custom entries
// are added to whatever the metadata provides for the same service.
func New(metadata []byte, custom ...map[string][]string) (*Set, error) {
	parsed, err := ParseMetadata(metadata)
	if err != nil {
		return nil, err
	}

	s := &Set{operations: make(map[string]map[string]struct{})}
	for service, operations := range parsed {
		for operation, meta := range operations {
			if meta.Type == TypeReadOnly {
				s.add(service, operation)
			}
		}
	}
	for _, table := range custom {
		for service, operations := range table {
			for _, operation := range operations {
				s.add(service, operation)
			}
		}
	}
	return s, nil
}

// Bundled builds the Set from the embedded metadata and the custom table.
func Bundled() (*Set, error) {
	return New(bundledMetadata, customReadOnlyOperations)
}

// FromFile builds the Set from a metadata file on disk and the custom table.
func FromFile(path string, extra ...map[string][]string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading api metadata: %w", err)
	}
	return New(data, append([]map[string][]string{customReadOnlyOperations}, extra...)...)
}

func (s *Set) add(service, operation string) {
	ops, ok := s.operations[service]
	if !ok {
		ops = make(map[string]struct{})
		s.operations[service] = ops
	}
	ops[operation] = struct{}{}
}

// Contains reports whether operation is known to be read-only for service.
func (s *Set) Contains(service, operation string) bool {
	_, ok := s.operations[service][operation]
	return ok
}

// Operations returns the read-only operations of service in sorted order.
func (s *Set) Operations(service string) []string {
	ops := make([]string, 0, len(s.operations[service]))
	for op := range s.operations[service] {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Services returns the services with at least one read-only operation.
func (s *Set) Services() []string {
	services := make([]string, 0, len(s.operations))
	for service := range s.operations {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

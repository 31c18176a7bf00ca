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

// Package overrides forces the classification of operations that read state
// but hand out live credentials, so they are never treated as read-only.
package overrides

import "sort"

var builtin = map[string]map[string]bool{
	"sts": {
		"AssumeRole":                false,
		"AssumeRoleWithWebIdentity": false,
		"AssumeRoleWithSAML":        false,
		"GetSessionToken":           false,
		"GetFederationToken":        false,
		"AssumeRoot":                false,
	},
	"iam": {
		"CreateAccessKey": false,
	},
	"cognito-identity": {
		"GetCredentialsForIdentity": false,
		"GetOpenIdToken":            false,
	},
	"sso": {
		"GetRoleCredentials": false,
	},
}

// Entry is a single forced classification.
type Entry struct {
	Service   string
	Operation string
	ReadOnly  bool
}

// Table is an immutable set of forced classifications.
type Table struct {
	entries map[string]map[string]bool
}

// Default returns the built-in table.
func Default() *Table {
	return newTable(builtin)
}

func newTable(src map[string]map[string]bool) *Table {
	entries := make(map[string]map[string]bool, len(src))
	for service, ops := range src {
		entries[service] = make(map[string]bool, len(ops))
		for op, readOnly := range ops {
			entries[service][op] = readOnly
		}
	}
	return &Table{entries: entries}
}

// With returns a new table holding t's entries plus extra. Entries already
// present in t are kept as they are.
func (t *Table) With(extra map[string]map[string]bool) *Table {
	out := newTable(t.entries)
	for service, ops := range extra {
		if _, ok := out.entries[service]; !ok {
			out.entries[service] = make(map[string]bool, len(ops))
		}
		for op, readOnly := range ops {
			if _, exists := out.entries[service][op]; exists {
				continue
			}
			out.entries[service][op] = readOnly
		}
	}
	return out
}

// Lookup returns the forced classification of (service, operation), if any.
func (t *Table) Lookup(service, operation string) (readOnly bool, ok bool) {
	readOnly, ok = t.entries[service][operation]
	return readOnly, ok
}

// Entries lists the table sorted by service then operation.
func (t *Table) Entries() []Entry {
	var entries []Entry
	for service, ops := range t.entries {
		for op, readOnly := range ops {
			entries = append(entries, Entry{Service: service, Operation: op, ReadOnly: readOnly})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Service != entries[j].Service {
			return entries[i].Service < entries[j].Service
		}
		return entries[i].Operation < entries[j].Operation
	})
	return entries
}

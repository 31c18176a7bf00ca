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

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundled(t *testing.T) {
	set, err := Bundled()
	require.NoError(t, err)

	tests := []struct {
		service   string
		operation string
		want      bool
	}{
		{"s3", "GetObject", true},
		{"s3", "PutObject", false},
		{"s3", "ls", true},
		{"s3", "presign", true},
		{"ec2", "DescribeInstances", true},
		{"ec2", "RunInstances", false},
		{"ec2", "ModifyInstanceMetadataOptions", false},
		{"ecr", "DescribeRepositories", true},
		{"ecr", "get-login-password", true},
		{"eks", "get-token", true},
		{"configservice", "get-status", true},
		{"unknown-service", "ListThings", false},
	}
	for _, tt := range tests {
		t.Run(tt.service+"/"+tt.operation, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Contains(tt.service, tt.operation))
		})
	}
}

func TestNewMergesCustomOperations(t *testing.T) {
	metadata := []byte(`{
		"logs": {
			"DescribeLogGroups": {"type": "ReadOnly"},
			"PutLogEvents": {"type": "Mutating"}
		}
	}`)

	set, err := New(metadata, map[string][]string{
		"logs":  {"start-live-tail", "DescribeLogGroups"},
		"cloud": {"sign"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"DescribeLogGroups", "start-live-tail"}, set.Operations("logs"))
	assert.True(t, set.Contains("cloud", "sign"))
	assert.False(t, set.Contains("logs", "PutLogEvents"))
	assert.Equal(t, []string{"cloud", "logs"}, set.Services())
}

func TestNewRejectsMalformedMetadata(t *testing.T) {
	_, err := New([]byte(`["not", "a", "map"]`))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sqs": {"ListQueues": {"type": "ReadOnly"}}}`), 0o644))

	set, err := FromFile(path, map[string][]string{"sqs": {"peek"}})
	require.NoError(t, err)
	assert.True(t, set.Contains("sqs", "ListQueues"))
	assert.True(t, set.Contains("sqs", "peek"))
	assert.True(t, set.Contains("s3", "ls"))

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCustomReadOnlyOperationsIsACopy(t *testing.T) {
	custom := CustomReadOnlyOperations()
	custom["s3"] = append(custom["s3"], "rm")

	set, err := Bundled()
	require.NoError(t, err)
	assert.False(t, set.Contains("s3", "rm"))
}

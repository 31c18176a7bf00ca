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

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/ShubyM/aws-readonly-ops/pkg/readonly"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []Invocation
	}{
		{
			name:    "simple",
			command: "aws ec2 describe-instances",
			want:    []Invocation{{Service: "ec2", Operation: "describe-instances"}},
		},
		{
			name:    "global options before service",
			command: "aws --region us-west-2 --output=json --debug s3 ls s3://bucket",
			want:    []Invocation{{Service: "s3", Operation: "ls"}},
		},
		{
			name:    "s3api alias",
			command: "aws s3api list-buckets --query 'Buckets[].Name'",
			want:    []Invocation{{Service: "s3", Operation: "list-buckets"}},
		},
		{
			name:    "pipeline and list",
			command: "aws sts get-caller-identity | jq . && /usr/local/bin/aws iam create-access-key --user-name bob",
			want: []Invocation{
				{Service: "sts", Operation: "get-caller-identity"},
				{Service: "iam", Operation: "create-access-key"},
			},
		},
		{
			name:    "command substitution",
			command: `echo "$(aws lambda list-functions)"`,
			want:    []Invocation{{Service: "lambda", Operation: "list-functions"}},
		},
		{
			name:    "quoted words",
			command: `sudo aws "logs" 'describe-log-groups'`,
			want:    []Invocation{{Service: "logs", Operation: "describe-log-groups"}},
		},
		{
			name:    "dynamic operation",
			command: "aws ec2 $OP",
			want:    []Invocation{{Service: "ec2"}},
		},
		{
			name:    "no aws",
			command: "kubectl get pods",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandHiddenInvocation(t *testing.T) {
	tests := []struct {
		command string
		want    []Invocation
	}{
		{"env AWS_PROFILE=prod aws iam delete-user --user-name bob", nil},
		{"aws s3 ls && bash -c 'aws iam delete-user --user-name bob'", []Invocation{{Service: "s3", Operation: "ls"}}},
		{"aws s3 ls | xargs -n1 aws s3 rm", []Invocation{{Service: "s3", Operation: "ls"}}},
		{"timeout 10 aws ec2 terminate-instances --instance-ids i-1", nil},
		{"sh script.sh", nil},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, err := ParseCommand(tt.command)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrHiddenInvocation))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandSyntaxError(t *testing.T) {
	_, err := ParseCommand("aws s3 ls 'unterminated")
	assert.Error(t, err)
}

func TestAPIOperationName(t *testing.T) {
	assert.Equal(t, "DescribeInstances", APIOperationName("describe-instances"))
	assert.Equal(t, "ListBuckets", APIOperationName("list-buckets"))
	assert.Equal(t, "Ls", APIOperationName("ls"))
	assert.Equal(t, "", APIOperationName(""))
}

// fakeClassifier answers from a fixed table; anything else fails.
type fakeClassifier map[string]readonly.Decision

func (f fakeClassifier) Classify(_ context.Context, service, operation string) (readonly.Decision, error) {
	d, ok := f[service+"/"+operation]
	if !ok {
		return readonly.Decision{}, errors.New("service operations unavailable")
	}
	return d, nil
}

func TestCheckModifiesResource(t *testing.T) {
	classifier := fakeClassifier{
		"s3/ls":                   {ReadOnly: true, Source: readonly.SourceStatic},
		"s3/Ls":                   {ReadOnly: false, Source: readonly.SourceServiceReference},
		"s3/ListBuckets":          {ReadOnly: true, Source: readonly.SourceServiceReference},
		"s3/list-buckets":         {ReadOnly: false, Source: readonly.SourceServiceReference},
		"s3/Rm":                   {ReadOnly: false, Source: readonly.SourceServiceReference},
		"s3/rm":                   {ReadOnly: false, Source: readonly.SourceServiceReference},
		"sts/AssumeRole":          {ReadOnly: false, Source: readonly.SourceOverride},
		"sts/assume-role":         {ReadOnly: true, Source: readonly.SourceStatic},
		"sts/GetCallerIdentity":   {ReadOnly: true, Source: readonly.SourceServiceReference},
		"sts/get-caller-identity": {ReadOnly: false, Source: readonly.SourceServiceReference},
		"lightsail/GetInstances":  {ReadOnly: false, Source: readonly.SourceUnknownService},
		"lightsail/get-instances": {ReadOnly: false, Source: readonly.SourceUnknownService},
	}

	tests := []struct {
		command string
		want    string
	}{
		{"aws s3 ls", ModifiesNo},
		{"aws s3api list-buckets", ModifiesNo},
		{"aws s3 ls && aws sts get-caller-identity", ModifiesNo},
		{"aws s3 rm s3://bucket/key", ModifiesYes},
		{"aws s3 ls; aws s3 rm s3://bucket/key", ModifiesYes},
		{"aws sts assume-role --role-arn arn", ModifiesYes},
		{"aws lightsail get-instances", ModifiesYes},
		{"aws ec2 describe-instances", ModifiesUnknown},
		{"aws ec2 $OP", ModifiesUnknown},
		{"ls -la", ModifiesUnknown},
		{"aws s3 ls 'unterminated", ModifiesUnknown},
		{"aws s3 ls; env aws iam delete-user --user-name bob", ModifiesUnknown},
		{"aws s3 ls && bash -c 'aws iam delete-user --user-name bob'", ModifiesUnknown},
		{"aws s3 ls | xargs aws s3 rm", ModifiesUnknown},
		{"aws s3 ls; nohup /usr/bin/aws s3 rm s3://bucket/key &", ModifiesUnknown},
		{"aws s3 ls; sudo -u ops aws s3 rm s3://bucket/key", ModifiesUnknown},
		{"aws s3 ls; $RUNNER s3 rm s3://bucket/key", ModifiesUnknown},
		{"aws s3 ls; eval \"$CMD\"", ModifiesUnknown},
		{"aws s3 ls | grep -v logs", ModifiesNo},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckModifiesResource(context.Background(), classifier, tt.command))
		})
	}
}

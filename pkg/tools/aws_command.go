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
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/ShubyM/aws-readonly-ops/pkg/readonly"
	"k8s.io/klog/v2"
	"mvdan.cc/sh/v3/syntax"
)

// Possible answers of CheckModifiesResource.
const (
	ModifiesYes     = "yes"
	ModifiesNo      = "no"
	ModifiesUnknown = "unknown"
)

// globalOptionsWithValue are aws CLI options that consume the next word.
var globalOptionsWithValue = map[string]bool{
	"--region":              true,
	"--profile":             true,
	"--output":              true,
	"--endpoint-url":        true,
	"--query":               true,
	"--color":               true,
	"--ca-bundle":           true,
	"--cli-read-timeout":    true,
	"--cli-connect-timeout": true,
	"--cli-binary-format":   true,
}

// ErrHiddenInvocation is returned by ParseCommand when the command line may
// run the aws CLI in a way that cannot be read statically, e.g. through
// `env`, `xargs` or `bash -c`.
var ErrHiddenInvocation = errors.New("command may run aws through a wrapper")

// commandPrefixes run their argument as a command and are looked through.
var commandPrefixes = map[string]bool{
	"sudo":    true,
	"exec":    true,
	"command": true,
	"time":    true,
}

// interpreters run arbitrary code from their arguments.
var interpreters = map[string]bool{
	"sh":     true,
	"bash":   true,
	"zsh":    true,
	"dash":   true,
	"ksh":    true,
	"eval":   true,
	"source": true,
	".":      true,
}

// serviceAliases maps CLI command names to their service reference names.
var serviceAliases = map[string]string{
	"s3api": "s3",
}

// Invocation is a single `aws <service> <operation>` call found in a command
// line. Service or Operation is empty when it could not be determined
// statically.
type Invocation struct {
	Service   string
	Operation string
}

// Classifier is the part of *readonly.Classifier that command checks need.
type Classifier interface {
	Classify(ctx context.Context, service, operation string) (readonly.Decision, error)
}

// ParseCommand returns every aws CLI invocation in a shell command line,
// including ones inside pipelines, lists and subshells. The invocations found
// are returned together with an error wrapping ErrHiddenInvocation when some
// call may run aws without being one of them.
func ParseCommand(command string) ([]Invocation, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}

	var (
		invocations []Invocation
		hidden      []string
	)
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		words, literal := callWords(call.Args)
		if inv, ok := parseCall(words, literal); ok {
			invocations = append(invocations, inv)
		} else if reason := hiddenInvocation(words, literal); reason != "" {
			hidden = append(hidden, reason)
		}
		return true
	})
	if len(hidden) > 0 {
		return invocations, fmt.Errorf("%w: %s", ErrHiddenInvocation, strings.Join(hidden, "; "))
	}
	return invocations, nil
}

func callWords(args []*syntax.Word) ([]string, []bool) {
	words := make([]string, len(args))
	literal := make([]bool, len(args))
	for i, w := range args {
		words[i], literal[i] = wordLiteral(w)
	}
	return words, literal
}

// commandIndex skips command prefixes and returns the index of the command
// name.
func commandIndex(words []string, literal []bool) int {
	i := 0
	for i < len(words) && literal[i] && commandPrefixes[words[i]] {
		i++
	}
	return i
}

// hiddenInvocation explains why a call that is not a plain aws invocation may
// still run one, or returns "".
func hiddenInvocation(words []string, literal []bool) string {
	i := commandIndex(words, literal)
	if i >= len(words) {
		return ""
	}
	if !literal[i] {
		return "dynamic command name"
	}
	if interpreters[path.Base(words[i])] {
		return fmt.Sprintf("%s runs arbitrary code", words[i])
	}
	for j := i + 1; j < len(words); j++ {
		if literal[j] && mentionsAWS(words[j]) {
			return fmt.Sprintf("%s runs aws", words[i])
		}
	}
	return ""
}

// mentionsAWS reports whether a word contains aws as a standalone token.
func mentionsAWS(word string) bool {
	tokens := strings.FieldsFunc(word, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(";&|()`'\"=", r)
	})
	for _, token := range tokens {
		if path.Base(token) == "aws" {
			return true
		}
	}
	return false
}

func parseCall(words []string, literal []bool) (Invocation, bool) {
	i := commandIndex(words, literal)
	if i >= len(words) || !literal[i] || path.Base(words[i]) != "aws" {
		return Invocation{}, false
	}
	i++

	var positional []string
	for ; i < len(words) && len(positional) < 2; i++ {
		if !literal[i] {
			// A dynamic word leaves the rest undetermined.
			positional = append(positional, "")
			continue
		}
		word := words[i]
		if strings.HasPrefix(word, "--") && len(positional) == 0 {
			name, _, hasValue := strings.Cut(word, "=")
			if globalOptionsWithValue[name] && !hasValue {
				i++
			}
			continue
		}
		if strings.HasPrefix(word, "-") {
			continue
		}
		positional = append(positional, word)
	}

	inv := Invocation{}
	if len(positional) > 0 {
		inv.Service = positional[0]
		if alias, ok := serviceAliases[inv.Service]; ok {
			inv.Service = alias
		}
	}
	if len(positional) > 1 {
		inv.Operation = positional[1]
	}
	return inv, true
}

// wordLiteral returns the value of a word that contains no expansions.
func wordLiteral(w *syntax.Word) (string, bool) {
	if lit := w.Lit(); lit != "" {
		return lit, true
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}

// APIOperationName converts a CLI operation name to its API form, e.g.
// describe-instances to DescribeInstances.
func APIOperationName(operation string) string {
	var sb strings.Builder
	for _, part := range strings.Split(operation, "-") {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}

// IsReadOnly classifies a single invocation. The CLI name is checked as-is
// (for custom commands such as `s3 ls`) and in its API form; an override on
// the API form wins over both.
func IsReadOnly(ctx context.Context, c Classifier, inv Invocation) (bool, error) {
	if inv.Service == "" || inv.Operation == "" {
		return false, fmt.Errorf("cannot determine service and operation of aws invocation")
	}

	api, apiErr := c.Classify(ctx, inv.Service, APIOperationName(inv.Operation))
	if apiErr == nil && api.Source == readonly.SourceOverride {
		return api.ReadOnly, nil
	}

	cli, cliErr := c.Classify(ctx, inv.Service, inv.Operation)
	if (cliErr == nil && cli.ReadOnly) || (apiErr == nil && api.ReadOnly) {
		return true, nil
	}
	if err := errors.Join(apiErr, cliErr); err != nil {
		return false, err
	}
	return false, nil
}

// CheckModifiesResource determines whether a shell command modifies AWS
// resources. It returns "no" only when the command contains at least one aws
// invocation, every one of them is read-only, and no other call could run aws
// out of sight.
func CheckModifiesResource(ctx context.Context, c Classifier, command string) string {
	invocations, err := ParseCommand(command)
	if err != nil {
		klog.V(1).Infof("Failed to parse command %q: %v", command, err)
		return ModifiesUnknown
	}
	if len(invocations) == 0 {
		return ModifiesUnknown
	}

	result := ModifiesNo
	for _, inv := range invocations {
		readOnly, err := IsReadOnly(ctx, c, inv)
		if err != nil {
			klog.V(1).Infof("Failed to classify %s %s: %v", inv.Service, inv.Operation, err)
			return ModifiesUnknown
		}
		if !readOnly {
			result = ModifiesYes
		}
	}
	return result
}

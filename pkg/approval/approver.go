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

package approval

import (
	"context"
	"fmt"
)

// Kind is the type of work an operation performs.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
)

// Checker answers whether an operation is read-only. *readonly.Classifier
// satisfies it.
type Checker interface {
	Has(ctx context.Context, service, operation string) (bool, error)
}

// Approver applies a Policy to classified operations.
type Approver struct {
	Policy  Policy
	Checker Checker
}

// NewApprover returns an Approver, rejecting unknown policies.
func NewApprover(policy Policy, checker Checker) (*Approver, error) {
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid approval policy %q", policy)
	}
	return &Approver{Policy: policy, Checker: checker}, nil
}

// Kind classifies an operation. Operations that cannot be classified are
// treated as writes, and the classification error is returned alongside.
func (a *Approver) Kind(ctx context.Context, service, operation string) (Kind, error) {
	readOnly, err := a.Checker.Has(ctx, service, operation)
	if err != nil {
		return KindWrite, err
	}
	return KindOf(readOnly), nil
}

// RequiresApproval reports whether operation of service needs approval under
// the policy. A classification error always requires approval.
func (a *Approver) RequiresApproval(ctx context.Context, service, operation string) (bool, error) {
	switch a.Policy {
	case PolicyYolo:
		return false, nil
	case PolicyParanoid:
		return true, nil
	}

	kind, err := a.Kind(ctx, service, operation)
	if err != nil {
		return true, err
	}
	return a.RequiresApprovalForKind(kind), nil
}

// RequiresApprovalForKind applies the policy to an operation that has
// already been classified.
func (a *Approver) RequiresApprovalForKind(kind Kind) bool {
	switch a.Policy {
	case PolicyYolo:
		return false
	case PolicyParanoid:
		return true
	}
	return kind != KindRead
}

// KindOf maps a read-only answer to a Kind.
func KindOf(readOnly bool) Kind {
	if readOnly {
		return KindRead
	}
	return KindWrite
}

// RequiresApprovalFor applies the policy to a "yes" / "no" / "unknown"
// modifies-resource answer, as produced for whole shell commands.
func (a *Approver) RequiresApprovalFor(modifiesResource string) bool {
	switch a.Policy {
	case PolicyYolo:
		return false
	case PolicyParanoid:
		return true
	}
	return modifiesResource != "no"
}

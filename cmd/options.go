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

package main

import (
	"fmt"
	"time"

	"github.com/ShubyM/aws-readonly-ops/pkg/approval"
	"github.com/ShubyM/aws-readonly-ops/pkg/config"
	"github.com/ShubyM/aws-readonly-ops/pkg/prewarm"
	"github.com/spf13/pflag"
)

type Options struct {
	// Config is read from the environment once, before flags are parsed.
	Config config.Config

	// ApprovalPolicy decides whether a classified operation needs approval.
	ApprovalPolicy approval.Policy
	// SkipPermissions is shorthand for --approval-policy=yolo.
	SkipPermissions bool

	// Output is "text" or "json".
	Output string
	// JournalPath, when set, records decisions and requests to a JSON file.
	JournalPath string

	// Pre-warm settings.
	Concurrency int
	Timeout     time.Duration
	RateLimit   float64
	ReportPath  string
}

func (o *Options) InitDefaults() {
	o.Output = "text"
	o.Concurrency = prewarm.DefaultConcurrency
	o.Timeout = prewarm.DefaultTimeout
}

func (o *Options) bindPersistentFlags(f *pflag.FlagSet) {
	f.StringVar(&o.JournalPath, "journal", o.JournalPath, "write classification decisions and HTTP requests to this JSON file")
	f.StringVar(&o.Output, "output", o.Output, "output format, one of text or json")
}

func (o *Options) bindApprovalFlags(f *pflag.FlagSet) {
	f.StringVar((*string)(&o.ApprovalPolicy), "approval-policy", string(o.ApprovalPolicy), "approval policy, one of auto-approve-read, paranoid or yolo")
	f.BoolVar(&o.SkipPermissions, "skip-permissions", o.SkipPermissions, "never require approval (same as --approval-policy=yolo)")
}

func (o *Options) bindPrewarmFlags(f *pflag.FlagSet) {
	f.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "maximum number of concurrent service fetches")
	f.DurationVar(&o.Timeout, "timeout", o.Timeout, "timeout of each request")
	f.Float64Var(&o.RateLimit, "rate-limit", o.RateLimit, "maximum requests per second, 0 for unlimited")
	f.StringVar(&o.ReportPath, "report", o.ReportPath, "write a JSON report of the run to this file")
}

// ResolveApprovalPolicy applies --skip-permissions and validates the result.
// An explicit --approval-policy wins over --skip-permissions.
func (o *Options) ResolveApprovalPolicy() error {
	if o.ApprovalPolicy == "" {
		if o.SkipPermissions {
			o.ApprovalPolicy = approval.PolicyYolo
		} else {
			o.ApprovalPolicy = approval.PolicyAutoApproveRead
		}
	}
	if !o.ApprovalPolicy.IsValid() {
		return fmt.Errorf("invalid --approval-policy %q", o.ApprovalPolicy)
	}
	return nil
}

func (o *Options) validateOutput() error {
	switch o.Output {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid --output %q, must be text or json", o.Output)
	}
}

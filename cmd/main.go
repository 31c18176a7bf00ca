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
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ShubyM/aws-readonly-ops/pkg/approval"
	"github.com/ShubyM/aws-readonly-ops/pkg/config"
	"github.com/ShubyM/aws-readonly-ops/pkg/journal"
	"github.com/ShubyM/aws-readonly-ops/pkg/prewarm"
	"github.com/ShubyM/aws-readonly-ops/pkg/readonly"
	"github.com/ShubyM/aws-readonly-ops/pkg/tools"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var opt Options
	opt.InitDefaults()
	opt.Config = cfg

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	// Logs go to stderr only unless asked otherwise.
	klogFlags.Set("logtostderr", "true")
	defer klog.Flush()

	rootCmd := BuildRootCommand(&opt)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	return rootCmd.ExecuteContext(ctx)
}

func BuildRootCommand(opt *Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aws-readonly-ops",
		Short:         "Classify AWS API operations as read-only or mutating",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opt.validateOutput()
		},
	}
	opt.bindPersistentFlags(rootCmd.PersistentFlags())

	checkCmd := &cobra.Command{
		Use:   "check SERVICE OPERATION",
		Short: "Classify a single operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opt, cmd.OutOrStdout(), args[0], args[1])
		},
	}
	opt.bindApprovalFlags(checkCmd.Flags())
	rootCmd.AddCommand(checkCmd)

	checkCommandCmd := &cobra.Command{
		Use:   "check-command COMMAND",
		Short: "Report whether a shell command with aws invocations modifies resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCommand(cmd.Context(), opt, cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	opt.bindApprovalFlags(checkCommandCmd.Flags())
	rootCmd.AddCommand(checkCommandCmd)

	prewarmCmd := &cobra.Command{
		Use:   "prewarm [CACHE_DIR]",
		Short: "Populate a cache directory with every service's read-only operations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := prewarm.DefaultCacheDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runPrewarm(cmd.Context(), opt, cmd.OutOrStdout(), dir)
		},
	}
	opt.bindPrewarmFlags(prewarmCmd.Flags())
	rootCmd.AddCommand(prewarmCmd)

	return rootCmd
}

// withJournal attaches a file recorder to ctx when a journal path is set.
func withJournal(ctx context.Context, opt *Options) (context.Context, func(), error) {
	if opt.JournalPath == "" {
		return ctx, func() {}, nil
	}
	recorder, err := journal.NewFileRecorder(opt.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating journal: %w", err)
	}
	closer := func() {
		if err := recorder.Close(); err != nil {
			klog.Warningf("Failed to close journal: %v", err)
		}
	}
	return journal.ContextWithRecorder(ctx, recorder), closer, nil
}

type checkResult struct {
	readonly.Decision
	Policy           approval.Policy `json:"approvalPolicy"`
	RequiresApproval bool            `json:"requiresApproval"`
}

func runCheck(ctx context.Context, opt *Options, out io.Writer, service, operation string) error {
	if err := opt.ResolveApprovalPolicy(); err != nil {
		return err
	}

	ctx, closeJournal, err := withJournal(ctx, opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	classifier, err := readonly.FromConfig(ctx, opt.Config)
	if err != nil {
		return err
	}

	decision, err := classifier.Classify(ctx, service, operation)
	if err != nil {
		return fmt.Errorf("classifying %s %s: %w", service, operation, err)
	}

	approver, err := approval.NewApprover(opt.ApprovalPolicy, classifier)
	if err != nil {
		return err
	}
	requiresApproval := approver.RequiresApprovalForKind(approval.KindOf(decision.ReadOnly))

	result := checkResult{
		Decision:         decision,
		Policy:           opt.ApprovalPolicy,
		RequiresApproval: requiresApproval,
	}
	if opt.Output == "json" {
		return writeJSON(out, result)
	}

	kind := "mutating"
	if decision.ReadOnly {
		kind = "read-only"
	}
	fmt.Fprintf(out, "%s %s: %s (%s)\n", service, operation, kind, decision.Source)
	fmt.Fprintf(out, "requires approval (%s): %s\n", opt.ApprovalPolicy, yesNo(requiresApproval))
	return nil
}

type checkCommandResult struct {
	Command          string          `json:"command"`
	ModifiesResource string          `json:"modifiesResource"`
	Policy           approval.Policy `json:"approvalPolicy"`
	RequiresApproval bool            `json:"requiresApproval"`
}

func runCheckCommand(ctx context.Context, opt *Options, out io.Writer, command string) error {
	if err := opt.ResolveApprovalPolicy(); err != nil {
		return err
	}

	ctx, closeJournal, err := withJournal(ctx, opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	classifier, err := readonly.FromConfig(ctx, opt.Config)
	if err != nil {
		return err
	}

	approver, err := approval.NewApprover(opt.ApprovalPolicy, classifier)
	if err != nil {
		return err
	}

	modifies := tools.CheckModifiesResource(ctx, classifier, command)
	result := checkCommandResult{
		Command:          command,
		ModifiesResource: modifies,
		Policy:           opt.ApprovalPolicy,
		RequiresApproval: approver.RequiresApprovalFor(modifies),
	}
	if opt.Output == "json" {
		return writeJSON(out, result)
	}

	fmt.Fprintf(out, "modifies resources: %s\n", modifies)
	fmt.Fprintf(out, "requires approval (%s): %s\n", opt.ApprovalPolicy, yesNo(result.RequiresApproval))
	return nil
}

func runPrewarm(ctx context.Context, opt *Options, out io.Writer, dir string) error {
	ctx, closeJournal, err := withJournal(ctx, opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	cfg := opt.Config
	cfg.CacheDir = dir
	cfg.CacheBackend = "filesystem"
	store, err := readonly.NewStore(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := prewarm.Run(ctx, prewarm.Options{
		Store:        store,
		DirectoryURL: cfg.ServiceReferenceURL,
		Concurrency:  opt.Concurrency,
		Timeout:      opt.Timeout,
		RateLimit:    rate.Limit(opt.RateLimit),
	})
	if err != nil {
		return err
	}

	if opt.ReportPath != "" {
		if err := report.WriteJSONFile(opt.ReportPath); err != nil {
			return err
		}
	}

	if opt.Output == "json" {
		return report.WriteJSON(out)
	}
	fmt.Fprintf(out, "Cached %d of %d services in %s\n", report.Succeeded, report.Services, dir)
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  %s: %s\n", f.Service, f.Error)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/CodeAnalyzer/pkg/ux"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/config"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/pipeline"
	"github.com/spf13/cobra"
)

// mode is the action selected by flags.
type mode int

const (
	modeRun mode = iota
	modeTest
	modeReset
)

// rootFlags holds the values bound to the root command's flags.
type rootFlags struct {
	configFile string
	envFile    string
	verbose    bool

	test  bool
	run   bool
	reset bool
}

func (f rootFlags) mode() mode {
	switch {
	case f.test:
		return modeTest
	case f.reset:
		return modeReset
	default:
		return modeRun
	}
}

// newRootCmd builds the codeanalyzer command writing results to out and
// traces to errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "codeanalyzer",
		Short: "Analyze new commits with an AI backend and email their authors",
		Long: `codeanalyzer keeps a local clone of one branch, sends every file changed
by a commit it has not seen before to an AI analysis backend, and emails
the commit author a report per top-level folder when issues are found.

With no flag it runs the analysis, the same as --run.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), *flags, newPrinter(out), errOut)
		},
	}

	cmd.Flags().BoolVar(&flags.test, "test", false, "check backend, email and repository reachability without changing anything")
	cmd.Flags().BoolVar(&flags.run, "run", false, "analyze new commits (default)")
	cmd.Flags().BoolVar(&flags.reset, "reset-tracking", false, "forget every analyzed commit")
	cmd.MarkFlagsMutuallyExclusive("test", "run", "reset-tracking")

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file (default config.yaml when present)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file loaded before reading the environment (default .env when present)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func newPrinter(w io.Writer) *ux.Printer {
	if f, ok := w.(*os.File); ok {
		return ux.NewPrinter(w, ux.DetectMode(f))
	}
	return ux.NewPrinter(w, ux.ModePlain)
}

// execute loads configuration, wires the app and runs the selected mode.
func execute(ctx context.Context, flags rootFlags, p *ux.Printer, traceOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	m := flags.mode()
	if m == modeRun {
		if err := cfg.RequireRepository(); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, appOptions{Verbose: flags.verbose, TraceWriter: traceOut})
	if err != nil {
		return err
	}
	defer a.Close()

	switch m {
	case modeTest:
		var report pipeline.SetupReport
		p.WithSpinner("Testing setup", func() { report = a.orchestrator.TestSetup(ctx) })
		p.Table("Setup Test Results", setupRows(report))
		return nil

	case modeReset:
		if err := a.orchestrator.Reset(ctx); err != nil {
			return fmt.Errorf("resetting commit tracking: %w", err)
		}
		p.Success("Commit tracking reset successfully")
		return nil

	default:
		var summary pipeline.RunSummary
		p.WithSpinner("Analyzing new commits on "+cfg.Repository.Branch, func() { summary = a.orchestrator.Run(ctx) })
		a.pushMetrics(ctx)
		p.Table("Analysis Summary", summaryRows(summary))
		if summary.Failed() {
			p.Error("Analysis failed")
			return &ExitError{Code: 1}
		}
		p.Success("Analysis completed successfully")
		return nil
	}
}

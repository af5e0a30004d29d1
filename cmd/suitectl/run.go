package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotomize/loginsuite/internal/pipeline"
	"github.com/robotomize/loginsuite/internal/runner"
)

var errScenariosFailed = errors.New("one or more scenarios failed")

var (
	runReportFlag bool
	runEnvFlag    []string
)

func init() {
	runCmd.Flags().StringSlice("packages", nil, "packages holding the scenarios: --packages ./e2e/...")
	runCmd.Flags().StringSlice("tags", nil, "go build tags: --tags e2e,chromium")
	runCmd.Flags().String("run", "", "only run scenarios matching the regexp: --run TestLoginLockout")
	runCmd.Flags().Duration("timeout", 0, "go test timeout: --timeout 10m")
	runCmd.Flags().StringP("output", "o", "", "artifact directory: -o reports")
	runCmd.Flags().BoolP("forward-log", "l", false, "output the origin go test stream")
	runCmd.Flags().String("suite", "", "suite label added to every artifact")
	runCmd.Flags().BoolVar(&runReportFlag, "report", false, "run the report pipeline after the scenarios")
	runCmd.Flags().StringSliceVarP(&runEnvFlag, "env", "e", nil, "extra environment for go test: -e E2E_EMBEDDED=true")

	mustBind("runner.packages", runCmd.Flags().Lookup("packages"))
	mustBind("runner.tags", runCmd.Flags().Lookup("tags"))
	mustBind("runner.run", runCmd.Flags().Lookup("run"))
	mustBind("runner.timeout", runCmd.Flags().Lookup("timeout"))
	mustBind("runner.artifact_dir", runCmd.Flags().Lookup("output"))
	mustBind("runner.forward_log", runCmd.Flags().Lookup("forward-log"))
	mustBind("runner.suite", runCmd.Flags().Lookup("suite"))

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the browser scenarios",
	Long:  "Run the browser scenarios with go test and write one result artifact per test",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := runner.OptionsFromConfig(cfg.Runner)
		opts.ExtraEnv = runEnvFlag
		if cfg.Runner.ForwardLog {
			opts.Log = cmd.OutOrStdout()
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Running scenarios in %s\n", opts.Dir)

		summary, err := runner.Run(ctx, opts, logger)
		if err != nil {
			return fmt.Errorf("runner.Run: %w", err)
		}

		if summary.DecodeErr != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Read go test output log: %v\n", summary.DecodeErr)
		}

		_, _ = fmt.Fprintf(
			cmd.OutOrStdout(), "%d tests: %d passed, %d failed, %d skipped, %d broken\n",
			summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.Broken,
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d artifacts to %s\n", len(summary.Artifacts), opts.ArtifactDir)

		if runReportFlag {
			if err = runPipeline(cmd); err != nil {
				return err
			}
		}

		if !summary.OK() {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "One or more scenarios failed. exiting with error 1\n")
			return errScenariosFailed
		}

		return nil
	},
}

func runPipeline(cmd *cobra.Command) error {
	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("pipeline.FromConfig: %w", err)
	}

	res, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline.Run: %w", err)
	}

	stats := res.Report.Stats
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Merged %d results into %s\n", stats.Tests, res.MergedPath)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "HTML report written to %s (pass rate %.1f%%)\n", res.HTMLPath, stats.PassRate())

	switch {
	case res.Mailed:
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report mailed to %v\n", cfg.Mail.To)
	case res.MailErr != nil:
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report not mailed: %v\n", res.MailErr)
	default:
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mail disabled\n")
	}

	return nil
}

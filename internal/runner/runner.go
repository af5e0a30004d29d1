// Package runner executes the browser scenarios with `go test -json` and
// turns the event stream into result artifacts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robotomize/loginsuite/internal/artifact"
	"github.com/robotomize/loginsuite/internal/config"
	"github.com/robotomize/loginsuite/internal/exporter"
	"github.com/robotomize/loginsuite/internal/gotest"
	"github.com/robotomize/loginsuite/internal/slice"
)

type Options struct {
	Dir      string
	GoBin    string
	Packages []string
	Tags     []string
	// Run is passed to -run when set.
	Run     string
	Timeout time.Duration
	// ArtifactDir receives one <uuid>-result.json per top-level test.
	ArtifactDir string
	// Suite, when set, labels every artifact.
	Suite string
	// Log receives the raw go test stream.
	Log io.Writer
	// ExtraEnv is appended to the child environment.
	ExtraEnv []string
}

func OptionsFromConfig(cfg config.RunnerConfig) Options {
	return Options{
		Dir:         cfg.Dir,
		GoBin:       cfg.GoBin,
		Packages:    cfg.Packages,
		Tags:        cfg.Tags,
		Run:         cfg.Run,
		Timeout:     cfg.Timeout,
		ArtifactDir: cfg.ArtifactDir,
		Suite:       cfg.Suite,
	}
}

type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Broken  int
	// Artifacts lists the written files.
	Artifacts []string
	// DecodeErr joins stream lines that could not be decoded.
	DecodeErr error
}

// OK reports whether no test failed or broke.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Broken == 0
}

func summarize(results []artifact.Result) Summary {
	statusFn := func(status string) func(artifact.Result) bool {
		return func(r artifact.Result) bool {
			return r.Status == status
		}
	}

	return Summary{
		Total:   len(results),
		Passed:  slice.Count(results, statusFn(artifact.StatusPass)),
		Failed:  slice.Count(results, statusFn(artifact.StatusFail)),
		Skipped: slice.Count(results, statusFn(artifact.StatusSkip)),
		Broken:  slice.Count(results, statusFn(artifact.StatusBroken)),
	}
}

// Args builds the go test command line.
func Args(opts Options) []string {
	args := []string{"test", "-json", "-count=1"}

	if tags := slice.Filter(opts.Tags, func(s string) bool { return s != "" }); len(tags) > 0 {
		args = append(args, "-tags", strings.Join(tags, ","))
	}

	if opts.Run != "" {
		args = append(args, "-run", opts.Run)
	}

	if opts.Timeout > 0 {
		args = append(args, "-timeout", opts.Timeout.String())
	}

	return append(args, opts.Packages...)
}

// Collect converts a recorded go test -json stream into artifacts.
func Collect(ctx context.Context, r io.Reader, opts Options) (Summary, error) {
	set, err := gotest.NewReader(r).ReadAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("gotest.ReadAll: %w", err)
	}

	var exportOpts []exporter.Option
	if opts.Suite != "" {
		exportOpts = append(exportOpts, exporter.WithLabels(artifact.Label{Name: "suite", Value: opts.Suite}))
	}

	report := exporter.New(set, exportOpts...).Export()

	paths, err := exporter.NewWriter(exporter.WriteToDir(opts.ArtifactDir)).WriteResults(ctx, report.Results)
	if err != nil {
		return Summary{}, fmt.Errorf("exporter.WriteResults: %w", err)
	}

	summary := summarize(report.Results)
	summary.Artifacts = paths
	summary.DecodeErr = report.Err

	return summary, nil
}

// Run executes go test and collects its stream. A non-zero exit of go test
// is reported through the summary; only a failure to start or an unreadable
// stream is an error.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.GoBin == "" {
		opts.GoBin = "go"
	}

	if len(opts.Packages) == 0 {
		return Summary{}, errors.New("runner: no packages to test")
	}

	args := Args(opts)
	cmd := exec.CommandContext(ctx, opts.GoBin, args...)
	cmd.Dir = opts.Dir
	cmd.Stdin = strings.NewReader("")
	if len(opts.ExtraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), opts.ExtraEnv...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Summary{}, fmt.Errorf("cmd.StdoutPipe: %w", err)
	}

	var stderr strings.Builder
	cmd.Stderr = &stderr

	logger.Info("running scenarios", zap.String("cmd", opts.GoBin+" "+strings.Join(args, " ")), zap.String("dir", opts.Dir))

	if err = cmd.Start(); err != nil {
		return Summary{}, fmt.Errorf("start %s: %w", opts.GoBin, err)
	}

	var stream io.Reader = stdout
	if opts.Log != nil {
		stream = io.TeeReader(stdout, opts.Log)
	}

	summary, collectErr := Collect(ctx, stream, opts)
	if collectErr != nil {
		// drain so the child is not blocked on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()

	if collectErr != nil {
		return Summary{}, collectErr
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr) && ctx.Err() == nil:
		logger.Info("go test exited with failures", zap.Int("code", exitErr.ExitCode()))
	default:
		return summary, fmt.Errorf("%s test: %w: %s", opts.GoBin, waitErr, strings.TrimSpace(stderr.String()))
	}

	if summary.Total == 0 && stderr.Len() > 0 {
		logger.Warn("go test produced no results", zap.String("stderr", strings.TrimSpace(stderr.String())))
	}

	logger.Info(
		"scenarios finished",
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("broken", summary.Broken),
	)

	return summary, nil
}

// Package merge combines the per-test result artifacts of one or more runs
// into a single report document.
package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/robotomize/loginsuite/internal/artifact"
	"github.com/robotomize/loginsuite/internal/fs"
	"github.com/robotomize/loginsuite/internal/slice"
)

const DefaultPattern = "*" + artifact.FileSuffix

var ErrNoArtifactDir = errors.New("artifact directory does not exist")

type Stats struct {
	Tests    int   `json:"tests"`
	Passed   int   `json:"passed"`
	Failed   int   `json:"failed"`
	Skipped  int   `json:"skipped"`
	Broken   int   `json:"broken"`
	Start    int64 `json:"start"`
	Stop     int64 `json:"stop"`
	Duration int64 `json:"duration"`
}

// PassRate is the share of passed tests in percent, 0 for an empty report.
func (s Stats) PassRate() float64 {
	if s.Tests == 0 {
		return 0
	}

	return float64(s.Passed) * 100 / float64(s.Tests)
}

// Report is the merged document. It holds no generation time, so merging the
// same artifacts twice encodes to the same bytes.
type Report struct {
	Stats   Stats             `json:"stats"`
	Results []artifact.Result `json:"results"`
}

// MergeDir merges the artifacts matching pattern in dir. A missing directory
// is an error; an existing directory without artifacts yields an empty report.
func MergeDir(ctx context.Context, dir, pattern string) (Report, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Report{}, fmt.Errorf("%w: %s", ErrNoArtifactDir, dir)
		}
		return Report{}, fmt.Errorf("os.Stat: %w", err)
	}

	if !info.IsDir() {
		return Report{}, fmt.Errorf("%w: %s is not a directory", ErrNoArtifactDir, dir)
	}

	return Merge(ctx, fs.New(dir), pattern)
}

// Merge reads every file of fsys matching pattern. Files are decoded
// concurrently; the result order depends only on test identity.
func Merge(ctx context.Context, fsys fs.FS, pattern string) (Report, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	names, err := iofs.Glob(fsys, pattern)
	if err != nil {
		return Report{}, fmt.Errorf("fs.Glob %s: %w", pattern, err)
	}

	sort.Strings(names)

	decoded := make([]artifact.Result, len(names))

	wg, grpCtx := errgroup.WithContext(ctx)
	wg.SetLimit(runtime.NumCPU())

	for idx, name := range names {
		idx, name := idx, name

		wg.Go(
			func() error {
				if err := grpCtx.Err(); err != nil {
					return err
				}

				res, err := readResult(fsys, name)
				if err != nil {
					return err
				}

				decoded[idx] = res

				return nil
			},
		)
	}

	if err = wg.Wait(); err != nil {
		return Report{}, err
	}

	return newReport(decoded), nil
}

func readResult(fsys fs.FS, name string) (artifact.Result, error) {
	b, err := iofs.ReadFile(fsys, name)
	if err != nil {
		return artifact.Result{}, fmt.Errorf("read artifact %s: %w", fsys.Path(name), err)
	}

	var res artifact.Result
	if err = json.Unmarshal(b, &res); err != nil {
		return artifact.Result{}, fmt.Errorf("decode artifact %s: %w", fsys.Path(name), err)
	}

	if res.UUID == "" {
		return artifact.Result{}, fmt.Errorf("decode artifact %s: missing uuid", fsys.Path(name))
	}

	return res, nil
}

// newReport sorts, drops duplicate uuids and computes the stats.
func newReport(results []artifact.Result) Report {
	sort.SliceStable(
		results, func(i, j int) bool {
			a, b := results[i], results[j]
			if a.FullName != b.FullName {
				return a.FullName < b.FullName
			}
			if a.Start != b.Start {
				return a.Start < b.Start
			}

			return a.UUID < b.UUID
		},
	)

	seen := make(map[string]struct{}, len(results))
	unique := slice.Filter(
		results, func(r artifact.Result) bool {
			if _, ok := seen[r.UUID]; ok {
				return false
			}
			seen[r.UUID] = struct{}{}

			return true
		},
	)

	report := Report{Results: unique}
	report.Stats = Stats{
		Tests:   len(unique),
		Passed:  slice.Count(unique, byStatus(artifact.StatusPass)),
		Failed:  slice.Count(unique, byStatus(artifact.StatusFail)),
		Skipped: slice.Count(unique, byStatus(artifact.StatusSkip)),
		Broken:  slice.Count(unique, byStatus(artifact.StatusBroken)),
	}

	for idx, r := range unique {
		if idx == 0 || r.Start < report.Stats.Start {
			report.Stats.Start = r.Start
		}
		if r.Stop > report.Stats.Stop {
			report.Stats.Stop = r.Stop
		}
	}
	report.Stats.Duration = report.Stats.Stop - report.Stats.Start

	return report
}

func byStatus(status string) func(artifact.Result) bool {
	return func(r artifact.Result) bool {
		return r.Status == status
	}
}

// Encode writes r as indented JSON.
func Encode(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("json.Encoder.Encode: %w", err)
	}

	return nil
}

// Write persists r at pth, creating parent directories.
func Write(pth string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(pth), os.ModePerm); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return err
	}

	if err := os.WriteFile(pth, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("os.WriteFile %s: %w", pth, err)
	}

	return nil
}

// Read loads a merged report written by Write.
func Read(pth string) (Report, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return Report{}, fmt.Errorf("os.ReadFile: %w", err)
	}

	var r Report
	if err = json.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("decode merged report %s: %w", pth, err)
	}

	return r, nil
}

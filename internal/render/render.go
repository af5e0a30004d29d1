// Package render turns a merged report into a standalone HTML page.
package render

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/robotomize/loginsuite/internal/artifact"
	"github.com/robotomize/loginsuite/internal/merge"
)

const (
	DefaultReportDir      = "reports"
	DefaultReportFilename = "final-report"
	DefaultTitle          = "Test Report"
)

//go:embed templates/report.html
var reportHTML []byte

var reportTemplate = pongo2.Must(pongo2.FromBytes(reportHTML))

type Options struct {
	ReportDir      string
	ReportFilename string
	Title          string
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ReportDir == "" {
		o.ReportDir = DefaultReportDir
	}
	if o.ReportFilename == "" {
		o.ReportFilename = DefaultReportFilename
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

// Path returns the file Render writes to.
func (o Options) Path() string {
	o = o.withDefaults()

	return filepath.Join(o.ReportDir, o.ReportFilename+".html")
}

// Row is one line of the results table: a test at depth 0 or one of its
// steps below it.
type Row struct {
	Depth    int
	Indent   int
	Name     string
	FullName string
	Status   string
	Duration string
	Output   string
}

// Render writes report as HTML and returns the written path.
func Render(report merge.Report, opts Options) (string, error) {
	opts = opts.withDefaults()

	out, err := Execute(report, opts)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(opts.ReportDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("os.MkdirAll: %w", err)
	}

	pth := opts.Path()
	if err = os.WriteFile(pth, out, 0o644); err != nil {
		return "", fmt.Errorf("os.WriteFile %s: %w", pth, err)
	}

	return pth, nil
}

// Execute renders report without touching the file system.
func Execute(report merge.Report, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	ctx := pongo2.Context{
		"title":     opts.Title,
		"generated": opts.Now().UTC().Format(time.RFC1123),
		"stats":     report.Stats,
		"pass_rate": fmt.Sprintf("%.1f%%", report.Stats.PassRate()),
		"duration":  formatDuration(report.Stats.Duration),
		"rows":      Rows(report.Results),
	}

	out, err := reportTemplate.ExecuteBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}

	return out, nil
}

// Rows flattens results and their nested steps in display order. Output is
// kept only for failed and broken entries.
func Rows(results []artifact.Result) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			Name:     r.Name,
			FullName: r.FullName,
			Status:   r.Status,
			Duration: formatDuration(r.Stop - r.Start),
			Indent:   indent(0),
		}
		if artifact.Failed(r.Status) {
			row.Output = r.Output
		}

		rows = append(rows, row)
		rows = appendSteps(rows, r.Steps, 1)
	}

	return rows
}

func appendSteps(rows []Row, steps []artifact.Step, depth int) []Row {
	for _, s := range steps {
		row := Row{
			Depth:    depth,
			Indent:   indent(depth),
			Name:     s.Name,
			Status:   s.Status,
			Duration: formatDuration(s.Stop - s.Start),
		}
		if artifact.Failed(s.Status) {
			row.Output = s.Output
		}

		rows = append(rows, row)
		rows = appendSteps(rows, s.Steps, depth+1)
	}

	return rows
}

func indent(depth int) int {
	return 1 + depth*2
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

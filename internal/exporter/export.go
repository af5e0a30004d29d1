package exporter

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/robotomize/loginsuite/internal/artifact"
	"github.com/robotomize/loginsuite/internal/gotest"
)

var hostname string

func init() {
	hostname, _ = os.Hostname()
}

type Report struct {
	Err       error
	OutputLog io.Reader
	Results   []artifact.Result
}

type Option func(options *Options)

type Options struct {
	labels   []artifact.Label
	idFn     func() string
	nowFn    func() time.Time
	noOutput bool
}

// WithLabels adds labels to every exported result.
func WithLabels(labels ...artifact.Label) Option {
	return func(options *Options) {
		options.labels = append(options.labels, labels...)
	}
}

// WithIDFunc replaces uuid generation, tests use it for stable ids.
func WithIDFunc(fn func() string) Option {
	return func(options *Options) {
		options.idFn = fn
	}
}

// WithoutOutput drops captured output of passed tests from the artifacts.
func WithoutOutput() Option {
	return func(options *Options) {
		options.noOutput = true
	}
}

// New returns an exporter for a parsed test set.
func New(set gotest.Set, opts ...Option) *Exporter {
	e := Exporter{
		set: set,
		opts: Options{
			idFn:  func() string { return uuid.New().String() },
			nowFn: time.Now,
		},
	}

	for _, o := range opts {
		o(&e.opts)
	}

	return &e
}

type Exporter struct {
	opts Options
	set  gotest.Set
}

// Export converts each top-level test into one result; subtests become steps.
func (e *Exporter) Export() Report {
	const sampleBufferSize = 4096

	logBuf := bytes.NewBuffer(make([]byte, 0, sampleBufferSize))
	result := Report{
		Err:       e.set.Err,
		OutputLog: logBuf,
		Results:   make([]artifact.Result, 0, len(e.set.Tests)+len(e.set.FailedPackages)),
	}

	hashFn := md5.New()
	hasher := func(b []byte) []byte {
		hashFn.Reset()
		hashFn.Write(b)

		return hashFn.Sum(nil)
	}

	for _, testCase := range e.set.Tests {
		goTest := testCase.Value
		e.fixStop(&goTest)

		res := artifact.Result{
			UUID:     e.opts.idFn(),
			Name:     goTest.Name,
			FullName: goTest.FullName(),
			Status:   convertStatus(goTest),
			Stage:    artifact.StageFinished,
			Steps:    make([]artifact.Step, 0, len(testCase.Children)),
			Start:    goTest.Start.UnixMilli(),
			Stop:     goTest.Stop.UnixMilli(),
			Labels:   e.labels(goTest.Package, goTest.Name),
		}

		testCaseID := hasher([]byte(res.FullName))
		res.TestCaseID = hex.EncodeToString(testCaseID)
		res.HistoryID = hex.EncodeToString(hasher(testCaseID))
		res.Output = e.output(res.Status, testCase.Log)

		for _, child := range testCase.Children {
			res.Steps = append(res.Steps, e.step(child))
		}

		result.Results = append(result.Results, res)
		logBuf.Write(testCase.Log)
	}

	for _, pkg := range e.set.FailedPackages {
		now := e.opts.nowFn().UnixMilli()
		fullName := pkg + "/[setup]"
		testCaseID := hasher([]byte(fullName))

		result.Results = append(
			result.Results, artifact.Result{
				UUID:       e.opts.idFn(),
				TestCaseID: hex.EncodeToString(testCaseID),
				HistoryID:  hex.EncodeToString(hasher(testCaseID)),
				Name:       "[setup]",
				FullName:   fullName,
				Status:     artifact.StatusBroken,
				Stage:      artifact.StageFinished,
				Steps:      make([]artifact.Step, 0),
				Start:      now,
				Stop:       now,
				Labels:     e.labels(pkg, "[setup]"),
				Output:     fmt.Sprintf("package %s failed before running any test", pkg),
			},
		)
	}

	return result
}

func (e *Exporter) step(testCase gotest.NestedTest) artifact.Step {
	goTest := testCase.Value
	e.fixStop(&goTest)

	st := artifact.Step{
		Name:   goTest.ShortName(),
		Status: convertStatus(goTest),
		Stage:  artifact.StageFinished,
		Start:  goTest.Start.UnixMilli(),
		Stop:   goTest.Stop.UnixMilli(),
		Steps:  make([]artifact.Step, 0, len(testCase.Children)),
	}
	st.Output = e.output(st.Status, testCase.Log)

	for _, child := range testCase.Children {
		st.Steps = append(st.Steps, e.step(child))
	}

	return st
}

func (e *Exporter) fixStop(goTest *gotest.Test) {
	if goTest.Stop.Before(goTest.Start) {
		goTest.Stop = e.opts.nowFn()
	}
}

func (e *Exporter) output(status string, log []byte) string {
	if e.opts.noOutput && !artifact.Failed(status) {
		return ""
	}

	return string(log)
}

func (e *Exporter) labels(pkg, name string) []artifact.Label {
	labels := []artifact.Label{
		{Name: "package", Value: pkg},
		{Name: "testMethod", Value: name},
		{Name: "language", Value: "golang"},
		{Name: "go-version", Value: runtime.Version()},
		{Name: "host", Value: hostname},
	}

	return append(labels, e.opts.labels...)
}

func convertStatus(goTest gotest.Test) string {
	var status string
	switch goTest.Status {
	case gotest.ActionSkip:
		status = artifact.StatusSkip
	case gotest.ActionFail:
		if goTest.Panicked() {
			status = artifact.StatusBroken
			break
		}
		status = artifact.StatusFail
	case gotest.ActionPass:
		status = artifact.StatusPass
	default:
		status = artifact.StatusBroken
	}

	return status
}

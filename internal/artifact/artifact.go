// Package artifact defines the test result document written once per
// top-level test of a scenario run.
package artifact

import (
	"time"
)

const StageFinished = "finished"

const (
	StatusPass   = "passed"
	StatusFail   = "failed"
	StatusSkip   = "skipped"
	StatusBroken = "broken"
)

// FileSuffix ends every artifact file name. Names are "<uuid>-result.json",
// so concurrent writers never collide.
const FileSuffix = "-result.json"

// FileName returns the artifact file name for the given result id.
func FileName(uuid string) string {
	return uuid + FileSuffix
}

type Result struct {
	UUID        string  `json:"uuid"`
	TestCaseID  string  `json:"testCaseId"`
	HistoryID   string  `json:"historyId"`
	Name        string  `json:"name"`
	FullName    string  `json:"fullName"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	Stage       string  `json:"stage"`
	Steps       []Step  `json:"steps"`
	Start       int64   `json:"start"`
	Stop        int64   `json:"stop"`
	Labels      []Label `json:"labels"`
	Output      string  `json:"output,omitempty"`
}

// Duration is the wall time between start and stop.
func (r Result) Duration() time.Duration {
	return time.Duration(r.Stop-r.Start) * time.Millisecond
}

// Label returns the value of the first label with the given name.
func (r Result) Label(name string) (string, bool) {
	for _, l := range r.Labels {
		if l.Name == name {
			return l.Value, true
		}
	}

	return "", false
}

type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
	Steps  []Step `json:"steps"`
	Start  int64  `json:"start"`
	Stop   int64  `json:"stop"`
	Output string `json:"output,omitempty"`
}

type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Failed reports whether status counts as a failure for exit codes.
func Failed(status string) bool {
	return status == StatusFail || status == StatusBroken
}

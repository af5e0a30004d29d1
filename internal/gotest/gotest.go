package gotest

import (
	"strings"
	"time"
)

const (
	ActionStart  = "start"
	ActionOutput = "output"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionRun    = "run"
	ActionCont   = "cont"
	ActionPause  = "pause"
	ActionSkip   = "skip"
	ActionPanic  = "panic"
)

// Entry is one line of `go test -json` output.
type Entry struct {
	Time     time.Time
	TestName string `json:"Test"`
	Action   string
	Package  string
	Elapsed  float64
	Output   string
}

type Test struct {
	Name    string
	Package string
	Stage   string
	Start   time.Time
	Stop    time.Time
	Status  string
	Elapsed time.Duration
	Output  []string
}

func (t *Test) FullName() string {
	return t.Package + "/" + t.Name
}

// Parent returns the name of the enclosing test, or "" for a top-level test.
func (t *Test) Parent() string {
	idx := strings.LastIndex(t.Name, "/")
	if idx < 0 {
		return ""
	}

	return t.Name[:idx]
}

// ShortName is the last path element of a subtest name.
func (t *Test) ShortName() string {
	return t.Name[strings.LastIndex(t.Name, "/")+1:]
}

func (t *Test) Update(row Entry) {
	switch row.Action {
	case ActionCont:
		t.Stage = ActionCont
	case ActionSkip, ActionFail, ActionPass:
		t.Stop = row.Time
		t.Status = row.Action
		t.Stage = row.Action
		t.Elapsed = t.Stop.Sub(t.Start)
		if row.Elapsed > 0 {
			t.Elapsed = time.Duration(row.Elapsed * float64(time.Second))
		}
	case ActionOutput:
		t.Output = append(t.Output, row.Output)
	case ActionPause:
		t.Stage = ActionPause
	case ActionRun:
		t.Start = row.Time
		t.Stage = ActionRun
	}
}

// Panicked reports whether the captured output holds a panic trace.
func (t *Test) Panicked() bool {
	for _, line := range t.Output {
		if strings.HasPrefix(strings.TrimSpace(line), "panic:") {
			return true
		}
	}

	return false
}

package gotest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single JSON event; browser tests log long lines.
const maxLineSize = 4 << 20

type NestedTest struct {
	Value    Test
	Children []NestedTest
	Log      []byte
}

// Set is the parsed content of a `go test -json` stream.
type Set struct {
	// Err joins per-line decode errors; a partially broken stream still yields tests.
	Err   error
	Tests []NestedTest
	// FailedPackages lists packages that failed without any test running,
	// e.g. on a build error.
	FailedPackages []string
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &Reader{r: scanner}
}

type Reader struct {
	r *bufio.Scanner
}

type node struct {
	test     *Test
	children []*node
}

func (r *Reader) ReadAll(ctx context.Context) (Set, error) {
	var errs []error

	nodes := make(map[string]*node)
	roots := make([]*node, 0)
	pkgTests := make(map[string]int)
	pkgStatus := make(map[string]string)
	pkgOrder := make([]string, 0)

	var lookup func(pkg, name string) *node
	lookup = func(pkg, name string) *node {
		key := pkg + "/" + name
		if n, ok := nodes[key]; ok {
			return n
		}

		n := &node{test: &Test{Name: name, Package: pkg}}
		nodes[key] = n
		pkgTests[pkg]++

		if parent := n.test.Parent(); parent != "" {
			p := lookup(pkg, parent)
			p.children = append(p.children, n)
		} else {
			roots = append(roots, n)
		}

		return n
	}

	lineNum := 0
	for r.r.Scan() {
		select {
		case <-ctx.Done():
			return Set{}, ctx.Err()
		default:
		}

		lineNum++
		line := bytes.TrimSpace(r.r.Bytes())
		if len(line) == 0 {
			continue
		}

		var row Entry
		if err := json.Unmarshal(line, &row); err != nil {
			errs = append(errs, fmt.Errorf("line %d: json.Unmarshal: %w", lineNum, err))
			continue
		}

		if row.TestName == "" {
			if row.Package != "" {
				if _, ok := pkgStatus[row.Package]; !ok {
					pkgOrder = append(pkgOrder, row.Package)
				}
				if row.Action == ActionPass || row.Action == ActionFail || row.Action == ActionSkip {
					pkgStatus[row.Package] = row.Action
				} else if _, ok := pkgStatus[row.Package]; !ok {
					pkgStatus[row.Package] = ""
				}
			}
			continue
		}

		lookup(row.Package, row.TestName).test.Update(row)
	}

	if err := r.r.Err(); err != nil {
		return Set{}, fmt.Errorf("bufio.Scanner: %w", err)
	}

	result := Set{
		Err:   errors.Join(errs...),
		Tests: make([]NestedTest, 0, len(roots)),
	}

	for _, pkg := range pkgOrder {
		if pkgStatus[pkg] == ActionFail && pkgTests[pkg] == 0 {
			result.FailedPackages = append(result.FailedPackages, pkg)
		}
	}

	for _, n := range roots {
		result.Tests = append(result.Tests, walk(n))
	}

	return result, nil
}

// walk converts the tree below n. Log keeps only the test's own output lines.
func walk(n *node) NestedTest {
	var log strings.Builder
	for _, line := range n.test.Output {
		log.WriteString(line)
	}

	tc := NestedTest{Value: *n.test}
	for _, child := range n.children {
		tc.Children = append(tc.Children, walk(child))
	}

	tc.Log = []byte(log.String())

	return tc
}

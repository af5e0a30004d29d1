package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/robotomize/loginsuite/internal/artifact"
)

type WriterOption func(*Writer)

// WriteToDir sets the artifact directory.
func WriteToDir(pth string) WriterOption {
	return func(w *Writer) {
		w.pth = pth
	}
}

// WriteReportTo echoes every encoded result to the given writers as well.
func WriteReportTo(writers ...io.Writer) WriterOption {
	return func(w *Writer) {
		w.reportWriters = append(w.reportWriters, writers...)
	}
}

func NewWriter(opts ...WriterOption) *Writer {
	w := Writer{reportWriters: []io.Writer{io.Discard}}
	for _, o := range opts {
		o(&w)
	}

	return &w
}

type Writer struct {
	pth           string
	reportWriters []io.Writer
}

// WriteResults writes one artifact file per result and returns their paths.
func (o *Writer) WriteResults(ctx context.Context, results []artifact.Result) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(o.pth) > 0 {
		if err := mkdir(o.pth); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(results))
	for _, res := range results {
		pth, err := o.writeResult(res)
		if err != nil {
			return paths, fmt.Errorf("writeResult %s: %w", res.Name, err)
		}
		if pth != "" {
			paths = append(paths, pth)
		}
	}

	return paths, nil
}

// writeResult encodes one result. Files are created exclusively: an artifact
// is never overwritten once written.
func (o *Writer) writeResult(res artifact.Result) (pth string, err error) {
	writers := make([]io.Writer, len(o.reportWriters))
	copy(writers, o.reportWriters)

	if o.pth != "" {
		pth = filepath.Join(o.pth, artifact.FileName(res.UUID))
		file, openErr := os.OpenFile(pth, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if openErr != nil {
			return "", fmt.Errorf("os.OpenFile: %w", openErr)
		}

		defer func() {
			if syncErr := file.Sync(); syncErr != nil && err == nil {
				err = fmt.Errorf("file Sync: %w", syncErr)
			}

			_ = file.Close()
		}()

		writers = append(writers, file)
	}

	if encErr := json.NewEncoder(io.MultiWriter(writers...)).Encode(res); encErr != nil {
		return "", fmt.Errorf("json.NewEncoder.Encode: %w", encErr)
	}

	return pth, nil
}

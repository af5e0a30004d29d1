package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "test_defaults", opts: NewOptions()},
		{name: "test_json_debug", opts: Options{Level: "debug", Format: "json"}},
		{name: "test_bad_level", opts: Options{Level: "loud", Format: "json"}, wantErr: true},
		{name: "test_bad_format", opts: Options{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				if err := tc.opts.Validate(); (err != nil) != tc.wantErr {
					t.Errorf("got: %v, want error: %v", err, tc.wantErr)
				}
			},
		)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	t.Parallel()

	pth := filepath.Join(t.TempDir(), "suite.log")
	logger, err := New(Options{Level: "info", Format: "json", OutputPaths: []string{pth}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("report merged")
	_ = logger.Sync()

	b, err := os.ReadFile(pth)
	if err != nil {
		t.Fatalf("os.ReadFile: %v", err)
	}

	if !strings.Contains(string(b), `"msg":"report merged"`) {
		t.Errorf("log line missing: %s", b)
	}

	if strings.Contains(string(b), "hidden") {
		t.Errorf("debug line written at info level: %s", b)
	}
}

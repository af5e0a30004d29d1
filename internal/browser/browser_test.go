package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigFromEnv(t *testing.T) {
	testCases := []struct {
		name     string
		env      map[string]string
		expected Config
		wantErr  bool
	}{
		{
			name: "test_defaults",
			expected: Config{
				BaseURL:       DefaultBaseURL,
				Headless:      true,
				Timeout:       DefaultTimeout,
				Screenshots:   true,
				ScreenshotDir: "test-results/screenshots",
				Fixtures:      DefaultFixtures,
			},
		},
		{
			name: "test_overrides",
			env: map[string]string{
				"E2E_BASE_URL":                "http://localhost:8080/",
				"E2E_HEADLESS":                "false",
				"E2E_SLOW_MO":                 "250ms",
				"E2E_TIMEOUT":                 "3s",
				"E2E_SCREENSHOTS":             "false",
				"E2E_PLAYWRIGHT_PREINSTALLED": "true",
				"E2E_FIXTURES":                "users.yaml",
				"E2E_RESET_URL":               "http://localhost:8080/testing/reset",
				"E2E_EMBEDDED":                "1",
			},
			expected: Config{
				BaseURL:       "http://localhost:8080",
				SlowMo:        250 * time.Millisecond,
				Timeout:       3 * time.Second,
				ScreenshotDir: "test-results/screenshots",
				Preinstalled:  true,
				Fixtures:      "users.yaml",
				ResetURL:      "http://localhost:8080/testing/reset",
				Embedded:      true,
			},
		},
		{
			name:    "test_bad_timeout",
			env:     map[string]string{"E2E_TIMEOUT": "0s"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				for k, v := range tc.env {
					t.Setenv(k, v)
				}

				cfg, err := ConfigFromEnv()
				if (err != nil) != tc.wantErr {
					t.Fatalf("ConfigFromEnv() error = %v, wantErr %v", err, tc.wantErr)
				}

				if tc.wantErr {
					return
				}

				if diff := cmp.Diff(tc.expected, cfg); diff != "" {
					t.Errorf("mismatch (-want, +got):\n%s", diff)
				}
			},
		)
	}
}

func TestSession_WaitForAlert(t *testing.T) {
	t.Parallel()

	s := New(Config{Timeout: 2 * time.Second})

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.record("Welcome back")
		s.record("Invalid password")
	}()

	msg, err := s.WaitForAlert(context.Background(), "Invalid")
	if err != nil {
		t.Fatalf("WaitForAlert: %v", err)
	}

	if msg != "Invalid password" {
		t.Errorf("got %q, want %q", msg, "Invalid password")
	}

	if diff := cmp.Diff([]string{"Welcome back", "Invalid password"}, s.Alerts()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestSession_WaitForAlert_Timeout(t *testing.T) {
	t.Parallel()

	s := New(Config{Timeout: 50 * time.Millisecond})
	s.record("User not found")

	_, err := s.WaitForAlert(context.Background(), "Invalid password")
	if !errors.Is(err, ErrNoAlert) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want ErrNoAlert after the deadline", err)
	}
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/testing/reset" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				calls.Add(1)
				w.WriteHeader(http.StatusNoContent)
			},
		),
	)
	defer ts.Close()

	if err := New(Config{}).Reset(context.Background()); err != nil {
		t.Fatalf("Reset without url: %v", err)
	}

	if err := New(Config{ResetURL: ts.URL + "/testing/reset"}).Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if err := New(Config{ResetURL: ts.URL + "/missing"}).Reset(context.Background()); err == nil {
		t.Fatal("expected an error for a 404 answer")
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("reset calls = %d, want 1", got)
	}
}

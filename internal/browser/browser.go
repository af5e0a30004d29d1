// Package browser drives one Chromium page through playwright for a single
// scenario: navigation, the login form, native validation state and the
// alerts the application raises.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/robotomize/loginsuite/internal/scenario"
)

var ErrNoAlert = errors.New("browser: alert not raised")

type Session struct {
	cfg Config

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	mu     sync.Mutex
	alerts []string
	raised chan struct{}
}

func New(cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Session{cfg: cfg, raised: make(chan struct{}, 1)}
}

// Setup starts the driver and opens a fresh page. Every dialog the page
// opens is recorded and accepted.
func (s *Session) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runOpts := &playwright.RunOptions{Browsers: []string{"chromium"}}
	if !s.cfg.Preinstalled {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("playwright.Install: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("playwright.Run: %w", err)
	}
	s.pw = pw

	s.browser, err = pw.Chromium.Launch(
		playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(s.cfg.Headless),
			SlowMo:   playwright.Float(float64(s.cfg.SlowMo.Milliseconds())),
		},
	)
	if err != nil {
		return fmt.Errorf("chromium.Launch: %w", err)
	}

	s.context, err = s.browser.NewContext(
		playwright.BrowserNewContextOptions{
			BaseURL:  playwright.String(s.cfg.BaseURL),
			Viewport: &playwright.Size{Width: 1280, Height: 720},
		},
	)
	if err != nil {
		return fmt.Errorf("browser.NewContext: %w", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		return fmt.Errorf("context.NewPage: %w", err)
	}

	s.page.SetDefaultTimeout(float64(s.cfg.Timeout.Milliseconds()))
	s.page.OnDialog(
		func(d playwright.Dialog) {
			s.record(d.Message())
			_ = d.Accept()
		},
	)

	return nil
}

func (s *Session) record(msg string) {
	s.mu.Lock()
	s.alerts = append(s.alerts, msg)
	s.mu.Unlock()

	select {
	case s.raised <- struct{}{}:
	default:
	}
}

// Alerts returns the dialog messages seen so far, oldest first.
func (s *Session) Alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.alerts...)
}

// ClearAlerts forgets the alerts recorded so far.
func (s *Session) ClearAlerts() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
}

func (s *Session) findAlert(substr string) (string, bool) {
	for _, msg := range s.Alerts() {
		if strings.Contains(msg, substr) {
			return msg, true
		}
	}

	return "", false
}

// WaitForAlert blocks until an alert containing substr has been raised, the
// configured timeout elapses or ctx is done.
func (s *Session) WaitForAlert(ctx context.Context, substr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	for {
		if msg, ok := s.findAlert(substr); ok {
			return msg, nil
		}

		select {
		case <-s.raised:
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %q, seen %q: %w", ErrNoAlert, substr, s.Alerts(), ctx.Err())
		}
	}
}

func (s *Session) Visit(route string) error {
	if _, err := s.page.Goto(route); err != nil {
		return fmt.Errorf("page.Goto %s: %w", route, err)
	}

	return nil
}

func (s *Session) URL() string {
	return s.page.URL()
}

func (s *Session) Reload() error {
	if _, err := s.page.Reload(); err != nil {
		return fmt.Errorf("page.Reload: %w", err)
	}

	return nil
}

// Contains waits for text to be visible somewhere on the page.
func (s *Session) Contains(text string) error {
	err := s.page.GetByText(text).First().WaitFor(
		playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible},
	)
	if err != nil {
		return fmt.Errorf("page text %q: %w", text, err)
	}

	return nil
}

func (s *Session) Click(selector string) error {
	if err := s.page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}

	return nil
}

// LoginWithUI fills the form and submits it. Empty values leave the field
// untouched so native validation can reject the submission.
func (s *Session) LoginWithUI(username, password string) error {
	if username != "" {
		if err := s.page.Locator(scenario.FieldEmail).Fill(username); err != nil {
			return fmt.Errorf("fill %s: %w", scenario.FieldEmail, err)
		}
	}

	if password != "" {
		if err := s.page.Locator(scenario.FieldPassword).Fill(password); err != nil {
			return fmt.Errorf("fill %s: %w", scenario.FieldPassword, err)
		}
	}

	if err := s.page.Locator(scenario.SubmitButton).Click(); err != nil {
		return fmt.Errorf("click %s: %w", scenario.SubmitButton, err)
	}

	return nil
}

// ValidationMessage returns the browser's native validation message of the
// input matched by selector.
func (s *Session) ValidationMessage(selector string) (string, error) {
	v, err := s.page.Locator(selector).Evaluate("el => el.validationMessage", nil)
	if err != nil {
		return "", fmt.Errorf("validationMessage %s: %w", selector, err)
	}

	msg, _ := v.(string)

	return msg, nil
}

// InvalidCount counts elements matching selector that fail constraint
// validation.
func (s *Session) InvalidCount(selector string) (int, error) {
	n, err := s.page.Locator(selector + ":invalid").Count()
	if err != nil {
		return 0, fmt.Errorf("count %s:invalid: %w", selector, err)
	}

	return n, nil
}

// KeyboardLogin submits the form without the mouse: type the username, Tab
// to the password field, type it and press Enter.
func (s *Session) KeyboardLogin(username, password string) error {
	if err := s.page.Locator(scenario.FieldEmail).Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", scenario.FieldEmail, err)
	}

	kb := s.page.Keyboard()
	if err := kb.Type(username); err != nil {
		return fmt.Errorf("keyboard.Type: %w", err)
	}

	if err := kb.Press("Tab"); err != nil {
		return fmt.Errorf("keyboard.Press Tab: %w", err)
	}

	focused, err := s.page.Evaluate("() => document.activeElement && document.activeElement.id")
	if err != nil {
		return fmt.Errorf("page.Evaluate: %w", err)
	}

	if want := strings.TrimPrefix(scenario.FieldPassword, "#"); focused != want {
		return fmt.Errorf("tab moved focus to %v, want %s", focused, want)
	}

	if err = kb.Type(password); err != nil {
		return fmt.Errorf("keyboard.Type: %w", err)
	}

	if err = kb.Press("Enter"); err != nil {
		return fmt.Errorf("keyboard.Press Enter: %w", err)
	}

	return nil
}

func (s *Session) CheckRemember() error {
	if err := s.page.Locator(scenario.FieldRemember).Check(); err != nil {
		return fmt.Errorf("check %s: %w", scenario.FieldRemember, err)
	}

	return nil
}

// ClearCookies drops every cookie of the browser context.
func (s *Session) ClearCookies() error {
	if err := s.context.ClearCookies(); err != nil {
		return fmt.Errorf("context.ClearCookies: %w", err)
	}

	return nil
}

// Reset asks the application to restore its seed accounts. It is a no-op
// without a reset URL.
func (s *Session) Reset(ctx context.Context) error {
	if s.cfg.ResetURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ResetURL, nil)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reset %s: %w", s.cfg.ResetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("reset %s: unexpected status %s", s.cfg.ResetURL, resp.Status)
	}

	return nil
}

var screenshotName = strings.NewReplacer("/", "_", " ", "_", "#", "")

// TearDown captures the page when t failed, then closes everything Setup
// opened.
func (s *Session) TearDown(t testing.TB) {
	t.Helper()

	if t.Failed() && s.cfg.Screenshots && s.page != nil {
		pth := filepath.Join(
			s.cfg.ScreenshotDir, fmt.Sprintf("%s_%d.png", screenshotName.Replace(t.Name()), time.Now().Unix()),
		)
		if err := os.MkdirAll(filepath.Dir(pth), 0o755); err == nil {
			if _, err = s.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(pth)}); err != nil {
				t.Logf("screenshot: %v", err)
			} else {
				t.Logf("screenshot saved to %s", pth)
			}
		}
	}

	if s.page != nil {
		_ = s.page.Close()
	}

	if s.context != nil {
		_ = s.context.Close()
	}

	if s.browser != nil {
		_ = s.browser.Close()
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			t.Logf("playwright.Stop: %v", err)
		}
	}
}

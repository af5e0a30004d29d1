//go:build e2e

package e2e

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotomize/loginsuite/internal/browser"
	"github.com/robotomize/loginsuite/internal/fixture"
	"github.com/robotomize/loginsuite/internal/scenario"
)

func user(t *testing.T, name string) fixture.User {
	t.Helper()

	u, err := users.Get(name)
	require.NoError(t, err)

	return u
}

func path(t *testing.T, s *browser.Session) string {
	t.Helper()

	u, err := url.Parse(s.URL())
	require.NoError(t, err)

	return u.Path
}

// play visits the scenario route, submits its credentials and asserts the
// expected outcome.
func play(t *testing.T, s *browser.Session, sc scenario.Scenario) {
	t.Helper()

	require.NoError(t, s.Visit(sc.Route))
	s.ClearAlerts()
	require.NoError(t, s.LoginWithUI(sc.Credentials.Username, sc.Credentials.Password))

	switch sc.Expect.Kind {
	case scenario.ExpectWelcome:
		require.NoError(t, s.Contains(sc.Expect.Text))
		assert.Equal(t, scenario.RouteHome, path(t, s))
	case scenario.ExpectAlert:
		msg, err := s.WaitForAlert(context.Background(), sc.Expect.Text)
		require.NoError(t, err)
		assert.Contains(t, msg, sc.Expect.Text)
	case scenario.ExpectValidation:
		msg, err := s.ValidationMessage(sc.Expect.Field)
		require.NoError(t, err)
		assert.Equal(t, sc.Expect.Text, msg)

		n, err := s.InvalidCount(sc.Expect.Field)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "%s should fail constraint validation", sc.Expect.Field)

		assert.Equal(t, scenario.RouteLogin, path(t, s), "form must not be submitted")
		assert.Empty(t, s.Alerts(), "no alert expected before submission")
	default:
		t.Fatalf("unknown expectation %s", sc.Expect.Kind)
	}
}

func TestValidLogin(t *testing.T) {
	sc := scenario.ValidLogin(user(t, fixture.ValidUser))

	t.Run(
		sc.Name, func(t *testing.T) {
			play(t, newSession(t), sc)
		},
	)
}

func TestInvalidLogin(t *testing.T) {
	rejected, err := scenario.InvalidLogin(users)
	require.NoError(t, err)

	validation, err := scenario.Validation(users)
	require.NoError(t, err)

	for _, sc := range append(rejected, validation...) {
		sc := sc
		t.Run(
			sc.Name, func(t *testing.T) {
				play(t, newSession(t), sc)
			},
		)
	}
}

func TestSessionManagement(t *testing.T) {
	valid := user(t, fixture.ValidUser)

	t.Run(
		"logs out successfully", func(t *testing.T) {
			s := newSession(t)
			play(t, s, scenario.ValidLogin(valid))

			s.ClearAlerts()
			require.NoError(t, s.Click(scenario.LogoutLink))

			_, err := s.WaitForAlert(context.Background(), scenario.AlertLoggedOut)
			require.NoError(t, err)
			assert.Equal(t, scenario.RouteLogin, path(t, s))

			require.NoError(t, s.Visit(scenario.RouteHome))
			assert.Equal(t, scenario.RouteLogin, path(t, s), "home must require a session after logout")
		},
	)

	t.Run(
		"remembers the user when remember me is checked", func(t *testing.T) {
			s := newSession(t)
			require.NoError(t, s.Visit(scenario.RouteLogin))
			require.NoError(t, s.CheckRemember())
			require.NoError(t, s.LoginWithUI(valid.Username, valid.Password))
			require.NoError(t, s.Contains(scenario.WelcomeText(valid.Username)))

			require.NoError(t, s.Reload())
			require.NoError(t, s.Contains(scenario.WelcomeText(valid.Username)))

			require.NoError(t, s.Visit(scenario.RouteHome))
			require.NoError(t, s.Contains(scenario.WelcomeText(valid.Username)))
			assert.Equal(t, scenario.RouteHome, path(t, s))
		},
	)

	t.Run(
		"forgets the user once cookies are cleared", func(t *testing.T) {
			s := newSession(t)
			play(t, s, scenario.ValidLogin(valid))

			require.NoError(t, s.ClearCookies())
			require.NoError(t, s.Visit(scenario.RouteHome))
			assert.Equal(t, scenario.RouteLogin, path(t, s))
		},
	)
}

func TestUIAccessibility(t *testing.T) {
	valid := user(t, fixture.ValidUser)

	t.Run(
		"supports keyboard navigation", func(t *testing.T) {
			s := newSession(t)
			require.NoError(t, s.Visit(scenario.RouteLogin))
			require.NoError(t, s.KeyboardLogin(valid.Username, valid.Password))
			require.NoError(t, s.Contains(scenario.WelcomeText(valid.Username)))
		},
	)
}

func TestPasswordManagement(t *testing.T) {
	t.Run(
		"redirects password reset to the login page", func(t *testing.T) {
			s := newSession(t)
			require.NoError(t, s.Visit(scenario.RouteReset))

			_, err := s.WaitForAlert(context.Background(), scenario.AlertResetUnavailable)
			require.NoError(t, err)
			assert.Equal(t, scenario.RouteLogin, path(t, s))
		},
	)
}

// TestLoginLockout shares one page and the application's failure counter
// across its steps, in order.
func TestLoginLockout(t *testing.T) {
	lockout := user(t, fixture.LockoutUser)

	s := newSession(t)
	require.NoError(t, s.Reset(context.Background()))
	t.Cleanup(
		func() {
			if err := s.Reset(context.Background()); err != nil {
				t.Logf("reset after lockout: %v", err)
			}
		},
	)

	for _, sc := range scenario.LockoutSequence(lockout.Username, scenario.LockoutThreshold) {
		sc := sc
		t.Run(
			sc.Name, func(t *testing.T) {
				play(t, s, sc)
			},
		)
	}
}

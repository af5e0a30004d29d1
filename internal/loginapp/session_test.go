package loginapp

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared with the handler goroutines.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(now time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSessions(t *testing.T, secret string) (*Sessions, *clock) {
	t.Helper()

	m, err := NewSessions(secret, 5*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	clk := newClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	m.nowFn = clk.Now

	return m, clk
}

func TestSessions_IssueParse(t *testing.T) {
	t.Parallel()

	m, clk := newTestSessions(t, "test-secret")

	raw, err := m.Issue(Session{Email: "admin@example.com", Role: "admin", Token: "t1"})
	require.NoError(t, err)

	clk.Add(4 * time.Minute)
	got, err := m.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", got.Email)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, "t1", got.Token)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.LastActivity.UTC())
}

func TestSessions_Inactivity(t *testing.T) {
	t.Parallel()

	m, clk := newTestSessions(t, "test-secret")

	raw, err := m.Issue(Session{Email: "admin@example.com"})
	require.NoError(t, err)

	clk.Add(6 * time.Minute)
	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessions_Tampered(t *testing.T) {
	t.Parallel()

	m, _ := newTestSessions(t, "test-secret")
	other, _ := newTestSessions(t, "other-secret")

	raw, err := other.Issue(Session{Email: "admin@example.com"})
	require.NoError(t, err)

	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessions_Remember(t *testing.T) {
	t.Parallel()

	m, clk := newTestSessions(t, "")

	raw, err := m.Remember("admin@example.com")
	require.NoError(t, err)

	clk.Add(29 * 24 * time.Hour)
	email, err := m.Remembered(raw)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", email)

	clk.Add(2 * 24 * time.Hour)
	_, err = m.Remembered(raw)
	assert.True(t, errors.Is(err, ErrSessionExpired))
}

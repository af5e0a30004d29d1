package loginapp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()

	store, err := NewStore(DefaultAccounts(), append([]StoreOption{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	require.NoError(t, err)

	return store
}

func TestStore_Authenticate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		email    string
		password string
		expected Outcome
	}{
		{name: "test_valid", email: "admin@example.com", password: "Admin123!", expected: OutcomeOK},
		{name: "test_case_insensitive_email", email: " Admin@Example.com ", password: "Admin123!", expected: OutcomeOK},
		{name: "test_wrong_password", email: "admin@example.com", password: "nope", expected: OutcomeWrongPassword},
		{name: "test_unknown", email: "nobody@example.com", password: "Admin123!", expected: OutcomeUnknown},
		{name: "test_inactive_with_right_password", email: "locked@example.com", password: "Locked123!", expected: OutcomeInactive},
		{name: "test_inactive_with_wrong_password", email: "locked@example.com", password: "nope", expected: OutcomeInactive},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()

				login := newTestStore(t).Authenticate(context.Background(), tc.email, tc.password)
				assert.Equal(t, tc.expected, login.Outcome)
			},
		)
	}
}

func TestStore_Lockout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	const email = "lockout@example.com"

	for i := 1; i <= DefaultMaxAttempts; i++ {
		login := store.Authenticate(ctx, email, "wrongpassword")
		require.Equal(t, OutcomeWrongPassword, login.Outcome, "attempt %d", i)
		assert.Equal(t, i, store.Attempts(email))
	}

	login := store.Authenticate(ctx, email, "wrongpassword")
	assert.Equal(t, OutcomeLockedOut, login.Outcome)
	assert.Equal(t, MsgLockedOut, login.Outcome.Message())

	// the lock deactivates the account, even for the right password
	login = store.Authenticate(ctx, email, "Lockout123!")
	assert.Equal(t, OutcomeInactive, login.Outcome)

	_, active := store.Active(email)
	assert.False(t, active)

	require.NoError(t, store.Reset())
	assert.Equal(t, OutcomeOK, store.Authenticate(ctx, email, "Lockout123!").Outcome)
	assert.Equal(t, 0, store.Attempts(email))
}

func TestStore_SuccessResetsAttempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, WithMaxAttempts(2))
	const email = "admin@example.com"

	store.Authenticate(ctx, email, "x")
	require.Equal(t, 1, store.Attempts(email))

	first := store.Authenticate(ctx, email, "Admin123!")
	require.Equal(t, OutcomeOK, first.Outcome)
	assert.Equal(t, 0, store.Attempts(email))
	assert.False(t, first.Replaced)
	assert.NotEmpty(t, first.Token)

	second := store.Authenticate(ctx, email, "Admin123!")
	assert.True(t, second.Replaced)
	assert.NotEqual(t, first.Token, second.Token)

	store.Logout(email)
	assert.False(t, store.Authenticate(ctx, email, "Admin123!").Replaced)
}

func TestStore_FailureDelay(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithFailureDelay(time.Hour))
	const email = "admin@example.com"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delayed := make(chan Outcome, 1)
	go func() {
		delayed <- store.Authenticate(ctx, email, "nope").Outcome
	}()

	assert.Eventually(t, func() bool { return store.Attempts(email) == 1 }, 5*time.Second, 5*time.Millisecond)

	// the delay does not hold the store lock
	assert.Equal(t, OutcomeOK, store.Authenticate(context.Background(), email, "Admin123!").Outcome)

	cancel()
	select {
	case outcome := <-delayed:
		assert.Equal(t, OutcomeWrongPassword, outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("delayed answer ignored cancellation")
	}
}

func TestLoadAccounts(t *testing.T) {
	t.Parallel()

	pth := filepath.Join(t.TempDir(), "accounts.yaml")
	data := []byte("- email: qa@example.com\n  password: secret\n  active: true\n- email: off@example.com\n  password: x\n")
	require.NoError(t, os.WriteFile(pth, data, 0o600))

	accounts, err := LoadAccounts(pth)
	require.NoError(t, err)
	assert.Equal(
		t, []Account{
			{Email: "qa@example.com", Password: "secret", Active: true},
			{Email: "off@example.com", Password: "x"},
		}, accounts,
	)

	_, err = NewStore([]Account{{Password: "x"}}, WithBcryptCost(bcrypt.MinCost))
	assert.Error(t, err)
}

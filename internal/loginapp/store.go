package loginapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const DefaultMaxAttempts = 3

// Account is a seed record of the user store.
type Account struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Active   bool   `yaml:"active"`
}

// DefaultAccounts are served when no seed file is configured. They match the
// records of e2e/testdata/users.json.
func DefaultAccounts() []Account {
	return []Account{
		{Email: "admin@example.com", Password: "Admin123!", Role: "admin", Active: true},
		{Email: "locked@example.com", Password: "Locked123!", Role: "user", Active: false},
		{Email: "lockout@example.com", Password: "Lockout123!", Role: "user", Active: true},
	}
}

// LoadAccounts reads a YAML list of accounts.
func LoadAccounts(pth string) ([]Account, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	var accounts []Account
	if err = yaml.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal %s: %w", pth, err)
	}

	return accounts, nil
}

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnknown
	OutcomeInactive
	OutcomeLockedOut
	OutcomeWrongPassword
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnknown:
		return "unknown_user"
	case OutcomeInactive:
		return "inactive"
	case OutcomeLockedOut:
		return "locked_out"
	case OutcomeWrongPassword:
		return "wrong_password"
	default:
		return "invalid"
	}
}

// Message is the flash text shown for a rejected login.
func (o Outcome) Message() string {
	switch o {
	case OutcomeUnknown:
		return MsgUserNotFound
	case OutcomeInactive:
		return MsgInactive
	case OutcomeLockedOut:
		return MsgLockedOut
	case OutcomeWrongPassword:
		return MsgInvalidPassword
	default:
		return ""
	}
}

const (
	MsgInvalidPassword = "Invalid password"
	MsgUserNotFound    = "User not found"
	MsgInactive        = "Account is locked. Please contact support."
	MsgLockedOut       = "Account is locked due to too many failed attempts."
	MsgLoggedOut       = "You have been logged out"
	MsgReplaced        = "You have been logged out due to another login session"
	MsgTimedOut        = "Session timed out due to inactivity"
	MsgResetPassword   = "Password reset functionality is not implemented yet."
)

// Login is the result of an authentication attempt.
type Login struct {
	Outcome Outcome
	Email   string
	Role    string
	Token   string
	// Replaced is set when the account already held a session token.
	Replaced bool
}

type user struct {
	hash     []byte
	role     string
	active   bool
	attempts int
	token    string
}

type StoreOption func(*Store)

func WithMaxAttempts(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithFailureDelay slows down every wrong password answer.
func WithFailureDelay(d time.Duration) StoreOption {
	return func(s *Store) {
		s.failureDelay = d
	}
}

func WithBcryptCost(cost int) StoreOption {
	return func(s *Store) {
		s.cost = cost
	}
}

// Store is the in-memory account table with the failed attempt counter.
type Store struct {
	mu    sync.Mutex
	users map[string]*user

	seed         []Account
	maxAttempts  int
	failureDelay time.Duration
	cost         int
}

func NewStore(seed []Account, opts ...StoreOption) (*Store, error) {
	s := &Store{
		seed:        seed,
		maxAttempts: DefaultMaxAttempts,
		cost:        bcrypt.DefaultCost,
	}

	for _, o := range opts {
		o(s)
	}

	users, err := s.build()
	if err != nil {
		return nil, err
	}
	s.users = users

	return s, nil
}

func (s *Store) build() (map[string]*user, error) {
	users := make(map[string]*user, len(s.seed))
	for _, a := range s.seed {
		email := normalize(a.Email)
		if email == "" {
			return nil, errors.New("seed account without email")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("bcrypt.GenerateFromPassword %s: %w", email, err)
		}

		role := a.Role
		if role == "" {
			role = "user"
		}

		users[email] = &user{hash: hash, role: role, active: a.Active}
	}

	return users, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate applies the login rules in order: inactive accounts are
// rejected, an account at the attempt limit is locked, then the password is
// checked. A wrong password increments the counter, success resets it.
func (s *Store) Authenticate(ctx context.Context, email, password string) Login {
	email = normalize(email)
	login := s.authenticate(email, password)

	if login.Outcome == OutcomeWrongPassword && s.failureDelay > 0 {
		t := time.NewTimer(s.failureDelay)
		defer t.Stop()

		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}

	return login
}

func (s *Store) authenticate(email, password string) Login {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return Login{Outcome: OutcomeUnknown, Email: email}
	}

	if !u.active {
		return Login{Outcome: OutcomeInactive, Email: email}
	}

	if u.attempts >= s.maxAttempts {
		u.active = false
		return Login{Outcome: OutcomeLockedOut, Email: email}
	}

	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		u.attempts++
		return Login{Outcome: OutcomeWrongPassword, Email: email}
	}

	login := Login{Outcome: OutcomeOK, Email: email, Role: u.role, Token: uuid.NewString(), Replaced: u.token != ""}
	u.token = login.Token
	u.attempts = 0

	return login
}

// Active reports whether email names an active account and returns its role.
func (s *Store) Active(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[normalize(email)]
	if !ok || !u.active {
		return "", false
	}

	return u.role, true
}

// Logout drops the session token of email.
func (s *Store) Logout(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[normalize(email)]; ok {
		u.token = ""
	}
}

// Attempts returns the failed attempt counter of email.
func (s *Store) Attempts(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[normalize(email)]; ok {
		return u.attempts
	}

	return 0
}

// Reset restores the seed accounts, clearing counters, lockouts and tokens.
func (s *Store) Reset() error {
	users, err := s.build()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	return nil
}

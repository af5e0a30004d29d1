// Package scenario describes the login scenarios as data: the route to
// start from, the credentials to submit and the outcome to assert. The
// browser tests in e2e iterate these lists.
package scenario

import (
	"fmt"

	"github.com/robotomize/loginsuite/internal/fixture"
)

// Alert texts raised by the application under test.
const (
	AlertInvalidPassword  = "Invalid password"
	AlertUserNotFound     = "User not found"
	AlertInactive         = "Account is locked. Please contact support."
	AlertLockedOut        = "Account is locked due to too many failed attempts."
	AlertLoggedOut        = "You have been logged out"
	AlertResetUnavailable = "Password reset functionality is not implemented yet."
)

// ValidationRequired is the browser message for an empty required field.
const ValidationRequired = "Please fill out this field."

// LockoutThreshold is the number of failed attempts the application accepts
// before locking an account.
const LockoutThreshold = 3

// WrongPassword is submitted by every failed attempt of the lockout sequence.
const WrongPassword = "wrongpassword"

// Routes of the application under test.
const (
	RouteLogin  = "/login"
	RouteHome   = "/"
	RouteLogout = "/logout"
	RouteReset  = "/reset_password"
)

// Fields of the login form.
const (
	FieldEmail    = "#email"
	FieldPassword = "#password"
	FieldRemember = "#remember"
	SubmitButton  = `button[type="submit"]`
	LogoutLink    = `a[href="/logout"]`
)

// MissingAtMessage is the browser message for an email value without '@'.
func MissingAtMessage(value string) string {
	return fmt.Sprintf("Please include an '@' in the email address. '%s' is missing an '@'.", value)
}

// WelcomeText is shown on the home route after a successful login.
func WelcomeText(username string) string {
	return "Welcome, " + username
}

type Kind int

const (
	ExpectWelcome Kind = iota + 1
	ExpectAlert
	ExpectValidation
)

func (k Kind) String() string {
	switch k {
	case ExpectWelcome:
		return "welcome"
	case ExpectAlert:
		return "alert"
	case ExpectValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Expect is the outcome a scenario asserts. Field is set for validation
// expectations only.
type Expect struct {
	Kind  Kind
	Text  string
	Field string
}

type Credentials struct {
	Username string
	Password string
}

type Scenario struct {
	Group       string
	Name        string
	Route       string
	Credentials Credentials
	Expect      Expect
}

func (s Scenario) String() string {
	return s.Group + "/" + s.Name
}

const (
	GroupValid    = "Valid Login Scenarios"
	GroupInvalid  = "Invalid Login Scenarios"
	GroupSession  = "Session Management and Security"
	GroupUI       = "UI and Accessibility"
	GroupPassword = "Password Management"
	GroupLockout  = "Security - Login Lockout Mechanism"
)

// ValidLogin logs the user in and expects the welcome message.
func ValidLogin(u fixture.User) Scenario {
	return Scenario{
		Group:       GroupValid,
		Name:        "allows a user to log in with valid credentials",
		Route:       RouteLogin,
		Credentials: Credentials{Username: u.Username, Password: u.Password},
		Expect:      Expect{Kind: ExpectWelcome, Text: WelcomeText(u.Username)},
	}
}

// InvalidLogin returns the scenarios whose submission reaches the server
// and is rejected with an alert.
func InvalidLogin(users fixture.Set) ([]Scenario, error) {
	if err := users.Require(fixture.ValidUser, fixture.InvalidUser, fixture.InactiveUser); err != nil {
		return nil, err
	}

	valid, invalid, inactive := users[fixture.ValidUser], users[fixture.InvalidUser], users[fixture.InactiveUser]

	return []Scenario{
		{
			Group:       GroupInvalid,
			Name:        "prevents login with invalid credentials",
			Route:       RouteLogin,
			Credentials: Credentials{Username: valid.Username, Password: invalid.Password},
			Expect:      Expect{Kind: ExpectAlert, Text: AlertInvalidPassword},
		},
		{
			Group:       GroupInvalid,
			Name:        "prevents login for non-existing user",
			Route:       RouteLogin,
			Credentials: Credentials{Username: invalid.Username, Password: invalid.Password},
			Expect:      Expect{Kind: ExpectAlert, Text: AlertUserNotFound},
		},
		{
			Group:       GroupInvalid,
			Name:        "prevents login for inactive user",
			Route:       RouteLogin,
			Credentials: Credentials{Username: inactive.Username, Password: inactive.Password},
			Expect:      Expect{Kind: ExpectAlert, Text: AlertInactive},
		},
	}, nil
}

// Validation returns the scenarios the browser rejects before submitting.
func Validation(users fixture.Set) ([]Scenario, error) {
	if err := users.Require(fixture.InactiveUser, fixture.InvalidEmail); err != nil {
		return nil, err
	}

	inactive, badEmail := users[fixture.InactiveUser], users[fixture.InvalidEmail]

	return []Scenario{
		{
			Group:       GroupInvalid,
			Name:        "shows error for empty password",
			Route:       RouteLogin,
			Credentials: Credentials{Username: inactive.Username},
			Expect:      Expect{Kind: ExpectValidation, Text: ValidationRequired, Field: FieldPassword},
		},
		{
			Group:       GroupInvalid,
			Name:        "shows error for empty username",
			Route:       RouteLogin,
			Credentials: Credentials{Password: inactive.Password},
			Expect:      Expect{Kind: ExpectValidation, Text: ValidationRequired, Field: FieldEmail},
		},
		{
			Group:       GroupInvalid,
			Name:        "shows error for invalid email format",
			Route:       RouteLogin,
			Credentials: Credentials{Username: badEmail.Username},
			Expect:      Expect{Kind: ExpectValidation, Text: MissingAtMessage(badEmail.Username), Field: FieldEmail},
		},
	}, nil
}

// LockoutSequence returns threshold failed attempts for username followed by
// the attempt that must be rejected as locked out. Order matters: the
// scenarios share the application's failure counter.
func LockoutSequence(username string, threshold int) []Scenario {
	out := make([]Scenario, 0, threshold+1)
	for i := 1; i <= threshold; i++ {
		out = append(
			out, Scenario{
				Group:       GroupLockout,
				Name:        fmt.Sprintf("login attempt %d with invalid credentials", i),
				Route:       RouteLogin,
				Credentials: Credentials{Username: username, Password: WrongPassword},
				Expect:      Expect{Kind: ExpectAlert, Text: AlertInvalidPassword},
			},
		)
	}

	return append(
		out, Scenario{
			Group:       GroupLockout,
			Name:        "locks the user out after multiple failed login attempts",
			Route:       RouteLogin,
			Credentials: Credentials{Username: username, Password: WrongPassword},
			Expect:      Expect{Kind: ExpectAlert, Text: AlertLockedOut},
		},
	)
}

// Package fixture loads the named user credentials the browser scenarios
// log in with.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names of the records every fixture file is expected to provide.
const (
	ValidUser    = "validUser"
	InvalidUser  = "invalidUser"
	InactiveUser = "inactiveUser"
	InvalidEmail = "invalidemail"
	LockoutUser  = "lockoutUser"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var ErrUnknownUser = errors.New("fixture: unknown user")

type User struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Active reports whether the record describes an account that may log in.
// An empty status counts as active.
func (u User) Active() bool {
	return u.Status == "" || u.Status == StatusActive
}

// Set maps record names to users. It is read-only once loaded.
type Set map[string]User

// Get returns the named record.
func (s Set) Get(name string) (User, error) {
	u, ok := s[name]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}

	return u, nil
}

// Require checks that all names are present.
func (s Set) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := s[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrUnknownUser, strings.Join(missing, ", "))
	}

	return nil
}

// Load reads a JSON or YAML fixture file, chosen by extension.
func Load(pth string) (Set, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	set, err := Parse(b, strings.TrimPrefix(filepath.Ext(pth), "."))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pth, err)
	}

	return set, nil
}

// Parse decodes fixture data in the given format ("json", "yaml" or "yml").
func Parse(data []byte, format string) (Set, error) {
	set := make(Set)

	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("json.Unmarshal: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("yaml.Unmarshal: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", format)
	}

	for name, u := range set {
		if u.Status != "" && u.Status != StatusActive && u.Status != StatusInactive {
			return nil, fmt.Errorf("user %s: unknown status %q", name, u.Status)
		}
	}

	return set, nil
}

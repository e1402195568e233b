// Package auth verifies login credentials against a YAML users file.
package auth

import (
	"crypto/subtle"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// User is one entry in the users file.
type User struct {
	Password string          `yaml:"password"`
	Role     attendance.Role `yaml:"role"`
}

// Users maps a username to its credentials and role.
type Users map[string]User

// LoadUsers reads the users file. Every entry must carry a known role.
func LoadUsers(path string) (Users, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}

	var users Users
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parsing users file: %w", err)
	}

	for name, u := range users {
		if u.Role != attendance.RoleAdmin && u.Role != attendance.RoleUser {
			return nil, fmt.Errorf("user %q has unknown role %q", name, u.Role)
		}
	}
	return users, nil
}

// Verify checks a username/password pair and returns the user's role.
func (u Users) Verify(username, password string) (attendance.Role, bool) {
	user, ok := u[username]
	if !ok {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return "", false
	}
	return user.Role, true
}

package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the authenticated principal embedded, not referenced, inside a
// credential. It is reissued whole on every change; callers never mutate it.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Expired reports whether the identity's expiry is in the past at the given instant.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Before(now)
}

// Registry maps a registered email (lower-cased, trimmed) to the bcrypt hash of
// its secret. The key set is the registered-identity set persisted by the
// session manager.
type Registry map[string]string

// NormalizeEmail canonicalises an email for use as a registry or favorite key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

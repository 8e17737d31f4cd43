package ports

import (
	"context"

	"github.com/maison-edition/storefront/internal/core/domain"
)

// SessionService manages the signed credential representing the active
// identity: Anonymous -> Authenticating -> Authenticated -> Anonymous.
type SessionService interface {
	// Register records a new identity in the registered-identity registry
	// without establishing a session. Fails with domain.ErrDuplicateIdentity
	// when the email is already registered.
	Register(ctx context.Context, email, secret string) error
	// Login verifies the credentials, issues and persists a fresh credential,
	// and publishes the identity. Fails with domain.ErrInvalidCredentials and
	// clears any existing session on mismatch.
	Login(ctx context.Context, email, secret string) (*domain.Identity, error)
	// Logout removes the stored credential and publishes the anonymous state.
	Logout(ctx context.Context)
	// HasValidSession reports whether a decodable, unexpired credential is
	// stored. Decode failure or expiry triggers an implicit logout side
	// effect before returning false.
	HasValidSession(ctx context.Context) bool
	// CurrentIdentity returns the last-published identity, or nil.
	CurrentIdentity() *domain.Identity
	// UpdateDisplayName reissues the credential with the merged display name,
	// preserving the expiry. Fails with domain.ErrNotAuthenticated when there
	// is no current session.
	UpdateDisplayName(ctx context.Context, displayName string) (*domain.Identity, error)
	// AwaitIdentity waits for a non-anonymous identity until ctx expires,
	// returning domain.ErrIdentityTimeout when it does.
	AwaitIdentity(ctx context.Context) (*domain.Identity, error)
	// Credential returns the raw stored credential, or "" when anonymous.
	Credential(ctx context.Context) string
	// SubscribeIdentity registers fn for the current identity (nil when
	// anonymous) immediately and on every change. The returned cancel stops
	// delivery.
	SubscribeIdentity(fn func(*domain.Identity)) (cancel func())
}

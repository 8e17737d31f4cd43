package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/maison-edition/storefront/internal/api/metrics"
	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
	"github.com/maison-edition/storefront/internal/kv"
	"github.com/maison-edition/storefront/internal/store"
)

// Backing-store keys owned by the session manager. Stable across restarts.
const (
	credentialKey = "auth_token"
	registryKey   = "registered_emails"
)

const adminIdentityID = "admin001"

// SessionConfig carries the session manager settings.
type SessionConfig struct {
	Secret      string
	TokenTTL    time.Duration
	AdminEmail  string
	AdminSecret string
}

// SessionManager implements ports.SessionService. The credential is an
// HS256-signed JWT embedding the whole identity; the registered-identity
// registry is itself a reactive collection, so registrations reconcile across
// execution contexts like any other collection.
type SessionManager struct {
	kv         kv.Store
	registry   *store.Collection[domain.Registry]
	secret     []byte
	ttl        time.Duration
	adminEmail string
	adminHash  []byte
	log        zerolog.Logger

	mu      sync.Mutex
	current *domain.Identity
	subs    map[int]func(*domain.Identity)
	nextSub int

	qmu         sync.Mutex
	qcond       *sync.Cond
	queue       []identityDelivery
	closed      bool
	cancelWatch func()
	closeOnce   sync.Once
}

type identityDelivery struct {
	ident *domain.Identity
	fns   []func(*domain.Identity)
}

var _ ports.SessionService = (*SessionManager)(nil)

// NewSessionManager builds the manager, loads any stored credential (invalid
// or expired credentials are silently discarded), and starts watching the
// credential key for cross-context changes.
func NewSessionManager(ctx context.Context, kvs kv.Store, cfg SessionConfig, log zerolog.Logger) *SessionManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	adminHash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminSecret), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("hashing admin secret failed, admin login disabled")
	}

	s := &SessionManager{
		kv: kvs,
		registry: store.New(ctx, kvs, store.Options[domain.Registry]{
			Key:  registryKey,
			Seed: func() domain.Registry { return domain.Registry{} },
		}, log),
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		adminEmail: domain.NormalizeEmail(cfg.AdminEmail),
		adminHash:  adminHash,
		log:        log,
		subs:       make(map[int]func(*domain.Identity)),
	}
	s.qcond = sync.NewCond(&s.qmu)

	if raw, ok, gerr := kvs.Get(ctx, credentialKey); gerr == nil && ok {
		if ident, derr := s.decodeCredential(raw); derr != nil {
			s.log.Warn().Err(derr).Msg("stored credential invalid or expired, discarding")
			_ = kvs.Remove(ctx, credentialKey)
		} else {
			s.current = ident
		}
	}

	s.cancelWatch = kvs.Subscribe(credentialKey, s.onCredentialChange)
	go s.deliverLoop()
	return s
}

// Register records the email in the registry with a bcrypt hash of the
// secret. No session is established.
func (s *SessionManager) Register(ctx context.Context, email, secret string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	var duplicate bool
	s.registry.Mutate(ctx, func(r domain.Registry) domain.Registry {
		if r == nil {
			r = domain.Registry{}
		}
		if _, exists := r[email]; exists {
			duplicate = true
			return r
		}
		r[email] = string(hash)
		return r
	})
	if duplicate {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentity, email)
	}

	s.log.Info().Str("email", email).Msg("identity registered")
	return nil
}

// Login matches the built-in admin identity or the registry, synthesizes an
// identity expiring after the configured TTL, persists the signed credential,
// and publishes the identity.
func (s *SessionManager) Login(ctx context.Context, email, secret string) (*domain.Identity, error) {
	emailLower := domain.NormalizeEmail(email)

	var ident *domain.Identity
	if emailLower == s.adminEmail && len(s.adminHash) > 0 &&
		bcrypt.CompareHashAndPassword(s.adminHash, []byte(secret)) == nil {
		ident = &domain.Identity{
			ID:          adminIdentityID,
			Email:       emailLower,
			Role:        domain.RoleAdmin,
			DisplayName: "Admin User",
		}
	} else if hash, ok := s.registry.Snapshot()[emailLower]; ok &&
		bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil {
		ident = &domain.Identity{
			ID:    "user_" + emailLower,
			Email: emailLower,
			Role:  domain.RoleUser,
		}
	}

	if ident == nil {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		s.log.Warn().Str("email", emailLower).Msg("login rejected")
		s.clearSession(ctx)
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	ident.IssuedAt = now
	ident.ExpiresAt = now.Add(s.ttl)

	token, err := s.encodeCredential(ident)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if perr := s.kv.Set(ctx, credentialKey, token); perr != nil {
		s.log.Warn().Err(perr).Msg("persisting credential failed, session is memory-only")
	}

	s.setCurrent(ident)
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("email", emailLower).Str("role", ident.Role).Msg("login succeeded")

	out := *ident
	return &out, nil
}

// Logout removes the stored credential and publishes the anonymous state.
func (s *SessionManager) Logout(ctx context.Context) {
	s.clearSession(ctx)
	s.log.Info().Msg("logged out")
}

// HasValidSession decodes the stored credential. Decode failure or expiry
// triggers an implicit logout before returning false; callers never see the
// decode error.
func (s *SessionManager) HasValidSession(ctx context.Context) bool {
	raw, ok, err := s.kv.Get(ctx, credentialKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading credential failed")
		return false
	}
	if !ok {
		if s.CurrentIdentity() != nil {
			s.setCurrent(nil)
		}
		return false
	}

	ident, derr := s.decodeCredential(raw)
	if derr != nil {
		s.log.Debug().Err(derr).Msg("credential invalid or expired, clearing session")
		s.clearSession(ctx)
		return false
	}

	s.setCurrent(ident)
	return true
}

// CurrentIdentity returns a copy of the last-published identity, or nil.
func (s *SessionManager) CurrentIdentity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// UpdateDisplayName reissues the credential with the merged display name,
// preserving the original expiry.
func (s *SessionManager) UpdateDisplayName(ctx context.Context, displayName string) (*domain.Identity, error) {
	cur := s.CurrentIdentity()
	if cur == nil {
		return nil, domain.ErrNotAuthenticated
	}

	merged := *cur
	merged.DisplayName = displayName

	token, err := s.encodeCredential(&merged)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if perr := s.kv.Set(ctx, credentialKey, token); perr != nil {
		s.log.Warn().Err(perr).Msg("persisting reissued credential failed")
	}

	s.setCurrent(&merged)
	out := merged
	return &out, nil
}

// AwaitIdentity waits for a non-anonymous identity until ctx expires. A
// caller with no session at all waits the full deadline; the timeout is a
// recoverable error, not a hang.
func (s *SessionManager) AwaitIdentity(ctx context.Context) (*domain.Identity, error) {
	if cur := s.CurrentIdentity(); cur != nil {
		return cur, nil
	}

	ch := make(chan *domain.Identity, 1)
	cancel := s.SubscribeIdentity(func(ident *domain.Identity) {
		if ident != nil {
			select {
			case ch <- ident:
			default:
			}
		}
	})
	defer cancel()

	select {
	case ident := <-ch:
		return ident, nil
	case <-ctx.Done():
		return nil, domain.ErrIdentityTimeout
	}
}

// Credential returns the raw stored credential, "" when anonymous.
func (s *SessionManager) Credential(ctx context.Context) string {
	raw, ok, err := s.kv.Get(ctx, credentialKey)
	if err != nil || !ok {
		return ""
	}
	return raw
}

// SubscribeIdentity registers fn for identity changes. fn receives the
// current identity immediately, then every change, in publication order.
func (s *SessionManager) SubscribeIdentity(fn func(*domain.Identity)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.enqueueLocked(s.current, []func(*domain.Identity){fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close stops credential watching and identity delivery.
func (s *SessionManager) Close() {
	s.closeOnce.Do(func() {
		if s.cancelWatch != nil {
			s.cancelWatch()
		}
		s.registry.Close()
		s.qmu.Lock()
		s.closed = true
		s.qcond.Signal()
		s.qmu.Unlock()
	})
}

// ── credential codec ─────────────────────────────────────────────────────────

type credentialClaims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

func (s *SessionManager) encodeCredential(ident *domain.Identity) (string, error) {
	claims := credentialClaims{
		UserID:      ident.ID,
		Email:       ident.Email,
		Role:        ident.Role,
		DisplayName: ident.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(ident.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(ident.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// decodeCredential parses and verifies the token. Any failure, including
// expiry, is returned as an error and treated as "no session" by callers.
func (s *SessionManager) decodeCredential(token string) (*domain.Identity, error) {
	claims := &credentialClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	ident := &domain.Identity{
		ID:          claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		DisplayName: claims.DisplayName,
	}
	if claims.IssuedAt != nil {
		ident.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}
	return ident, nil
}

// ── internal state ───────────────────────────────────────────────────────────

func (s *SessionManager) clearSession(ctx context.Context) {
	if err := s.kv.Remove(ctx, credentialKey); err != nil {
		s.log.Warn().Err(err).Msg("removing credential failed")
	}
	s.setCurrent(nil)
}

// onCredentialChange reacts to a login/logout performed in another execution
// context. The incoming credential is decoded, never written back.
func (s *SessionManager) onCredentialChange(ch kv.Change) {
	if !ch.Present {
		s.setCurrent(nil)
		return
	}
	ident, err := s.decodeCredential(ch.Value)
	if err != nil {
		s.log.Warn().Err(err).Msg("peer wrote an undecodable credential, treating as anonymous")
		s.setCurrent(nil)
		return
	}
	s.setCurrent(ident)
}

func (s *SessionManager) setCurrent(ident *domain.Identity) {
	s.mu.Lock()
	if sameIdentity(s.current, ident) {
		s.mu.Unlock()
		return
	}
	if ident != nil {
		cp := *ident
		ident = &cp
	}
	s.current = ident
	s.enqueueLocked(ident, s.subscriberListLocked())
	s.mu.Unlock()
}

func sameIdentity(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Email == b.Email && a.Role == b.Role &&
		a.DisplayName == b.DisplayName &&
		a.IssuedAt.Equal(b.IssuedAt) && a.ExpiresAt.Equal(b.ExpiresAt)
}

func (s *SessionManager) subscriberListLocked() []func(*domain.Identity) {
	fns := make([]func(*domain.Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

func (s *SessionManager) enqueueLocked(ident *domain.Identity, fns []func(*domain.Identity)) {
	if len(fns) == 0 {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, identityDelivery{ident: ident, fns: fns})
	s.qcond.Signal()
	s.qmu.Unlock()
}

func (s *SessionManager) deliverLoop() {
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.qcond.Wait()
		}
		if s.closed && len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		for _, fn := range d.fns {
			if d.ident == nil {
				fn(nil)
				continue
			}
			cp := *d.ident
			fn(&cp)
		}
	}
}

package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
	"github.com/maison-edition/storefront/internal/kv"
	"github.com/maison-edition/storefront/internal/store"
)

// Backing-store key for the favorite map.
const favoritesKey = "favorites"

// FavoriteService implements ports.FavoriteService on a reactive collection
// holding the whole per-identity favorite map. Each operation resolves the
// identity at call time and touches only that identity's subset.
type FavoriteService struct {
	favorites *store.Collection[domain.FavoriteMap]
	session   ports.SessionService
	log       zerolog.Logger
}

var _ ports.FavoriteService = (*FavoriteService)(nil)

func NewFavoriteService(ctx context.Context, kvs kv.Store, session ports.SessionService, log zerolog.Logger) *FavoriteService {
	return &FavoriteService{
		favorites: store.New(ctx, kvs, store.Options[domain.FavoriteMap]{
			Key:  favoritesKey,
			Seed: func() domain.FavoriteMap { return domain.FavoriteMap{} },
		}, log),
		session: session,
		log:     log,
	}
}

// Add puts productID in the current identity's set. Anonymous calls and
// repeat adds are logged no-ops.
func (s *FavoriteService) Add(ctx context.Context, productID int) {
	email, ok := s.currentEmail()
	if !ok {
		s.log.Warn().Int("product_id", productID).Msg("favorite add without a signed-in identity")
		return
	}

	s.favorites.Mutate(ctx, func(m domain.FavoriteMap) domain.FavoriteMap {
		if m == nil {
			m = domain.FavoriteMap{}
		}
		if m.Has(email, productID) {
			return m
		}
		m[email] = append(m[email], productID)
		return m
	})
}

// Remove takes productID out of the current identity's set. A set left empty
// has its map entry deleted rather than kept as an empty slice.
func (s *FavoriteService) Remove(ctx context.Context, productID int) {
	email, ok := s.currentEmail()
	if !ok {
		s.log.Warn().Int("product_id", productID).Msg("favorite remove without a signed-in identity")
		return
	}

	s.favorites.Mutate(ctx, func(m domain.FavoriteMap) domain.FavoriteMap {
		ids := m[email]
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if id != productID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(m, email)
		} else {
			m[email] = kept
		}
		return m
	})
}

// IsFavorite reports membership in the current identity's set; always false
// when anonymous.
func (s *FavoriteService) IsFavorite(productID int) bool {
	email, ok := s.currentEmail()
	if !ok {
		return false
	}
	return s.favorites.Snapshot().Has(email, productID)
}

// CurrentIDs returns the current identity's favorite product IDs, empty when
// anonymous.
func (s *FavoriteService) CurrentIDs() []int {
	email, ok := s.currentEmail()
	if !ok {
		return []int{}
	}
	ids := s.favorites.Snapshot().IDs(email)
	if ids == nil {
		ids = []int{}
	}
	return ids
}

// SubscribeCurrent delivers the active identity's subset whenever either the
// favorite map or the identity changes, so switching identity re-publishes
// the new identity's set, never the previous one.
func (s *FavoriteService) SubscribeCurrent(fn func([]int)) (cancel func()) {
	cancelMap := s.favorites.Subscribe(func(m domain.FavoriteMap) {
		fn(subsetFor(m, s.session.CurrentIdentity()))
	})
	cancelIdentity := s.session.SubscribeIdentity(func(ident *domain.Identity) {
		fn(subsetFor(s.favorites.Snapshot(), ident))
	})
	return func() {
		cancelMap()
		cancelIdentity()
	}
}

// Close stops the underlying collection.
func (s *FavoriteService) Close() {
	s.favorites.Close()
}

func (s *FavoriteService) currentEmail() (string, bool) {
	ident := s.session.CurrentIdentity()
	if ident == nil || ident.Email == "" {
		return "", false
	}
	return domain.NormalizeEmail(ident.Email), true
}

func subsetFor(m domain.FavoriteMap, ident *domain.Identity) []int {
	if ident == nil || ident.Email == "" {
		return []int{}
	}
	ids := m.IDs(ident.Email)
	if ids == nil {
		return []int{}
	}
	return ids
}

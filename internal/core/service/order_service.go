package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/api/metrics"
	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
	"github.com/maison-edition/storefront/internal/kv"
	"github.com/maison-edition/storefront/internal/store"
)

// Backing-store key for the order collection.
const ordersKey = "user_orders"

// OrderService implements ports.OrderService on a reactive collection of
// orders plus the session manager as the second change source for the owner
// view.
type OrderService struct {
	orders  *store.Collection[[]domain.Order]
	session ports.SessionService
	log     zerolog.Logger
}

var _ ports.OrderService = (*OrderService)(nil)

// NewOrderService builds the service and its collection. A fresh backing
// store is seeded with a small demo set, mirroring first-run behavior.
func NewOrderService(ctx context.Context, kvs kv.Store, session ports.SessionService, log zerolog.Logger) *OrderService {
	return &OrderService{
		orders: store.New(ctx, kvs, store.Options[[]domain.Order]{
			Key:  ordersKey,
			Seed: seedOrders,
		}, log),
		session: session,
		log:     log,
	}
}

// Orders returns the admin view: every order, newest first.
func (s *OrderService) Orders() []domain.Order {
	return sortOrders(s.orders.Snapshot())
}

// Order returns one order by ID.
func (s *OrderService) Order(id string) (*domain.Order, error) {
	for _, o := range s.orders.Snapshot() {
		if o.ID == id {
			out := o
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
}

// OwnerOrders returns the owner view for the current identity: orders owned
// by the identity's email, excluding delivered ones. Anonymous callers get an
// empty view.
func (s *OrderService) OwnerOrders() []domain.Order {
	return ownerView(s.orders.Snapshot(), s.session.CurrentIdentity())
}

// GroupedOwnerOrders reduces the owner view into per-customer/per-product
// rollups.
func (s *OrderService) GroupedOwnerOrders() []ports.GroupedOrder {
	return GroupByProduct(s.OwnerOrders(), s.log)
}

// PlaceOrder creates one order from the checkout input. Lines with a
// non-positive quantity are dropped; when nothing purchasable remains the
// checkout fails with domain.ErrEmptyCart.
func (s *OrderService) PlaceOrder(ctx context.Context, input ports.CheckoutInput) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			s.log.Warn().Int("product_id", line.ProductID).Msg("dropping non-purchasable checkout line")
			continue
		}
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Title,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	uid := uuid.NewString()
	now := time.Now().UTC()
	order := domain.Order{
		ID:              "ORD-" + uid,
		OrderNumber:     "CMD" + strings.ToUpper(uid[len(uid)-8:]),
		CustomerID:      input.CustomerID,
		CustomerName:    input.CustomerName,
		CustomerEmail:   domain.NormalizeEmail(input.CustomerEmail),
		OwnerEmail:      domain.NormalizeEmail(input.OwnerEmail),
		Items:           items,
		Status:          domain.StatusShipped,
		CreatedAt:       now,
		UpdatedAt:       now,
		ShippingAddress: input.ShippingAddress,
	}
	for _, it := range items {
		order.TotalAmount += it.Subtotal()
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.orders.Mutate(ctx, func(list []domain.Order) []domain.Order {
		return sortOrders(append(list, order))
	})

	metrics.OrdersCreatedTotal.Inc()
	s.log.Info().Str("order_id", order.ID).Str("order_number", order.OrderNumber).
		Float64("total", order.TotalAmount).Int("lines", len(order.Items)).Msg("order placed")

	out := order
	return &out, nil
}

// SetStatus moves an order to any status (no enforced workflow ordering) and
// stamps UpdatedAt. The collection is left unchanged when the ID is unknown.
func (s *OrderService) SetStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	var updated *domain.Order
	s.orders.Mutate(ctx, func(list []domain.Order) []domain.Order {
		for i := range list {
			if list[i].ID == id {
				list[i].Status = status
				list[i].UpdatedAt = time.Now().UTC()
				out := list[i]
				updated = &out
				break
			}
		}
		return list
	})
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}

	s.log.Info().Str("order_id", id).Str("status", string(status)).Msg("order status updated")
	return updated, nil
}

// DeleteMany removes every matching order in one mutation and reports the
// outcome per input ID. An unknown ID never fails the batch.
func (s *OrderService) DeleteMany(ctx context.Context, ids []string) []ports.DeleteReport {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = false
	}

	s.orders.Mutate(ctx, func(list []domain.Order) []domain.Order {
		kept := list[:0]
		for _, o := range list {
			if _, ok := wanted[o.ID]; ok {
				wanted[o.ID] = true
				continue
			}
			kept = append(kept, o)
		}
		return kept
	})

	reports := make([]ports.DeleteReport, 0, len(ids))
	for _, id := range ids {
		reports = append(reports, ports.DeleteReport{ID: id, Removed: wanted[id]})
	}
	return reports
}

// SubscribeOrders delivers the admin view on every collection change.
func (s *OrderService) SubscribeOrders(fn func([]domain.Order)) (cancel func()) {
	return s.orders.Subscribe(func(list []domain.Order) {
		fn(sortOrders(list))
	})
}

// SubscribeOwnerOrders recomputes the owner view when either change source
// fires: the order collection or the current identity. An identity change
// does not itself mutate the collection, so both subscriptions are required.
func (s *OrderService) SubscribeOwnerOrders(fn func([]domain.Order)) (cancel func()) {
	cancelOrders := s.orders.Subscribe(func(list []domain.Order) {
		fn(ownerView(list, s.session.CurrentIdentity()))
	})
	cancelIdentity := s.session.SubscribeIdentity(func(ident *domain.Identity) {
		fn(ownerView(s.orders.Snapshot(), ident))
	})
	return func() {
		cancelOrders()
		cancelIdentity()
	}
}

// Close stops the underlying collection.
func (s *OrderService) Close() {
	s.orders.Close()
}

// ── derived views ────────────────────────────────────────────────────────────

func ownerView(list []domain.Order, ident *domain.Identity) []domain.Order {
	if ident == nil {
		return []domain.Order{}
	}
	email := domain.NormalizeEmail(ident.Email)
	owned := make([]domain.Order, 0, len(list))
	for _, o := range list {
		if domain.NormalizeEmail(o.OwnerEmail) == email && o.Status != domain.StatusDelivered {
			owned = append(owned, o)
		}
	}
	return sortOrders(owned)
}

// GroupByProduct reduces orders into per-(customer, product) groups keyed on
// each order's first item. The customer discriminator prefers the stable
// numeric customer ID over the lower-cased email, so case variants of one
// email cannot split a group. On merge, a strictly later CreatedAt overwrites
// the most-recent fields (a tie keeps the existing ones). The result is
// re-derivable from the collection alone and holds no state of its own.
func GroupByProduct(orders []domain.Order, log zerolog.Logger) []ports.GroupedOrder {
	type groupAcc struct {
		view ports.GroupedOrder
		date time.Time
	}
	groups := make(map[string]*groupAcc)
	keys := make([]string, 0, len(orders))

	for _, o := range orders {
		if len(o.Items) == 0 {
			log.Warn().Str("order_id", o.ID).Msg("order without items skipped in grouping")
			continue
		}
		item := o.Items[0]

		discriminator := "email-" + domain.NormalizeEmail(o.CustomerEmail)
		if o.CustomerID != nil {
			discriminator = fmt.Sprintf("id-%d", *o.CustomerID)
		}
		key := fmt.Sprintf("%s_product-%d", discriminator, item.ProductID)

		if g, ok := groups[key]; ok {
			g.view.TotalQuantity += item.Quantity
			g.view.TotalAmount += item.Subtotal()
			if o.CreatedAt.After(g.date) {
				g.date = o.CreatedAt
				g.view.MostRecentDate = o.CreatedAt
				g.view.MostRecentStatus = o.Status
				g.view.MostRecentOrderNumber = o.OrderNumber
				g.view.CustomerName = o.CustomerName
				g.view.CustomerEmail = o.CustomerEmail
			}
			continue
		}

		groups[key] = &groupAcc{
			date: o.CreatedAt,
			view: ports.GroupedOrder{
				ProductID:             item.ProductID,
				Title:                 item.Title,
				UnitPrice:             item.UnitPrice,
				TotalQuantity:         item.Quantity,
				TotalAmount:           item.Subtotal(),
				MostRecentDate:        o.CreatedAt,
				MostRecentStatus:      o.Status,
				MostRecentOrderNumber: o.OrderNumber,
				CustomerName:          o.CustomerName,
				CustomerEmail:         o.CustomerEmail,
			},
		}
		keys = append(keys, key)
	}

	out := make([]ports.GroupedOrder, 0, len(groups))
	for _, key := range keys {
		out = append(out, groups[key].view)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MostRecentDate.After(out[j].MostRecentDate)
	})
	return out
}

func sortOrders(list []domain.Order) []domain.Order {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// seedOrders is the demo collection installed on first run, before any real
// checkout has happened.
func seedOrders() []domain.Order {
	bobID := 101
	return []domain.Order{
		{
			ID:            "ORD-2023-001",
			OrderNumber:   "CMD231115001",
			CustomerName:  "Alice Dupont",
			CustomerEmail: "alice.d@email.com",
			Items: []domain.OrderItem{
				{ProductID: 1, Title: "Le Seigneur des Anneaux", UnitPrice: 25.50, Quantity: 1},
				{ProductID: 3, Title: "1984", UnitPrice: 15.00, Quantity: 1},
			},
			TotalAmount: 40.50,
			Status:      domain.StatusProcessing,
			CreatedAt:   time.Date(2023, 11, 15, 10, 30, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2023, 11, 15, 10, 30, 0, 0, time.UTC),
			ShippingAddress: domain.Address{
				Street: "1 rue de la Paix", City: "Paris", ZipCode: "75001", Country: "France",
			},
		},
		{
			ID:            "ORD-2023-002",
			OrderNumber:   "CMD231118002",
			CustomerID:    &bobID,
			CustomerName:  "Bob Martin",
			CustomerEmail: "bob.m@email.com",
			Items: []domain.OrderItem{
				{ProductID: 2, Title: "Fondation", UnitPrice: 18.00, Quantity: 1},
			},
			TotalAmount: 18.00,
			Status:      domain.StatusShipped,
			CreatedAt:   time.Date(2023, 11, 18, 14, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2023, 11, 19, 9, 0, 0, 0, time.UTC),
			ShippingAddress: domain.Address{
				Street: "10 avenue des Champs", City: "Lyon", ZipCode: "69002", Country: "France",
			},
		},
	}
}

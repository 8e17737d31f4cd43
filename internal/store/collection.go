// Package store implements the reactive collection pattern shared by orders,
// cart, favorites, and the registered-identity registry: an in-memory
// authoritative copy of one collection, mirrored to the backing store on every
// mutation, published to subscribers as full snapshots, and reconciled against
// changes observed from other execution contexts.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/api/metrics"
	"github.com/maison-edition/storefront/internal/kv"
)

// Options configures one collection instance.
type Options[T any] struct {
	// Key is the backing-store key the collection persists under.
	Key string
	// Seed supplies the default collection used when the key is absent or
	// unparsable on load, and when a peer context removes the key.
	Seed func() T
}

// Collection holds one collection of type T. The serialized form is the
// source of truth: the in-memory copy and the durable value are byte-equal
// after every completed mutation, and both comparison (reconciliation dedup)
// and snapshot isolation work on the serialized form.
type Collection[T any] struct {
	kv   kv.Store
	key  string
	seed func() T
	log  zerolog.Logger

	mu       sync.Mutex
	raw      string // canonical serialized state
	revision uint64
	subs     map[int]func(T)
	nextSub  int

	// publish queue: unbounded FIFO drained by one goroutine, so subscribers
	// observe a monotonic sequence of snapshots and a mutation issued from
	// inside a callback can never deadlock.
	qmu    sync.Mutex
	qcond  *sync.Cond
	queue  []delivery[T]
	closed bool

	cancelWatch func()
	closeOnce   sync.Once
}

type delivery[T any] struct {
	raw string
	fns []func(T)
}

// New builds the collection and performs the initial load: the stored value
// when present and parsable, the seed otherwise (persisted back best-effort).
// Construction never fails; the worst case is the seed collection.
func New[T any](ctx context.Context, kvs kv.Store, opts Options[T], log zerolog.Logger) *Collection[T] {
	c := &Collection[T]{
		kv:   kvs,
		key:  opts.Key,
		seed: opts.Seed,
		log:  log.With().Str("collection", opts.Key).Logger(),
		subs: make(map[int]func(T)),
	}
	c.qcond = sync.NewCond(&c.qmu)

	raw, ok, err := kvs.Get(ctx, opts.Key)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Msg("reading collection failed, seeding")
		c.seedAndPersist(ctx)
	case !ok:
		c.seedAndPersist(ctx)
	default:
		var probe T
		if uerr := json.Unmarshal([]byte(raw), &probe); uerr != nil {
			c.log.Warn().Err(uerr).Msg("stored collection unparsable, seeding")
			c.seedAndPersist(ctx)
		} else {
			c.raw = raw
		}
	}

	c.cancelWatch = kvs.Subscribe(opts.Key, c.reconcile)
	go c.deliverLoop()
	return c
}

// Key returns the backing-store key the collection persists under.
func (c *Collection[T]) Key() string {
	return c.key
}

// Snapshot returns an isolated copy of the current collection. Mutating the
// returned value never affects store state.
func (c *Collection[T]) Snapshot() T {
	c.mu.Lock()
	raw := c.raw
	c.mu.Unlock()
	return c.decode(raw)
}

// Mutate applies a pure transform to the current collection, persists the
// result, and publishes the new state to all subscribers. This is the only
// local mutation path; it is atomic with respect to this execution context.
// A transform that leaves the serialized state unchanged publishes nothing.
// Persistence failure degrades to memory-only operation with a warning.
func (c *Collection[T]) Mutate(ctx context.Context, transform func(T) T) T {
	c.mu.Lock()
	next := transform(c.decode(c.raw))

	rawNext, err := json.Marshal(next)
	if err != nil {
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("serializing mutated collection failed, state unchanged")
		return next
	}
	canonical := string(rawNext)
	if canonical == c.raw {
		c.mu.Unlock()
		return next
	}

	c.raw = canonical
	c.revision++
	c.enqueueLocked(canonical, c.subscriberListLocked())
	c.mu.Unlock()

	// Persist with c.mu released: a driver may notify peer contexts on the
	// writer's goroutine, and the peer's reconcile takes that peer's lock.
	// Last writer wins covers a reordered persist under concurrent mutation.
	if perr := c.kv.Set(ctx, c.key, canonical); perr != nil {
		metrics.StorePersistFailuresTotal.WithLabelValues(c.key).Inc()
		c.log.Warn().Err(perr).Msg("persisting collection failed, continuing from memory")
	}

	metrics.StorePublishesTotal.WithLabelValues(c.key, "local").Inc()
	return next
}

// Subscribe registers fn to receive the current collection immediately and on
// every subsequent publish. The returned cancel stops further delivery.
func (c *Collection[T]) Subscribe(fn func(T)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.enqueueLocked(c.raw, []func(T){fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops cross-context reconciliation and snapshot delivery.
func (c *Collection[T]) Close() {
	c.closeOnce.Do(func() {
		if c.cancelWatch != nil {
			c.cancelWatch()
		}
		c.qmu.Lock()
		c.closed = true
		c.qcond.Signal()
		c.qmu.Unlock()
	})
}

// reconcile merges an externally-observed backing-store change. Last writer
// wins: the incoming state replaces the in-memory copy wholesale, with no
// merge of concurrent local edits. A value byte-equal to the current state is
// deduplicated (exactly one publish per distinct external value); an
// unparsable value is logged and ignored.
func (c *Collection[T]) reconcile(ch kv.Change) {
	incoming := ch.Value
	if !ch.Present {
		b, err := json.Marshal(c.seed())
		if err != nil {
			return
		}
		incoming = string(b)
	}

	c.mu.Lock()
	if incoming == c.raw {
		c.mu.Unlock()
		metrics.StoreReconcilesTotal.WithLabelValues(c.key, "noop").Inc()
		return
	}
	var probe T
	if err := json.Unmarshal([]byte(incoming), &probe); err != nil {
		c.mu.Unlock()
		metrics.StoreReconcilesTotal.WithLabelValues(c.key, "invalid").Inc()
		c.log.Warn().Err(err).Msg("unparsable external value ignored")
		return
	}

	c.raw = incoming
	c.revision++
	c.enqueueLocked(incoming, c.subscriberListLocked())
	c.mu.Unlock()

	metrics.StoreReconcilesTotal.WithLabelValues(c.key, "applied").Inc()
	metrics.StorePublishesTotal.WithLabelValues(c.key, "external").Inc()
}

func (c *Collection[T]) seedAndPersist(ctx context.Context) {
	seeded := c.seed()
	b, err := json.Marshal(seeded)
	if err != nil {
		c.log.Error().Err(err).Msg("serializing seed collection failed")
		return
	}
	c.raw = string(b)
	if perr := c.kv.Set(ctx, c.key, c.raw); perr != nil {
		metrics.StorePersistFailuresTotal.WithLabelValues(c.key).Inc()
		c.log.Warn().Err(perr).Msg("persisting seed collection failed, continuing from memory")
	}
}

// decode deserializes raw into a fresh T, falling back to the seed for values
// that were validated on the way in but somehow fail now.
func (c *Collection[T]) decode(raw string) T {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.log.Error().Err(err).Msg("decoding collection failed, serving seed")
		return c.seed()
	}
	return v
}

func (c *Collection[T]) subscriberListLocked() []func(T) {
	fns := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return fns
}

// enqueueLocked appends a delivery; it never blocks, so it is safe to call
// with c.mu held.
func (c *Collection[T]) enqueueLocked(raw string, fns []func(T)) {
	if len(fns) == 0 {
		return
	}
	c.qmu.Lock()
	c.queue = append(c.queue, delivery[T]{raw: raw, fns: fns})
	c.qcond.Signal()
	c.qmu.Unlock()
}

func (c *Collection[T]) deliverLoop() {
	for {
		c.qmu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.qcond.Wait()
		}
		if c.closed && len(c.queue) == 0 {
			c.qmu.Unlock()
			return
		}
		d := c.queue[0]
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		for _, fn := range d.fns {
			fn(c.decode(d.raw))
		}
	}
}

// Package memory provides an in-process backing store hub that can open any
// number of execution contexts sharing one physical map. It simulates several
// browser tabs over one origin-scoped store: a write in one context is visible
// to all and notifies every context except the writer. Used by tests and the
// memory storage driver.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/maison-edition/storefront/internal/kv"
)

// Hub is the shared physical store behind every context it opens.
type Hub struct {
	mu       sync.Mutex
	data     map[string]string
	contexts map[string]*Context
}

// NewHub creates an empty hub with no contexts.
func NewHub() *Hub {
	return &Hub{
		data:     make(map[string]string),
		contexts: make(map[string]*Context),
	}
}

// OpenContext attaches a new execution context to the hub.
func (h *Hub) OpenContext() *Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Context{
		id:   uuid.NewString(),
		hub:  h,
		subs: make(map[string]map[int]func(kv.Change)),
	}
	h.contexts[c.id] = c
	return c
}

// notifyOthers delivers a change to every context except the writer.
// Called without the hub lock held so handlers may read the store.
func (h *Hub) notifyOthers(writerID string, change kv.Change) {
	h.mu.Lock()
	peers := make([]*Context, 0, len(h.contexts))
	for id, c := range h.contexts {
		if id != writerID {
			peers = append(peers, c)
		}
	}
	h.mu.Unlock()

	for _, c := range peers {
		c.deliver(change)
	}
}

// Context is one execution context's view of the hub. It implements kv.Store.
type Context struct {
	id  string
	hub *Hub

	mu     sync.Mutex
	subs   map[string]map[int]func(kv.Change)
	nextID int
	closed bool
}

var _ kv.Store = (*Context)(nil)

func (c *Context) Get(_ context.Context, key string) (string, bool, error) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	v, ok := c.hub.data[key]
	return v, ok, nil
}

func (c *Context) Set(_ context.Context, key, value string) error {
	c.hub.mu.Lock()
	c.hub.data[key] = value
	c.hub.mu.Unlock()

	c.hub.notifyOthers(c.id, kv.Change{Key: key, Value: value, Present: true})
	return nil
}

func (c *Context) Remove(_ context.Context, key string) error {
	c.hub.mu.Lock()
	_, existed := c.hub.data[key]
	delete(c.hub.data, key)
	c.hub.mu.Unlock()

	if existed {
		c.hub.notifyOthers(c.id, kv.Change{Key: key, Present: false})
	}
	return nil
}

func (c *Context) Subscribe(key string, fn func(kv.Change)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func(kv.Change))
	}
	id := c.nextID
	c.nextID++
	c.subs[key][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[key], id)
	}
}

// Close detaches the context from the hub; it stops receiving notifications.
func (c *Context) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	delete(c.hub.contexts, c.id)
	c.hub.mu.Unlock()
	return nil
}

func (c *Context) deliver(change kv.Change) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fns := make([]func(kv.Change), 0, len(c.subs[change.Key]))
	for _, fn := range c.subs[change.Key] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

package kv

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Dispatcher routes externally-observed changes to per-key handlers using a
// fixed set of workers sharded by key, guaranteeing per-key delivery order.
// The network-facing drivers (redis, mongo) use it to decouple their listener
// goroutine from reconciliation handlers.
type Dispatcher struct {
	workers []chan Change
	log     zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]map[int]func(Change)
	nextID   int
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan Change, numWorkers),
		handlers: make(map[string]map[int]func(Change)),
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Change, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Register subscribes fn to changes for key. The returned cancel removes the
// registration.
func (d *Dispatcher) Register(key string, fn func(Change)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers[key] == nil {
		d.handlers[key] = make(map[int]func(Change))
	}
	id := d.nextID
	d.nextID++
	d.handlers[key][id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers[key], id)
	}
}

// Dispatch enqueues a change for the worker responsible for its key.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Dispatch(change Change) {
	d.workers[d.shardIndex(change.Key)] <- change
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			d.mu.RLock()
			fns := make([]func(Change), 0, len(d.handlers[change.Key]))
			for _, fn := range d.handlers[change.Key] {
				fns = append(fns, fn)
			}
			d.mu.RUnlock()

			if len(fns) == 0 {
				d.log.Debug().Str("key", change.Key).Int("worker_id", id).Msg("change with no registered handler")
				continue
			}
			for _, fn := range fns {
				fn(change)
			}
		}
	}
}

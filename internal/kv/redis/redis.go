// Package redis implements the backing store on a Redis instance shared by
// any number of execution contexts (processes). Values are plain keys;
// change notification rides a Pub/Sub channel carrying the writer's context
// ID so that subscribers can drop their own writes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/kv"
)

const defaultTimeout = 5 * time.Second

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Prefix  string // key namespace, defaults to "storefront"
	Timeout time.Duration
}

// changeMessage is the wire format published on the change channel.
type changeMessage struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
	Writer  string `json:"writer"`
}

// Store implements kv.Store on Redis. Each Store is one execution context with
// a unique writer ID.
type Store struct {
	client     *redis.Client
	writerID   string
	prefix     string
	dispatcher *kv.Dispatcher
	pubsub     *redis.PubSub
	cancel     context.CancelFunc
	log        zerolog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open initialises a Redis client, validates connectivity with a ping, and
// starts the change listener. A default timeout is applied when none is
// provided.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "storefront"
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	listenCtx, stopListen := context.WithCancel(context.Background())
	s := &Store{
		client:     client,
		writerID:   uuid.NewString(),
		prefix:     prefix,
		dispatcher: kv.NewDispatcher(0, log),
		pubsub:     client.Subscribe(listenCtx, prefix+":changes"),
		cancel:     stopListen,
		log:        log,
	}
	s.dispatcher.Start(listenCtx)
	go s.listen()
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+":"+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.publish(ctx, changeMessage{Key: key, Value: value, Present: true, Writer: s.writerID})
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.publish(ctx, changeMessage{Key: key, Present: false, Writer: s.writerID})
	return nil
}

func (s *Store) Subscribe(key string, fn func(kv.Change)) (cancel func()) {
	return s.dispatcher.Register(key, fn)
}

func (s *Store) Close() error {
	s.cancel()
	_ = s.pubsub.Close()
	return s.client.Close()
}

// publish broadcasts a change to peer contexts. Notification is best-effort:
// a lost message leaves peers stale until the next write, never inconsistent
// with their own state.
func (s *Store) publish(ctx context.Context, msg changeMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn().Err(err).Str("key", msg.Key).Msg("encoding change message failed")
		return
	}
	if err := s.client.Publish(ctx, s.prefix+":changes", raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", msg.Key).Msg("publishing change failed")
	}
}

// listen receives peer change messages and feeds them to the dispatcher.
func (s *Store) listen() {
	for msg := range s.pubsub.Channel() {
		var change changeMessage
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			s.log.Warn().Err(err).Msg("malformed change message dropped")
			continue
		}
		if change.Writer == s.writerID {
			continue
		}
		s.dispatcher.Dispatch(kv.Change{Key: change.Key, Value: change.Value, Present: change.Present})
	}
}

// Package mongo implements the backing store on a MongoDB collection with one
// document per key. Cross-context notification uses a change stream; each
// document carries the writer's context ID so peers can drop self-writes.
// Delete events cannot carry the writer ID (the change stream has no full
// document for them), so a context may observe its own removal — harmless,
// since reconciliation deep-equal no-ops on already-applied state.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/kv"
)

const (
	defaultTimeout = 10 * time.Second
	collectionName = "kv_entries"
)

// Config captures the minimal settings required to establish a connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// entry is the stored document shape.
type entry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	Writer    string    `bson:"writer"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements kv.Store on MongoDB. Each Store is one execution context.
type Store struct {
	client     *mongo.Client
	col        *mongo.Collection
	writerID   string
	dispatcher *kv.Dispatcher
	cancel     context.CancelFunc
	log        zerolog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open establishes a client, verifies connectivity with a ping, and starts the
// change-stream watcher. A default timeout is applied when none is provided.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	s := &Store{
		client:     client,
		col:        client.Database(cfg.Database).Collection(collectionName),
		writerID:   uuid.NewString(),
		dispatcher: kv.NewDispatcher(0, log),
		cancel:     stopWatch,
		log:        log,
	}
	s.dispatcher.Start(watchCtx)
	go s.watch(watchCtx)
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e entry
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return e.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := entry{Key: key, Value: value, Writer: s.writerID, UpdatedAt: time.Now().UTC()}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Subscribe(key string, fn func(kv.Change)) (cancel func()) {
	return s.dispatcher.Register(key, fn)
}

func (s *Store) Close() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// changeEvent is the subset of a change-stream event we consume.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *entry `bson:"fullDocument"`
}

// watch tails the collection's change stream and dispatches peer writes.
// The stream is re-opened on error until ctx is cancelled.
func (s *Store) watch(ctx context.Context) {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.M{
		"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
	}}}}

	for ctx.Err() == nil {
		stream, err := s.col.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			s.log.Warn().Err(err).Msg("opening change stream failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				s.log.Warn().Err(err).Msg("undecodable change event dropped")
				continue
			}
			s.handle(ev)
		}
		_ = stream.Close(context.Background())
	}
}

func (s *Store) handle(ev changeEvent) {
	if ev.OperationType == "delete" {
		s.dispatcher.Dispatch(kv.Change{Key: ev.DocumentKey.ID, Present: false})
		return
	}
	if ev.FullDocument == nil || ev.FullDocument.Writer == s.writerID {
		return
	}
	if !json.Valid([]byte(ev.FullDocument.Value)) {
		s.log.Warn().Str("key", ev.DocumentKey.ID).Msg("peer wrote non-JSON value, dropped")
		return
	}
	s.dispatcher.Dispatch(kv.Change{Key: ev.DocumentKey.ID, Value: ev.FullDocument.Value, Present: true})
}

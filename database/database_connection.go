// Package database implements store.Store over MongoDB.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/princinho/sahoassist/store"
)

// Collection names.
const (
	colCounters      = "counters"
	colSequences     = "sequences"
	colConversations = "conversations"
	colRequests      = "product_requests"
	colVendors       = "vendors"
	colNotifications = "vendor_notifications"
	colTickets       = "support_tickets"
	colUsers         = "users"
)

// Optimistic updates are retried this many times before reporting a conflict.
const maxApplyAttempts = 5

// emailCollation compares emails case-insensitively.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// Open connects to uri, selects databaseName and makes sure the indexes exist.
func Open(ctx context.Context, uri, databaseName string) (*Store, error) {
	client, err := Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	s := New(client, databaseName)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an already connected client.
func New(client *mongo.Client, databaseName string) *Store {
	return &Store{
		client: client,
		db:     client.Database(databaseName),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock makes the store stamp updates with now instead of the wall clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the database for read-only adapters such as the storefront catalog.
func (s *Store) DB() *mongo.Database { return s.db }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel { return mongo.IndexModel{Keys: keys} }
	byEmail := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetCollation(emailCollation),
	}

	indexes := map[string][]mongo.IndexModel{
		colConversations: {
			plain(bson.D{{Key: "createdAt", Value: -1}}),
			plain(bson.D{{Key: "sessionId", Value: 1}}),
		},
		colRequests: {
			unique(bson.D{{Key: "requestNumber", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		colVendors: {
			byEmail,
			plain(bson.D{{Key: "categories.categorySlug", Value: 1}}),
		},
		colNotifications: {
			unique(bson.D{{Key: "vendorId", Value: 1}, {Key: "requestId", Value: 1}}),
			plain(bson.D{{Key: "requestId", Value: 1}}),
		},
		colTickets: {
			unique(bson.D{{Key: "ticketNumber", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}),
		},
		colUsers: {byEmail},
	}
	for name, models := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Conversations() store.ConversationStore { return conversations{s} }
func (s *Store) Requests() store.RequestStore           { return requests{s} }
func (s *Store) Vendors() store.VendorStore             { return vendors{s} }
func (s *Store) Notifications() store.NotificationStore { return notifications{s} }
func (s *Store) Tickets() store.TicketStore             { return tickets{s} }
func (s *Store) Users() store.UserStore                 { return users{s} }
func (s *Store) Sequences() store.SequenceStore         { return sequences{s} }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type counter struct {
	Seq int64 `bson:"seq"`
}

// increment atomically bumps the counter document key in collection and returns the new value.
func (s *Store) increment(ctx context.Context, collection, key string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c counter
	err := s.col(collection).FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s: %w", collection, key, err)
	}
	return c.Seq, nil
}

// nextID hands out the integer primary key of a new document in collection.
func (s *Store) nextID(ctx context.Context, collection string) (int64, error) {
	return s.increment(ctx, colCounters, collection)
}

type sequences struct{ s *Store }

func (q sequences) Next(ctx context.Context, key string) (int64, error) {
	return q.s.increment(ctx, colSequences, key)
}

// findPage applies paging to a find and sorts by sort.
func findPage(sort bson.D, p store.Page) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(sort)
	if p.PerPage > 0 {
		opts.SetSkip(int64(p.Offset())).SetLimit(int64(p.PerPage))
	}
	return opts
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case IsDuplicateKey(err):
		return store.ErrDuplicate
	}
	return err
}

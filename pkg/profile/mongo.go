package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"mercator-hq/gatekeeper/pkg/limits"
)

// MongoStore keeps one document per tenant in a MongoDB collection, keyed
// by tenant ID. Commands are traced through the global tracer provider.
type MongoStore struct {
	listeners
	client *mongo.Client
	col    *mongo.Collection
	origin string
	logger *slog.Logger
}

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI        string
	Username   string
	Password   string
	Database   string
	Collection string

	// Timeout bounds every operation.
	// Default: 5 seconds
	Timeout time.Duration

	Logger *slog.Logger
}

// profileDoc is the stored shape of a Profile.
type profileDoc struct {
	TenantID      string    `bson:"_id"`
	Name          string    `bson:"name,omitempty"`
	TenantRules   string    `bson:"tenant_rules"`
	CustomerRules string    `bson:"customer_rules"`
	UpdatedAt     time.Time `bson:"updated_at"`
	Origin        string    `bson:"origin,omitempty"`
}

func toDoc(p *Profile, origin string) profileDoc {
	return profileDoc{
		TenantID:      string(p.TenantID),
		Name:          p.Name,
		TenantRules:   p.RateLimits.Tenant,
		CustomerRules: p.RateLimits.Customer,
		UpdatedAt:     p.UpdatedAt,
		Origin:        origin,
	}
}

func (d profileDoc) profile() *Profile {
	return &Profile{
		TenantID:   limits.TenantID(d.TenantID),
		Name:       d.Name,
		RateLimits: limits.RuleSet{Tenant: d.TenantRules, Customer: d.CustomerRules},
		UpdatedAt:  d.UpdatedAt,
	}
}

// NewMongoStore connects to MongoDB and pings the primary.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri cannot be empty")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("mongodb database and collection are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetTimeout(cfg.Timeout).
		SetMonitor(otelmongo.NewMonitor())
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			AuthSource: "admin",
			Username:   cfg.Username,
			Password:   cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoStore{
		client: client,
		col:    client.Database(cfg.Database).Collection(cfg.Collection),
		origin: uuid.NewString(),
		logger: logger.With("component", "profile.mongo"),
	}, nil
}

// Get returns the tenant's profile, or ErrNotFound.
func (s *MongoStore) Get(ctx context.Context, tenant limits.TenantID) (*Profile, error) {
	var doc profileDoc
	err := s.col.FindOne(ctx, bson.M{"_id": string(tenant)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return doc.profile(), nil
}

// List returns all profiles ordered by tenant ID.
func (s *MongoStore) List(ctx context.Context) ([]*Profile, error) {
	cursor, err := s.col.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	out := make([]*Profile, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.profile())
	}
	return out, nil
}

// Put validates and upserts p, then notifies listeners.
func (s *MongoStore) Put(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc := toDoc(p, s.origin)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.TenantID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	s.notify(p.TenantID)
	return nil
}

// Delete removes the tenant's profile.
func (s *MongoStore) Delete(ctx context.Context, tenant limits.TenantID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": string(tenant)})
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if res.DeletedCount > 0 {
		s.notify(tenant)
	}
	return nil
}

// changeEvent is the part of a change stream event Watch reads.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *profileDoc `bson:"fullDocument"`
}

// Watch follows the collection's change stream and reports writes made by
// other gatekeepers. Change streams need a replica set. It blocks until ctx
// is cancelled.
func (s *MongoStore) Watch(ctx context.Context) error {
	stream, err := s.col.Watch(ctx, mongo.Pipeline{}, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	s.logger.Info("profile change stream started", "collection", s.col.Name())
	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.logger.Warn("ignoring undecodable change event", "error", err)
			continue
		}
		if ev.DocumentKey.ID == "" {
			continue
		}
		// Deletes carry no document, so a local delete is reported twice.
		if ev.FullDocument != nil && ev.FullDocument.Origin == s.origin {
			continue
		}
		s.notify(limits.TenantID(ev.DocumentKey.ID))
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("change stream ended: %w", stream.Err())
}

// Ping checks the connection to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

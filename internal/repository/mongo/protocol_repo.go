// internal/repository/mongo/protocol_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	protocolCollectionName = "protocols"
	oneActiveIndexName     = "one_active_per_user_type"
)

// mongoProtocolRepository implements repository.ProtocolRepository
type mongoProtocolRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoProtocolRepository creates a new protocol repository.
// ActivateNew runs in a multi-document transaction, so the deployment must be a replica set.
func NewMongoProtocolRepository(db *mongo.Database) repository.ProtocolRepository {
	return &mongoProtocolRepository{
		client:     db.Client(),
		collection: db.Collection(protocolCollectionName),
	}
}

// ActivateNew swaps the active protocol for (user, type) inside a transaction.
// Concurrent swaps on the same pair surface as transient write conflicts, which
// WithTransaction retries. The partial unique index rejects a second active
// protocol even outside a transaction.
func (r *mongoProtocolRepository) ActivateNew(ctx context.Context, p *domain.StoredProtocol) (primitive.ObjectID, error) {
	if p.UserID == primitive.NilObjectID || !p.Type.Valid() {
		return primitive.NilObjectID, errors.New("protocol requires userId and a valid type")
	}
	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Active = true

	session, err := r.client.StartSession()
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"userId": p.UserID, "type": p.Type, "active": true}
		update := bson.M{"$set": bson.M{"active": false, "updatedAt": now}}
		if _, err := r.collection.UpdateMany(sc, filter, update); err != nil {
			return nil, err
		}
		return r.collection.InsertOne(sc, p)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return p.ID, nil
}

// GetByID retrieves a single protocol by its ID.
func (r *mongoProtocolRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredProtocol, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *mongoProtocolRepository) GetActive(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "type": t, "active": true}, nil)
}

func (r *mongoProtocolRepository) GetLatest(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"userId": userID, "type": t}, opts)
}

func (r *mongoProtocolRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.StoredProtocol, error) {
	var p domain.StoredProtocol
	var err error
	if opts != nil {
		err = r.collection.FindOne(ctx, filter, opts).Decode(&p)
	} else {
		err = r.collection.FindOne(ctx, filter).Decode(&p)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByUser retrieves a user's protocols, newest first.
func (r *mongoProtocolRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) ([]domain.StoredProtocol, error) {
	filter := bson.M{"userId": userID}
	if t != "" {
		filter["type"] = t
	}
	// History listings don't need the full documents.
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"document": 0})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	protocols := []domain.StoredProtocol{}
	if err = cursor.All(ctx, &protocols); err != nil {
		return nil, err
	}
	return protocols, nil
}

// AttachAudit stores the audit result after the fact. It never touches the document.
func (r *mongoProtocolRepository) AttachAudit(ctx context.Context, id primitive.ObjectID, audit *domain.AuditResult) error {
	if audit == nil {
		return errors.New("audit result is required")
	}
	update := bson.M{"$set": bson.M{"audit": audit, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureProtocolIndexes creates necessary indexes. Call during startup.
func EnsureProtocolIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Main query pattern: latest protocol of a type for a user
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Hard invariant: one active protocol per (user, type)
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().
				SetName(oneActiveIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

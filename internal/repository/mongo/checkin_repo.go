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

const checkinCollectionName = "checkins"

// mongoCheckinRepository implements repository.CheckinRepository
type mongoCheckinRepository struct {
	collection *mongo.Collection
}

// NewMongoCheckinRepository creates a new check-in repository backed by MongoDB.
func NewMongoCheckinRepository(db *mongo.Database) repository.CheckinRepository {
	return &mongoCheckinRepository{
		collection: db.Collection(checkinCollectionName),
	}
}

// Create inserts a new check-in.
func (r *mongoCheckinRepository) Create(ctx context.Context, checkin *domain.CheckIn) (primitive.ObjectID, error) {
	if checkin.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("check-in requires userId")
	}

	checkin.ID = primitive.NewObjectID()
	if checkin.CreatedAt.IsZero() {
		checkin.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, checkin)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// ListByUser retrieves a user's check-ins, newest first.
func (r *mongoCheckinRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.CheckIn, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	checkins := []domain.CheckIn{}
	if err = cursor.All(ctx, &checkins); err != nil {
		return nil, err
	}
	return checkins, nil
}

// HasPhotoCheckinAfter looks for a check-in with at least one photo key created after since.
func (r *mongoCheckinRepository) HasPhotoCheckinAfter(ctx context.Context, userID primitive.ObjectID, since time.Time) (bool, error) {
	filter := bson.M{
		"userId":      userID,
		"createdAt":   bson.M{"$gt": since},
		"photoKeys.0": bson.M{"$exists": true}, // Non-empty array
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureCheckinIndexes creates necessary indexes. Call during startup.
func EnsureCheckinIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const catalogCollectionName = "exercise_catalog"

// mongoCatalogRepository implements repository.CatalogRepository
type mongoCatalogRepository struct {
	collection *mongo.Collection
}

// NewMongoCatalogRepository creates a new catalog repository backed by MongoDB.
func NewMongoCatalogRepository(db *mongo.Database) repository.CatalogRepository {
	return &mongoCatalogRepository{
		collection: db.Collection(catalogCollectionName),
	}
}

// List returns every entry in insertion order, which is the order the matcher
// uses to break substring ties.
func (r *mongoCatalogRepository) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.CatalogEntry{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Upsert creates or replaces the entry with the same canonical name.
func (r *mongoCatalogRepository) Upsert(ctx context.Context, entry *domain.CatalogEntry) (primitive.ObjectID, error) {
	entry.CanonicalName = strings.TrimSpace(entry.CanonicalName)
	if entry.CanonicalName == "" {
		return primitive.NilObjectID, errors.New("catalog entry canonical name is required")
	}
	entry.UpdatedAt = time.Now().UTC()

	filter := bson.M{"canonicalName": entry.CanonicalName}
	update := bson.M{
		"$set": bson.M{
			"mediaKey":    entry.MediaKey,
			"mediaUrl":    entry.MediaURL,
			"muscleGroup": entry.MuscleGroup,
			"updatedAt":   entry.UpdatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.CatalogEntry
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return primitive.NilObjectID, err
	}
	entry.ID = saved.ID
	return saved.ID, nil
}

// Delete removes an entry by ID.
func (r *mongoCatalogRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureCatalogIndexes creates necessary indexes for the catalog collection.
func EnsureCatalogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "canonicalName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

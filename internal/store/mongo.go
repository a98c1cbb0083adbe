package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB database. Documents use string
// _id values; each method maps to exactly one single-document command.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (m *MongoStore) FindOne(ctx context.Context, collection, id string) (bson.Raw, error) {
	raw, err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (m *MongoStore) FindMany(ctx context.Context, collection string, where Fields) ([]bson.Raw, error) {
	filter := bson.M{}
	for k, v := range where {
		filter[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []bson.Raw{}
	for cur.Next(ctx) {
		out = append(out, copyRaw(cur.Current))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateCounter uses a pipeline update so the clamp at zero is evaluated by
// the server inside the same document write. The pre-image is returned and
// the post-image derived from it.
func (m *MongoStore) UpdateCounter(ctx context.Context, collection, id, field string, delta int64) (Counter, error) {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}
	next := bson.D{{Key: "$max", Value: bson.A{
		0,
		bson.D{{Key: "$toLong", Value: bson.D{{Key: "$add", Value: bson.A{current, delta}}}}},
	}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: field, Value: next}}}}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: field, Value: 1}})

	raw, err := m.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Counter{}, ErrNotFound
		}
		return Counter{}, err
	}
	before, err := intField(raw, field)
	if err != nil {
		return Counter{}, err
	}
	return Counter{Before: before, After: clamp(before, delta), Delta: delta}, nil
}

func (m *MongoStore) FindOneAndDelete(ctx context.Context, collection, id string, guard Fields) (bson.Raw, error) {
	filter := bson.M{"_id": id}
	for k, v := range guard {
		filter[k] = v
	}
	raw, err := m.db.Collection(collection).FindOneAndDelete(ctx, filter).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

package store

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MemoryStore is an in-memory Store used for development and unit tests.
// Documents are kept as encoded BSON so callers never share mutable state
// with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]bson.Raw)}
}

func (m *MemoryStore) FindOne(ctx context.Context, collection, id string) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.collections[collection][id]; ok {
		return copyRaw(d), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindMany(ctx context.Context, collection string, where Fields) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []bson.Raw{}
	for _, d := range m.collections[collection] {
		if matches(d, where) {
			out = append(out, copyRaw(d))
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", collection, err)
	}
	raw := bson.Raw(b)
	id, ok := raw.Lookup("_id").StringValueOK()
	if !ok || id == "" {
		return fmt.Errorf("%s document has no string _id", collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]bson.Raw)
		m.collections[collection] = col
	}
	if _, exists := col[id]; exists {
		return ErrDuplicate
	}
	col[id] = raw
	return nil
}

func (m *MemoryStore) UpdateCounter(ctx context.Context, collection, id, field string, delta int64) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return Counter{}, ErrNotFound
	}
	before, err := intField(d, field)
	if err != nil {
		return Counter{}, err
	}
	var doc bson.D
	if err := bson.Unmarshal(d, &doc); err != nil {
		return Counter{}, err
	}
	c := Counter{Before: before, After: clamp(before, delta), Delta: delta}
	set := false
	for i := range doc {
		if doc[i].Key == field {
			doc[i].Value = c.After
			set = true
		}
	}
	if !set {
		doc = append(doc, bson.E{Key: field, Value: c.After})
	}
	b, err := bson.Marshal(doc)
	if err != nil {
		return Counter{}, err
	}
	m.collections[collection][id] = b
	return c, nil
}

func (m *MemoryStore) FindOneAndDelete(ctx context.Context, collection, id string, guard Fields) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok || !matches(d, guard) {
		return nil, ErrNotFound
	}
	delete(m.collections[collection], id)
	return d, nil
}

func matches(d bson.Raw, where Fields) bool {
	for k, want := range where {
		got, ok := d.Lookup(k).StringValueOK()
		if !ok || got != want {
			return false
		}
	}
	return true
}

// intField reads a numeric field; a missing field counts as zero.
func intField(d bson.Raw, field string) (int64, error) {
	v, err := d.LookupErr(field)
	if err != nil {
		return 0, nil
	}
	return asInt64(v)
}

func asInt64(v bson.RawValue) (int64, error) {
	switch v.Type {
	case bsontype.Int32:
		return int64(v.Int32()), nil
	case bsontype.Int64:
		return v.Int64(), nil
	case bsontype.Double:
		return int64(v.Double()), nil
	case bsontype.Null, bsontype.Undefined:
		return 0, nil
	}
	return 0, fmt.Errorf("counter field has type %s", v.Type)
}

func copyRaw(d bson.Raw) bson.Raw {
	out := make(bson.Raw, len(d))
	copy(out, d)
	return out
}

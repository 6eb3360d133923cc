package storage

import (
	"context"
	"sort"
	"sync"
)

type objectKey struct {
	t  ObjectType
	id uint32
}

// MemoryRepository implements Repository in memory. Records are stored in
// their encoded form, so reads return fresh copies exactly as the SQLite
// repository would. It backs a core started without a database.
//
// Thread Safety: All methods are safe for concurrent use.
type MemoryRepository struct {
	mu        sync.Mutex
	objects   map[objectKey]memoryObject
	relations map[objectKey][]string
}

type memoryObject struct {
	name     string
	settings string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		objects:   make(map[objectKey]memoryObject),
		relations: make(map[objectKey][]string),
	}
}

// SaveObject implements Repository.
func (m *MemoryRepository) SaveObject(_ context.Context, obj Object) error {
	settings := ""
	if obj.Settings != nil {
		settings = obj.Settings.Encode()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey{obj.Type, obj.ID}] = memoryObject{name: obj.Name, settings: settings}
	return nil
}

// DeleteObject implements Repository.
func (m *MemoryRepository) DeleteObject(_ context.Context, t ObjectType, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectKey{t, id}
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	delete(m.relations, key)
	return nil
}

// ObjectsOfType implements Repository.
func (m *MemoryRepository) ObjectsOfType(_ context.Context, t ObjectType) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Object
	for key, o := range m.objects {
		if key.t != t {
			continue
		}
		rec, err := ParseRecord(o.settings)
		if err != nil {
			return nil, err
		}
		out = append(out, Object{Type: t, ID: key.id, Name: o.name, Settings: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveRelations implements Repository.
func (m *MemoryRepository) SaveRelations(_ context.Context, t ObjectType, id uint32, relations []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectKey{t, id}
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	encoded := make([]string, len(relations))
	for i, rel := range relations {
		encoded[i] = rel.Encode()
	}
	m.relations[key] = encoded
	return nil
}

// RelationsOf implements Repository.
func (m *MemoryRepository) RelationsOf(_ context.Context, t ObjectType, id uint32) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded := m.relations[objectKey{t, id}]
	out := make([]*Record, 0, len(encoded))
	for _, s := range encoded {
		rec, err := ParseRecord(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Package store keeps distilled keys handed out by the session service.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jaskrrish/Go-BB84/internal/models/qkd"
)

// KeyStore persists issued keys. Implementations return copies, so callers
// must Put a key again after modifying it.
type KeyStore interface {
	Put(key *qkd.QuantumKey) error
	// Get returns qkd.ErrKeyNotFound if no key has the given ID.
	Get(id uuid.UUID) (*qkd.QuantumKey, error)
	Delete(id uuid.UUID) error
	// List returns all keys ordered by generation time.
	List() ([]*qkd.QuantumKey, error)
	Close() error
}

// Store drivers accepted by Open
const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
)

// Open returns the KeyStore for driver. path is only used by DriverBolt.
func Open(driver, path string) (KeyStore, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverBolt:
		s, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// MemoryStore is a KeyStore held in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]qkd.QuantumKey
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[uuid.UUID]qkd.QuantumKey)}
}

func (m *MemoryStore) Put(key *qkd.QuantumKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.KeyID] = cloneKey(key)
	return nil
}

func (m *MemoryStore) Get(id uuid.UUID) (*qkd.QuantumKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[id]
	if !ok {
		return nil, qkd.ErrKeyNotFound
	}
	c := cloneKey(&k)
	return &c, nil
}

func (m *MemoryStore) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[id]; !ok {
		return qkd.ErrKeyNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *MemoryStore) List() ([]*qkd.QuantumKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]*qkd.QuantumKey, 0, len(m.keys))
	for _, k := range m.keys {
		c := cloneKey(&k)
		keys = append(keys, &c)
	}
	sortKeys(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneKey(k *qkd.QuantumKey) qkd.QuantumKey {
	c := *k
	c.KeyMaterial = append([]byte(nil), k.KeyMaterial...)
	if k.UsedAt != nil {
		t := *k.UsedAt
		c.UsedAt = &t
	}
	return c
}

func sortKeys(keys []*qkd.QuantumKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].GeneratedAt.Before(keys[j].GeneratedAt)
	})
}

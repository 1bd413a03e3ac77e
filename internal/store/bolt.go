package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/jaskrrish/Go-BB84/internal/models/qkd"
)

var keysBucket = []byte("keys")

// keyRecord is the on-disk form of a QuantumKey. QuantumKey hides its
// material from JSON, so it cannot be marshalled directly.
type keyRecord struct {
	KeyID       uuid.UUID  `json:"key_id"`
	SessionID   uuid.UUID  `json:"session_id"`
	KeyMaterial []byte     `json:"key_material"`
	KeyLength   int        `json:"key_length"`
	Fingerprint string     `json:"fingerprint"`
	GeneratedAt time.Time  `json:"generated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

func toRecord(k *qkd.QuantumKey) keyRecord {
	return keyRecord{
		KeyID:       k.KeyID,
		SessionID:   k.SessionID,
		KeyMaterial: k.KeyMaterial,
		KeyLength:   k.KeyLength,
		Fingerprint: k.Fingerprint,
		GeneratedAt: k.GeneratedAt,
		ExpiresAt:   k.ExpiresAt,
		UsedAt:      k.UsedAt,
		IsActive:    k.IsActive,
	}
}

func (r keyRecord) key() *qkd.QuantumKey {
	return &qkd.QuantumKey{
		KeyID:       r.KeyID,
		SessionID:   r.SessionID,
		KeyMaterial: r.KeyMaterial,
		KeyLength:   r.KeyLength,
		Fingerprint: r.Fingerprint,
		GeneratedAt: r.GeneratedAt,
		ExpiresAt:   r.ExpiresAt,
		UsedAt:      r.UsedAt,
		IsActive:    r.IsActive,
	}
}

// BoltStore is a KeyStore backed by a bolt database file
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening key store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keysBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating key bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(key *qkd.QuantumKey) error {
	data, err := json.Marshal(toRecord(key))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keysBucket).Put(key.KeyID[:], data)
	})
}

func (s *BoltStore) Get(id uuid.UUID) (*qkd.QuantumKey, error) {
	var rec keyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(keysBucket).Get(id[:])
		if v == nil {
			return qkd.ErrKeyNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.key(), nil
}

func (s *BoltStore) Delete(id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(keysBucket)
		if b.Get(id[:]) == nil {
			return qkd.ErrKeyNotFound
		}
		return b.Delete(id[:])
	})
}

func (s *BoltStore) List() ([]*qkd.QuantumKey, error) {
	var keys []*qkd.QuantumKey
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(keysBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec keyRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding key %x: %w", k, err)
			}
			keys = append(keys, rec.key())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortKeys(keys)
	return keys, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketMacros   = []byte("macros")
	bucketSpeakers = []byte("speakers")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMacros, bucketSpeakers} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) CreateMacro(m *Macro) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMacros)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketMacros)
		}
		if b.Get([]byte(m.Name)) != nil {
			return fmt.Errorf("macro %s: %w", m.Name, ErrExists)
		}
		now := time.Now()
		m.CreatedAt = now
		m.UpdatedAt = now
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put([]byte(m.Name), data)
	})
}

func (s *BoltStore) GetMacro(name string) (*Macro, error) {
	var m Macro
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMacros)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketMacros)
		}
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("macro %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMacro replaces the record stored under name. The replacement keeps
// the original creation time even when m carries a different name.
func (s *BoltStore) UpdateMacro(name string, m *Macro) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMacros)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketMacros)
		}
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("macro %s: %w", name, ErrNotFound)
		}
		var old Macro
		if err := json.Unmarshal(data, &old); err != nil {
			return err
		}
		m.Name = name
		m.CreatedAt = old.CreatedAt
		m.UpdatedAt = time.Now()
		out, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), out)
	})
}

func (s *BoltStore) DeleteMacro(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMacros)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketMacros)
		}
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("macro %s: %w", name, ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}

func (s *BoltStore) ListMacros() ([]*Macro, error) {
	var macros []*Macro
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMacros)
		if b == nil {
			return nil // no bucket = no macros
		}
		macros = make([]*Macro, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var m Macro
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			macros = append(macros, &m)
			return nil
		})
	})
	return macros, err
}

func (s *BoltStore) SaveSpeaker(sp *Speaker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSpeakers)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSpeakers)
		}
		sp.SeenAt = time.Now()
		data, err := json.Marshal(sp)
		if err != nil {
			return err
		}
		return b.Put([]byte(sp.Name), data)
	})
}

func (s *BoltStore) GetSpeaker(name string) (*Speaker, error) {
	var sp Speaker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSpeakers)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSpeakers)
		}
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("speaker %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &sp)
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *BoltStore) ListSpeakers() ([]*Speaker, error) {
	var speakers []*Speaker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSpeakers)
		if b == nil {
			return nil
		}
		speakers = make([]*Speaker, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var sp Speaker
			if err := json.Unmarshal(v, &sp); err != nil {
				return err
			}
			speakers = append(speakers, &sp)
			return nil
		})
	})
	return speakers, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

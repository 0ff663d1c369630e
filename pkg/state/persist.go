package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketState = "state"

// ErrClosed is returned by a BoltPersister after Close.
var ErrClosed = errors.New("state: persister closed")

// Persister saves and restores named records.
type Persister interface {
	// Load returns the record saved under name, or nil when there is none.
	Load(name string) (Record, error)

	// Save stores r under name, replacing any previous value.
	Save(name string, r Record) error
}

// BoltPersister stores records as JSON in a bbolt database. Values that
// round-trip through JSON come back in their JSON shape: numbers load as
// float64 and nested objects as map[string]any.
type BoltPersister struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltPersister, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketState))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize state db: %w", err)
	}
	return &BoltPersister{db: db}, nil
}

// Load implements Persister.
func (p *BoltPersister) Load(name string) (Record, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	var r Record
	err := p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketState)).Get([]byte(name))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	return r, nil
}

// Save implements Persister.
func (p *BoltPersister) Save(name string, r Record) error {
	if p.db == nil {
		return ErrClosed
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %q: %w", name, err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketState)).Put([]byte(name), data)
	})
}

// Delete removes the record saved under name.
func (p *BoltPersister) Delete(name string) error {
	if p.db == nil {
		return ErrClosed
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketState)).Delete([]byte(name))
	})
}

// Names lists the saved record names in key order.
func (p *BoltPersister) Names() ([]string, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	var names []string
	err := p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketState)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	return names, err
}

// Close closes the database.
func (p *BoltPersister) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

package kv

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultBucket holds every key of a Bolt store.
const DefaultBucket = "washbay"

// BoltFileName is the database file created inside the cache directory.
const BoltFileName = "washbay.db"

// Bolt is a Store backed by a single bbolt bucket.
type Bolt struct {
	db     *bbolt.DB
	bucket []byte
}

// OpenBolt opens (or creates) the database at path. It gives up after one
// second if another process holds the file lock.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &Error{Op: "open", Backend: "bolt", Cause: err}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &Error{Op: "open", Backend: "bolt", Cause: err}
	}

	b := &Bolt{db: db, bucket: []byte(DefaultBucket)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, &Error{Op: "open", Backend: "bolt", Cause: err}
	}
	return b, nil
}

func (b *Bolt) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return errors.New("bucket missing")
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// bbolt values are only valid inside the transaction
			value = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, &Error{Op: "get", Backend: "bolt", Key: key, Cause: err}
	}
	return value, value != nil, nil
}

func (b *Bolt) Set(key string, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), value)
	})
	if err != nil {
		return &Error{Op: "set", Backend: "bolt", Key: key, Cause: err}
	}
	return nil
}

func (b *Bolt) Remove(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
	if err != nil {
		return &Error{Op: "remove", Backend: "bolt", Key: key, Cause: err}
	}
	return nil
}

func (b *Bolt) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "keys", Backend: "bolt", Cause: err}
	}
	return keys, nil
}

// Path returns the database file path.
func (b *Bolt) Path() string {
	return b.db.Path()
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// Package runstore persists completed bulk run reports in a local BoltDB
// file, so past runs can be listed and inspected after the process exits.
package runstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/tlind/bulkcat/pkg/engine"
)

var bucketRuns = []byte("runs")

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one persisted bulk run with its identifier and submission context.
type Run struct {
	ID      uint64        `json:"id"`
	Started time.Time     `json:"started"`
	Input   string        `json:"input"`
	Workers int           `json:"workers"`
	Rate    float64       `json:"rate"`
	Report  engine.Report `json:"report"`
}

// Store is a BoltDB-backed run history.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the run store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create runstore directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open runstore: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists one run and returns its assigned identifier.
func (s *Store) Save(run Run) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		id = seq
		run.ID = seq

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return b.Put(runKey(seq), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns one run by identifier.
func (s *Store) Get(id uint64) (*Run, error) {
	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(runKey(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns up to limit runs, newest first. A non-positive limit
// returns everything.
func (s *Store) List(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %x: %w", k, err)
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// runKey encodes an identifier big-endian so cursor order matches
// chronological order.
func runKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

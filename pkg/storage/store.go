package storage

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/pppplang/ppppl/pkg/value"
)

var (
	bucketClocks = []byte("clocks")
	bucketCode   = []byte("code")
	bucketMem    = []byte("mem")

	schemaVersionKey = []byte("schema_version")
	codeKey          = []byte("source")
	memKey           = []byte("root")
)

const currentSchemaVersion = 1

// Store owns the bbolt database file backing a ppppl interpreter's durable
// state: the loaded program's source and the root memory value.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the database file at path and runs any
// pending schema migration.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	return s.db.Update(func(btx *bolt.Tx) error {
		clocks, err := btx.CreateBucketIfNotExists(bucketClocks)
		if err != nil {
			return fmt.Errorf("storage: creating clocks bucket: %w", err)
		}
		version := 0
		if raw := clocks.Get(schemaVersionKey); raw != nil {
			version = int(binary.BigEndian.Uint64(raw))
		}

		for {
			switch version {
			case 0:
				if _, err := btx.CreateBucketIfNotExists(bucketCode); err != nil {
					return fmt.Errorf("storage: creating code bucket: %w", err)
				}
				if _, err := btx.CreateBucketIfNotExists(bucketMem); err != nil {
					return fmt.Errorf("storage: creating mem bucket: %w", err)
				}
				version++
				buf := make([]byte, 8)
				binary.BigEndian.PutUint64(buf, uint64(version))
				if err := clocks.Put(schemaVersionKey, buf); err != nil {
					return fmt.Errorf("storage: writing schema_version: %w", err)
				}
			case currentSchemaVersion:
				return nil
			default:
				return fmt.Errorf("storage: unknown schema version %d", version)
			}
		}
	})
}

// Begin starts a new transaction. Every ppppl transaction is write-capable,
// matching the original interpreter's BEGIN IMMEDIATE on every step:
// ppppl's single-process scheduler never benefits from a separate read-only
// transaction class.
func (s *Store) Begin() (*Tx, error) {
	btx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("storage: beginning transaction: %w", err)
	}

	root := value.EmptyDict()
	if raw := btx.Bucket(bucketMem).Get(memKey); raw != nil {
		v, err := value.Unmarshal(raw)
		if err != nil {
			btx.Rollback()
			return nil, fmt.Errorf("storage: memory is corrupt: %w", err)
		}
		root = v
	}

	return &Tx{btx: btx, mem: root}, nil
}

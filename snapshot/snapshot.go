package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the recorded result of walking Root with MaxDepth.
type Snapshot struct {
	Root     string    `msgpack:"root"`
	MaxDepth int       `msgpack:"max_depth"`
	Taken    time.Time `msgpack:"taken"`
	Paths    []string  `msgpack:"paths"`
}

// Key identifies a snapshot by its root and depth. Paths cannot contain NUL, so the key is unambiguous.
func Key(root string, maxDepth int) string {
	return root + "\x00" + strconv.Itoa(maxDepth)
}

type Store struct {
	db  *bolt.DB
	log *log.Logger
}

// DefaultPath returns the location of the snapshot database within the XDG cache directory.
func DefaultPath() (string, error) {
	path, err := xdg.CacheFile("scandirx/snapshots.db")
	if err != nil {
		return "", fmt.Errorf("could not resolve local path for the snapshot db: %w", err)
	}

	return path, nil
}

// Open opens the snapshot database at path, creating it if necessary.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db at %s: %w", path, err)
	}

	// ensure bucket exists
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := BucketSnapshots(tx)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialise snapshot db: %w", err)
	}

	return &Store{
		db:  db,
		log: log.WithPrefix("snapshot"),
	}, nil
}

func (s *Store) Put(snap *Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error { //nolint:wrapcheck
		bucket, err := BucketSnapshots(tx)
		if err != nil {
			return err
		}

		s.log.Debugf("storing %d paths for %s (max depth %d)", len(snap.Paths), snap.Root, snap.MaxDepth)

		return bucket.Put(Key(snap.Root, snap.MaxDepth), snap)
	})
}

// Get returns the snapshot for root and maxDepth, or ErrNotFound.
func (s *Store) Get(root string, maxDepth int) (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := BucketSnapshots(tx)
		if err != nil {
			return err
		}

		snap, err = bucket.Get(Key(root, maxDepth))

		return err
	})

	return snap, err //nolint:wrapcheck
}

func (s *Store) Delete(root string, maxDepth int) error {
	return s.db.Update(func(tx *bolt.Tx) error { //nolint:wrapcheck
		bucket, err := BucketSnapshots(tx)
		if err != nil {
			return err
		}

		return bucket.Delete(Key(root, maxDepth))
	})
}

// List returns every stored snapshot, ordered by key.
func (s *Store) List() ([]*Snapshot, error) {
	var result []*Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := BucketSnapshots(tx)
		if err != nil {
			return err
		}

		return bucket.ForEach(func(_ string, snap *Snapshot) error {
			result = append(result, snap)

			return nil
		})
	})

	return result, err //nolint:wrapcheck
}

func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck
}

// Diff compares two sorted listings, returning the paths only present in current and those only present in previous.
func Diff(previous []string, current []string) (added []string, removed []string) {
	i, j := 0, 0

	for i < len(previous) && j < len(current) {
		switch {
		case previous[i] == current[j]:
			i++
			j++
		case previous[i] < current[j]:
			removed = append(removed, previous[i])
			i++
		default:
			added = append(added, current[j])
			j++
		}
	}

	removed = append(removed, previous[i:]...)
	added = append(added, current[j:]...)

	return added, removed
}

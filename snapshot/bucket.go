package snapshot

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const bucketSnapshots = "snapshots"

// Bucket stores msgpack encoded values of type V.
type Bucket[V any] struct {
	bucket *bolt.Bucket
}

func (b *Bucket[V]) Size() int {
	return b.bucket.Stats().KeyN
}

func (b *Bucket[V]) Get(key string) (*V, error) {
	bytes := b.bucket.Get([]byte(key))
	if bytes == nil {
		return nil, ErrNotFound
	}

	var value V
	if err := msgpack.Unmarshal(bytes, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for key '%v': %w", key, err)
	}

	return &value, nil
}

func (b *Bucket[V]) Put(key string, value *V) error {
	if bytes, err := msgpack.Marshal(value); err != nil {
		return fmt.Errorf("failed to marshal snapshot for key %v: %w", key, err)
	} else if err = b.bucket.Put([]byte(key), bytes); err != nil {
		return fmt.Errorf("failed to put snapshot for key %v: %w", key, err)
	}

	return nil
}

func (b *Bucket[V]) Delete(key string) error {
	if b.bucket.Get([]byte(key)) == nil {
		return ErrNotFound
	}

	return b.bucket.Delete([]byte(key)) //nolint:wrapcheck
}

func (b *Bucket[V]) ForEach(f func(string, *V) error) error {
	return b.bucket.ForEach(func(key, bytes []byte) error { //nolint:wrapcheck
		var value V
		if err := msgpack.Unmarshal(bytes, &value); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot for key '%v': %w", key, err)
		}

		return f(string(key), &value)
	})
}

func BucketSnapshots(tx *bolt.Tx) (*Bucket[Snapshot], error) {
	var (
		err error
		b   *bolt.Bucket
	)

	if tx.Writable() {
		b, err = tx.CreateBucketIfNotExists([]byte(bucketSnapshots))
	} else {
		b = tx.Bucket([]byte(bucketSnapshots))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get/create bucket %s: %w", bucketSnapshots, err)
	} else if b == nil {
		return nil, fmt.Errorf("bucket %s does not exist", bucketSnapshots)
	}

	return &Bucket[Snapshot]{b}, nil
}

package s3client

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Head when the object does not exist. Absence is
// an expected condition, not a transport failure.
var ErrNotFound = errors.New("object not found")

// ObjectInfo is remote metadata reported by Head.
type ObjectInfo struct {
	ETag         string
	Size         int64
	LastModified time.Time
}

// Object is a single listed remote key.
type Object struct {
	Key  string
	Size int64
}

// Store is the object-storage capability consumed by the sync engine.
// Implementations hide pagination behind List and treat DeleteMulti as a
// quiet bulk delete: removing an already-absent key is not an error.
type Store interface {
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, body []byte, headers map[string]string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	DeleteMulti(ctx context.Context, keys []string) error
}

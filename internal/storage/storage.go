package storage

import "context"

// Blobs is the durable snapshot backend shared by the session store and the
// dedup guards. Callers hand over an opaque payload under a stable key; the
// backend does not interpret it.
type Blobs interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

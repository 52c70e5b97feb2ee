package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Store is the persisted key-value contract. No transactional guarantees are
// assumed beyond last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by stores that can drop every key they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

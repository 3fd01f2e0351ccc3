package storage

import "errors"

var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store.
type Store interface {
	Put(key string, value []byte) error
	// Get returns ErrNotFound for missing keys.
	Get(key string) ([]byte, error)
	Keys() ([]string, error)
	Delete(key string) error
	Close() error
}

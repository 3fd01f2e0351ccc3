package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/fystack/devidentity/pkg/logger"
)

var ErrEncryptionKeyNotProvided = errors.New("encryption key not provided")

// BadgerStore is a Store implementation backed by BadgerDB.
type BadgerStore struct {
	DB *badger.DB
}

var _ Store = (*BadgerStore)(nil)

type BadgerConfig struct {
	// Password is stretched into the AES-256 key badger encrypts its files with.
	Password string
	DBPath   string
}

// NewBadgerStore creates a new BadgerStore instance.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	// must ensure encryption key is provided
	if config.Password == "" {
		return nil, ErrEncryptionKeyNotProvided
	}
	encryptionKey := sha256.Sum256([]byte(config.Password))

	opts := badger.DefaultOptions(config.DBPath).
		WithCompression(options.ZSTD).
		WithEncryptionKey(encryptionKey[:]).
		WithIndexCacheSize(16 << 20).
		WithSyncWrites(true).
		WithVerifyValueChecksum(true).
		WithLogger(quietBadgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store %s: %w", config.DBPath, err)
	}

	logger.Debug("Opened BadgerDB", "path", config.DBPath)
	return &BadgerStore{DB: db}, nil
}

// Put stores a key-value pair in the BadgerDB.
func (b *BadgerStore) Put(key string, value []byte) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get retrieves the value associated with a key from BadgerDB.
func (b *BadgerStore) Get(key string) ([]byte, error) {
	var result []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return result, err
}

func (b *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := b.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})

	return keys, err
}

// Delete removes a key-value pair from BadgerDB.
func (b *BadgerStore) Delete(key string) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the BadgerDB.
func (b *BadgerStore) Close() error {
	return b.DB.Close()
}

// quietBadgerLogger forwards badger warnings and errors and drops its chatter.
type quietBadgerLogger struct{}

func (quietBadgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf("badger: "+format, args...), nil)
}

func (quietBadgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (quietBadgerLogger) Infof(string, ...interface{}) {}

func (quietBadgerLogger) Debugf(string, ...interface{}) {}

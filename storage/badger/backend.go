package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/notevec/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. Writes are synced to disk on
// commit so a committed mutation survives a crash.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "badger")
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(filePath).WithSyncWrites(true)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// OpenOrRecover opens the index at filePath. If the directory exists but
// cannot be opened, it is moved aside to "<dir>.corrupt-<unix>" and an
// empty index is opened in its place. A directory locked by another
// process is reported as an error rather than treated as corruption.
func OpenOrRecover(filePath string) (*Backend, error) {
	backend, err := OpenBackend(filePath, false)
	if err == nil {
		return backend, nil
	}
	if isLockError(err) {
		return nil, err
	}
	if _, statErr := os.Stat(filePath); statErr != nil {
		return nil, err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", filePath, time.Now().Unix())
	slog.Default().Warn("index could not be opened; starting with an empty index",
		"component", "badger", "path", filePath, "moved_to", aside, "err", err)
	if renameErr := os.Rename(filePath, aside); renameErr != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", storage.ErrCorrupted, err), renameErr)
	}
	return OpenBackend(filePath, false)
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		info, err = os.Stat(filePath)
		if err != nil {
			return err
		}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// DropPrefix removes every key starting with prefix.
func (b *Backend) DropPrefix(prefix []byte) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.DropPrefix(prefix)
}

// keysWithPrefix returns every key under prefix.
func (b *Backend) keysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	return keys, err
}

// batch applies writes across as many transactions as needed. Writes that
// fit in one transaction commit atomically.
type batch struct {
	backend *Backend
	tx      *badger.Txn
}

func (b *Backend) newBatch() *batch {
	return &batch{backend: b, tx: b.db.NewTransaction(true)}
}

func (wb *batch) set(key, value []byte) error {
	return wb.apply(func(tx *badger.Txn) error { return tx.Set(key, value) })
}

func (wb *batch) delete(key []byte) error {
	return wb.apply(func(tx *badger.Txn) error { return tx.Delete(key) })
}

func (wb *batch) apply(op func(tx *badger.Txn) error) error {
	err := op(wb.tx)
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}
	if err := wb.tx.Commit(); err != nil {
		return err
	}
	wb.tx = wb.backend.db.NewTransaction(true)
	return op(wb.tx)
}

func (wb *batch) commit() error {
	return wb.tx.Commit()
}

func (wb *batch) discard() {
	wb.tx.Discard()
}

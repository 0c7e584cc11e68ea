package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// StateRepository implements storage.StateRepository for BadgerDB.
type StateRepository struct {
	backend *Backend
}

var _ storage.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a new StateRepository.
func NewStateRepository(backend *Backend) *StateRepository {
	return &StateRepository{
		backend: backend,
	}
}

// Close releases resources. StateRepository has no resources to release.
func (r *StateRepository) Close() error {
	return nil
}

// SaveBlockState persists the state of one external block.
func (r *StateRepository) SaveBlockState(ctx context.Context, state *core.BlockState) error {
	if state.DocID == "" {
		return core.ErrEmptyDocID
	}
	if state.BlockID == "" {
		return core.ErrEmptyBlockID
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		state.UpdatedAt = time.Now().UTC()
		key := makeBlockStateKey(state.DocID, state.BlockID)
		if err := tx.Set(key, storage.MarshalBlockState(state)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetBlockState retrieves the state of one external block.
func (r *StateRepository) GetBlockState(ctx context.Context, docID, blockID string) (*core.BlockState, error) {
	var state *core.BlockState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlockStateKey(docID, blockID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			state, unmarshalErr = storage.UnmarshalBlockState(val)
			return unmarshalErr
		})
	}, false)
	return state, err
}

// DeleteBlockState removes the state and content of one block.
func (r *StateRepository) DeleteBlockState(ctx context.Context, docID, blockID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeBlockStateKey(docID, blockID)); err != nil {
			return err
		}
		if err := tx.Delete(makeBlockContentKey(docID, blockID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteDocumentBlockStates removes states and content of every block of docID.
func (r *StateRepository) DeleteDocumentBlockStates(ctx context.Context, docID string) error {
	stateKeys, err := r.backend.keysWithPrefix(makeDocumentPrefix(blockStatePrefix, docID))
	if err != nil {
		return err
	}
	contentKeys, err := r.backend.keysWithPrefix(makeDocumentPrefix(blockContentPrefix, docID))
	if err != nil {
		return err
	}
	if len(stateKeys)+len(contentKeys) == 0 {
		return nil
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	wb := r.backend.newBatch()
	defer wb.discard()
	for _, key := range append(stateKeys, contentKeys...) {
		if err := wb.delete(key); err != nil {
			return err
		}
	}
	return wb.commit()
}

// ListBlockStates returns every block state.
func (r *StateRepository) ListBlockStates(ctx context.Context) ([]*core.BlockState, error) {
	var states []*core.BlockState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(blockStatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				state, err := storage.UnmarshalBlockState(val)
				if err != nil {
					return err
				}
				states = append(states, state)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return states, err
}

// SaveBlockContent stores the extracted text of one block.
func (r *StateRepository) SaveBlockContent(ctx context.Context, docID, blockID, text string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeBlockContentKey(docID, blockID), storage.MarshalString(text)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetBlockContent returns the extracted text of one block.
func (r *StateRepository) GetBlockContent(ctx context.Context, docID, blockID string) (string, error) {
	var text string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlockContentKey(docID, blockID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			text, unmarshalErr = storage.UnmarshalString(val)
			return unmarshalErr
		})
	}, false)
	return text, err
}

// LoadIndexMeta retrieves the index metadata.
// Returns a zero value if none has been saved.
func (r *StateRepository) LoadIndexMeta(ctx context.Context) (core.IndexMeta, error) {
	var meta core.IndexMeta
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(indexMetaKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			meta, unmarshalErr = storage.UnmarshalIndexMeta(val)
			return unmarshalErr
		})
	}, false)
	return meta, err
}

// SaveIndexMeta persists index metadata.
func (r *StateRepository) SaveIndexMeta(ctx context.Context, meta core.IndexMeta) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(indexMetaKey), storage.MarshalIndexMeta(meta)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

package rawdb

import "fmt"

// StorageError wraps any underlying KeyValueStore failure with the
// storage_error taxonomy code of spec.md §8, the same way the teacher
// surfaces a classified sentinel rather than a bare driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("STORAGE_ERROR: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// DuplicateHeightError reports append_block called with a height that
// already has a committed block (spec.md §4.1 invariant: height is unique).
type DuplicateHeightError struct {
	Height uint64
}

func (e *DuplicateHeightError) Error() string {
	return fmt.Sprintf("DUPLICATE_HEIGHT: block at height %d already exists", e.Height)
}

// DuplicateHashError reports append_block called with a hash that already
// exists at a different height.
type DuplicateHashError struct {
	Hash string
}

func (e *DuplicateHashError) Error() string {
	return fmt.Sprintf("DUPLICATE_HASH: block with hash %s already exists", e.Hash)
}

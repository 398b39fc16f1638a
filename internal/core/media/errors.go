package media

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when a payload is 5 MiB or larger
	ErrPayloadTooLarge = errors.New("media payload must be less than 5MB")

	// ErrInvalidKey is returned for keys this service could not have generated
	ErrInvalidKey = errors.New("invalid media key")
)

// StorageError wraps a failed object-storage call
type StorageError struct {
	Err error
	Op  string
	Key string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object storage %s %s failed: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError checks if err is (or wraps) a StorageError
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

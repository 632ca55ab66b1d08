package store

import "fmt"

// StorageError indicates a persistence operation failed after exhausting its
// retries. Callers should surface it to the user.
type StorageError struct {
	Op       string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// DecryptionError indicates a single record could not be decrypted. It is
// non-fatal to batch reads: the affected record is returned as ciphertext.
type DecryptionError struct {
	RecordID string
	Err      error
}

// Error implements the error interface
func (e *DecryptionError) Error() string {
	return fmt.Sprintf("store: failed to decrypt record %s: %v", e.RecordID, e.Err)
}

// Unwrap returns the underlying error
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

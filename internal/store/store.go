package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

const (
	receiptsBucket    = "offline_receipts"
	preferencesBucket = "preferences"
)

// Retry defaults for persistence failures
const (
	DefaultRetryBase     = 500 * time.Millisecond
	DefaultRetryAttempts = 3
)

// Config holds configuration for the offline store
type Config struct {
	Path          string
	RetryBase     time.Duration
	RetryAttempts int
}

// Store is the durable local queue for receipts captured while offline,
// encrypted at rest, plus a flat preference store. Records are removed only
// after successful remote processing.
type Store struct {
	db     *bbolt.DB
	cipher *Cipher
	cfg    Config
	log    zerolog.Logger
}

// Open opens (or creates) the store database file and its buckets
func Open(cfg Config, cipher *Cipher, log zerolog.Logger) (*Store, error) {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}

	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(preferencesBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating buckets: %w", err)
	}

	return &Store{db: db, cipher: cipher, cfg: cfg, log: log}, nil
}

// SaveReceipt encrypts and persists a captured receipt image. imageData is
// the capture payload exactly as the client provided it (a data: URI).
// If encryption is unavailable the image is stored as plaintext — capture
// must never fail for that reason — and the degraded mode is logged loudly.
// Persistence failures are retried with exponential backoff before a
// StorageError is surfaced.
func (s *Store) SaveReceipt(ctx context.Context, imageData []byte, metadata domain.CaptureMetadata) (*domain.OfflineReceiptRecord, error) {
	record := &domain.OfflineReceiptRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Metadata:  metadata,
	}

	img, err := s.cipher.Encrypt(imageData)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("record_id", record.ID).
			Str("mode", "plaintext_fallback").
			Msg("encryption unavailable, storing receipt image as plaintext")
		record.Image = domain.EncryptedImage{
			Ciphertext: base64.StdEncoding.EncodeToString(imageData),
		}
		record.EncryptionVersion = 0
	} else {
		record.Image = *img
		record.EncryptionVersion = img.Version
	}

	if err := s.putReceiptWithRetry(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("record_id", record.ID).
		Bool("encrypted", record.Encrypted()).
		Str("method", metadata.Method).
		Msg("offline receipt saved")
	return record, nil
}

func (s *Store) putReceiptWithRetry(ctx context.Context, record *domain.OfflineReceiptRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &StorageError{Op: "save_receipt", Attempts: 0, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.RetryBase << (attempt - 1)
			s.log.Warn().
				Err(lastErr).
				Str("record_id", record.ID).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("receipt save failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &StorageError{Op: "save_receipt", Attempts: attempt, Err: ctx.Err()}
			}
		}

		lastErr = s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(receiptsBucket)).Put([]byte(record.ID), data)
		})
		if lastErr == nil {
			return nil
		}
	}

	return &StorageError{Op: "save_receipt", Attempts: s.cfg.RetryAttempts, Err: lastErr}
}

// PendingReceipt pairs a stored record with its recovered image payload
type PendingReceipt struct {
	Record    domain.OfflineReceiptRecord
	Image     []byte
	Decrypted bool
}

// GetPendingReceipts lists all queued records in arrival order, decrypting
// each. A record that fails to decrypt does not abort the batch: it is
// returned with Decrypted=false and its stored ciphertext intact, and the
// failure is logged.
func (s *Store) GetPendingReceipts(ctx context.Context) ([]PendingReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pending := make([]PendingReceipt, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).ForEach(func(k, v []byte) error {
			var record domain.OfflineReceiptRecord
			if err := json.Unmarshal(v, &record); err != nil {
				// corrupt record: skip, never abort the batch
				s.log.Error().Err(err).Str("record_id", string(k)).Msg("skipping corrupt offline record")
				return nil
			}
			pending = append(pending, s.recover(record))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing pending receipts: %w", err)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Record.Timestamp < pending[j].Record.Timestamp
	})
	return pending, nil
}

// recover turns a stored record back into image bytes
func (s *Store) recover(record domain.OfflineReceiptRecord) PendingReceipt {
	if !record.Encrypted() {
		plain, err := base64.StdEncoding.DecodeString(record.Image.Ciphertext)
		if err != nil {
			s.log.Error().Err(err).Str("record_id", record.ID).Msg("failed to decode plaintext record")
			return PendingReceipt{Record: record}
		}
		return PendingReceipt{Record: record, Image: plain, Decrypted: true}
	}

	plain, err := s.cipher.Decrypt(&record.Image)
	if err != nil {
		decErr := &DecryptionError{RecordID: record.ID, Err: err}
		s.log.Error().Err(decErr).Str("record_id", record.ID).Msg("failed to decrypt offline record, returning ciphertext")
		return PendingReceipt{Record: record}
	}
	return PendingReceipt{Record: record, Image: plain, Decrypted: true}
}

// RemoveReceipt deletes a queued record. Removal is idempotent: removing an
// id that does not exist is not an error.
func (s *Store) RemoveReceipt(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("store: removing receipt %s: %w", id, err)
	}
	return nil
}

// SavePreference persists a user setting. Preferences are not
// security-sensitive and are stored unencrypted.
func (s *Store) SavePreference(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshaling preference %s: %w", key, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preferencesBucket)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("store: saving preference %s: %w", key, err)
	}
	return nil
}

// GetPreference reads a user setting into out. It reports whether the key
// was present.
func (s *Store) GetPreference(ctx context.Context, key string, out interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(preferencesBucket)).Get([]byte(key))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: reading preference %s: %w", key, err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("store: unmarshaling preference %s: %w", key, err)
	}
	return true, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

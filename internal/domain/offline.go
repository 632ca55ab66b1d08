package domain

// EncryptedImage holds a receipt image at rest: ciphertext plus the salt and
// IV needed to derive the per-record key. All fields are base64 encoded.
// When Version is zero the Ciphertext field actually holds the plaintext
// payload (explicit degraded mode, see the offline store).
type EncryptedImage struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt,omitempty"`
	IV         string `json:"iv,omitempty"`
	Ciphertext string `json:"ciphertext"`
}

// CaptureMetadata describes how a receipt image was captured
type CaptureMetadata struct {
	Method     string `json:"method,omitempty"` // "camera", "upload", ...
	DeviceInfo string `json:"device_info,omitempty"`
}

// OfflineReceiptRecord is the persisted unit of the durable offline queue.
// Records are created on offline capture, never mutated in place, and removed
// only after successful remote processing.
type OfflineReceiptRecord struct {
	ID                string          `json:"id"`
	Image             EncryptedImage  `json:"image"`
	Timestamp         int64           `json:"timestamp"` // epoch milliseconds
	Metadata          CaptureMetadata `json:"metadata"`
	EncryptionVersion int             `json:"encryption_version"`
}

// Encrypted reports whether the record's image is ciphertext at rest
func (r *OfflineReceiptRecord) Encrypted() bool {
	return r.EncryptionVersion > 0
}

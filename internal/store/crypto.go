package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// EncryptionVersion tags records encrypted with the current scheme
// (PBKDF2-SHA256 key derivation + AES-256-GCM)
const EncryptionVersion = 1

const (
	keyLength    = 32
	saltLength   = 16
	secretLength = 32

	// DefaultKeyIterations is the PBKDF2 iteration count used when the
	// configuration does not override it
	DefaultKeyIterations = 10000
)

// ErrSessionInvalidated is returned once the session secret has been cleared
var ErrSessionInvalidated = errors.New("store: session key invalidated")

// SessionKeyring holds the session-scoped secret all record keys are derived
// from. The secret lives only for the current session: after Invalidate
// (logout, session clear) previously encrypted records become unreadable.
// That is intentional — receipts captured offline are protected even if the
// device is compromised later.
type SessionKeyring struct {
	mu     sync.Mutex
	secret []byte
}

// NewSessionKeyring generates a fresh session secret
func NewSessionKeyring() (*SessionKeyring, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("store: generating session secret: %w", err)
	}
	return &SessionKeyring{secret: secret}, nil
}

// Secret returns the session secret, or ErrSessionInvalidated after logout
func (k *SessionKeyring) Secret() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.secret == nil {
		return nil, ErrSessionInvalidated
	}
	return k.secret, nil
}

// Invalidate wipes the session secret. Records encrypted under it can no
// longer be decrypted.
func (k *SessionKeyring) Invalidate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.secret {
		k.secret[i] = 0
	}
	k.secret = nil
}

// Cipher encrypts receipt images with keys derived from the session secret.
// Every call uses a fresh random salt and IV, so salts and IVs never repeat
// across records.
type Cipher struct {
	keyring    *SessionKeyring
	iterations int
}

// NewCipher creates a Cipher bound to a session keyring
func NewCipher(keyring *SessionKeyring, iterations int) *Cipher {
	if iterations <= 0 {
		iterations = DefaultKeyIterations
	}
	return &Cipher{keyring: keyring, iterations: iterations}
}

// Encrypt seals the plaintext with AES-256-GCM under a freshly derived key
func (c *Cipher) Encrypt(plain []byte) (*domain.EncryptedImage, error) {
	secret, err := c.keyring.Secret()
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("store: generating salt: %w", err)
	}

	gcm, err := c.aead(secret, salt)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("store: generating iv: %w", err)
	}

	ciphertext := gcm.Seal(nil, iv, plain, nil)

	return &domain.EncryptedImage{
		Version:    EncryptionVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens an encrypted image. Any tampering with ciphertext, salt or IV
// fails authentication; wrong plaintext is never returned silently.
func (c *Cipher) Decrypt(img *domain.EncryptedImage) ([]byte, error) {
	secret, err := c.keyring.Secret()
	if err != nil {
		return nil, err
	}
	if img.Version != EncryptionVersion {
		return nil, fmt.Errorf("store: unsupported encryption version %d", img.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(img.Salt)
	if err != nil {
		return nil, fmt.Errorf("store: decoding salt: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(img.IV)
	if err != nil {
		return nil, fmt.Errorf("store: decoding iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(img.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("store: decoding ciphertext: %w", err)
	}

	gcm, err := c.aead(secret, salt)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("store: invalid iv length %d", len(iv))
	}

	plain, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("store: authentication failed: %w", err)
	}
	return plain, nil
}

func (c *Cipher) aead(secret, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(secret, salt, c.iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("store: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("store: creating gcm: %w", err)
	}
	return gcm, nil
}

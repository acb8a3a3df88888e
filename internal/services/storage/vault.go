// Package storage decodes uploaded content, transparently decrypting
// age passphrase-encrypted uploads. Nothing is written to disk.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"filippo.io/age"
)

// ageHeader is the prefix of Age-encrypted payloads
const ageHeader = "age-encryption.org"

var (
	// ErrLocked is returned when encrypted content arrives and no passphrase is set
	ErrLocked = errors.New("content is encrypted but no passphrase is configured")

	// ErrWrongPassphrase is returned when the passphrase does not decrypt the content
	ErrWrongPassphrase = errors.New("incorrect passphrase")
)

// Vault holds the scrypt identity used to open encrypted uploads
type Vault struct {
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New creates a Vault. An empty passphrase leaves it locked; plain content still passes through.
func New(passphrase string) (*Vault, error) {
	v := &Vault{}
	if passphrase == "" {
		return v, nil
	}
	if err := v.Unlock(passphrase); err != nil {
		return nil, err
	}
	return v, nil
}

// Unlock sets the passphrase used for decryption and encryption
func (v *Vault) Unlock(passphrase string) error {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.identity = identity
	v.recipient = recipient
	return nil
}

// IsUnlocked returns true if a passphrase is loaded
func (v *Vault) IsUnlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.identity != nil
}

// Decode returns plain content unchanged and decrypts age content
func (v *Vault) Decode(data []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return data, nil
	}

	v.mu.RLock()
	identity := v.identity
	v.mu.RUnlock()

	if identity == nil {
		return nil, ErrLocked
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted content: %w", err)
	}
	return plain, nil
}

// Encrypt encrypts data with the vault passphrase
func (v *Vault) Encrypt(data []byte) ([]byte, error) {
	v.mu.RLock()
	recipient := v.recipient
	v.mu.RUnlock()

	if recipient == nil {
		return nil, ErrLocked
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsEncrypted checks if data starts with the Age encryption header
func IsEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

const (
	// Sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	// PBKDF2 parameters for the global key
	DefaultIterations = 10000
	globalSalt        = "shelfkey-global"

	// Length of derived key strings, in hex characters
	derivedKeyLen = 32
)

// Errors
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrInvalidKey        = errors.New("invalid key")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrNoDataRoot        = errors.New("vendor data root is not configured")
	ErrNoDeviceSecret    = errors.New("device secret is not configured")
)

// Provider is the reference implementation of vendor.Capability.
//
// It is a self-consistent stand-in for the vendor backend: stores, key
// files and content are AES-256-GCM sealed with keys derived from a
// configured device secret.
type Provider struct {
	root         string
	deviceSecret string
	iterations   int

	mu        sync.Mutex
	globalKey vendor.Key
}

var _ vendor.Capability = (*Provider)(nil)

// NewProvider creates a provider for the given data root and device secret.
func NewProvider(root, deviceSecret string) *Provider {
	return &Provider{
		root:         root,
		deviceSecret: deviceSecret,
		iterations:   DefaultIterations,
	}
}

// DataRoot returns the configured data root.
func (p *Provider) DataRoot() (string, error) {
	if p.root == "" {
		return "", ErrNoDataRoot
	}
	return p.root, nil
}

// GlobalKey derives the global key from the device secret. The result is cached.
func (p *Provider) GlobalKey() (vendor.Key, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.globalKey != "" {
		return p.globalKey, nil
	}
	if p.deviceSecret == "" {
		return "", ErrNoDeviceSecret
	}

	raw := pbkdf2.Key([]byte(p.deviceSecret), []byte(globalSalt), p.iterations, derivedKeyLen/2, sha256.New)
	p.globalKey = vendor.Key(hex.EncodeToString(raw))
	return p.globalKey, nil
}

// UserKey derives the key for a named store of one user.
func (p *Provider) UserKey(name, userID string) (vendor.Key, error) {
	global, err := p.GlobalKey()
	if err != nil {
		return "", err
	}
	return deriveNamedKey(global, name, userID), nil
}

// deriveNamedKey computes HMAC-SHA256(global, name ":" userID) as hex.
func deriveNamedKey(global vendor.Key, name, userID string) vendor.Key {
	h := hmac.New(sha256.New, []byte(global))
	h.Write([]byte(name + ":" + userID))
	return vendor.Key(hex.EncodeToString(h.Sum(nil))[:derivedKeyLen])
}

// DecryptStore decrypts a datastore blob to text.
func (p *Provider) DecryptStore(key vendor.Key, path string) (string, error) {
	return openFile(key, path)
}

// DecryptKeyFile decrypts a per-book key blob.
func (p *Provider) DecryptKeyFile(key vendor.Key, path string) (string, error) {
	return openFile(key, path)
}

// DecryptBinary decrypts a file sealed as one payload.
func (p *Provider) DecryptBinary(key vendor.Key, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	plaintext, err := Open(data, key)
	if err != nil {
		return fmt.Errorf("decrypt content: %w", err)
	}

	return writeFileAtomic(dst, plaintext)
}

func openFile(key vendor.Key, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	plaintext, err := Open(data, key)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", path, err)
	}

	return string(plaintext), nil
}

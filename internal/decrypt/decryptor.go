// Package decrypt turns an encrypted book file into plaintext.
package decrypt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/keystore"
	"github.com/TheMichaelB/shelfkey/internal/models"
	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

// Position of the content key inside a decrypted key blob. These are fixed by
// the vendor's key file layout.
const (
	KeyOffset = 68
	KeyLength = 16
)

// strategy decrypts src into dst with the content key.
type strategy struct {
	name string
	run  func(key vendor.Key, src, dst string) error
}

// Decryptor decrypts book content files.
type Decryptor struct {
	backend vendor.Capability
	keys    *keystore.Store
	logger  *events.Logger
}

// New creates a decryptor.
func New(backend vendor.Capability, keys *keystore.Store, logger *events.Logger) *Decryptor {
	return &Decryptor{
		backend: backend,
		keys:    keys,
		logger:  logger.WithField("component", "decrypt"),
	}
}

// Decrypt writes the plaintext of filePath to targetPath. The content key is
// read from keyPath, itself sealed with the base key. Archive decryption is
// tried before binary decryption; when both fail the binary error is
// returned unchanged. Once started, both strategies run even if ctx is
// cancelled.
func (d *Decryptor) Decrypt(ctx context.Context, keyPath, filePath, targetPath string) error {
	base, err := d.keys.Get()
	if err != nil {
		return err
	}

	contentKey, err := d.contentKey(base, keyPath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(targetPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create target directory: %w", err)
		}
	}

	logger := events.Annotate(ctx, d.logger)

	var lastErr error
	for _, s := range d.strategies() {
		err := s.run(contentKey, filePath, targetPath)
		if err == nil {
			logger.WithFields(map[string]interface{}{
				"file":     filePath,
				"strategy": s.name,
			}).Debug("Content decrypted")
			return nil
		}

		logger.WithFields(map[string]interface{}{
			"file":     filePath,
			"strategy": s.name,
			"error":    err.Error(),
		}).Debug("Decryption strategy failed")
		lastErr = err
	}

	return lastErr
}

func (d *Decryptor) strategies() []strategy {
	return []strategy{
		{name: models.StrategyArchive, run: d.backend.DecryptArchive},
		{name: models.StrategyBinary, run: d.backend.DecryptBinary},
	}
}

// contentKey extracts the content key from the key blob at keyPath.
func (d *Decryptor) contentKey(base vendor.Key, keyPath string) (vendor.Key, error) {
	blob, err := d.backend.DecryptKeyFile(base, keyPath)
	if err != nil {
		return "", &models.DecryptError{Path: keyPath, Strategy: models.StrategyKey, Err: err}
	}

	if len(blob) < KeyOffset+KeyLength {
		return "", &models.DecryptError{
			Path:     keyPath,
			Strategy: models.StrategyKey,
			Err:      fmt.Errorf("key blob is %d bytes, need %d", len(blob), KeyOffset+KeyLength),
		}
	}

	return vendor.Key(blob[KeyOffset : KeyOffset+KeyLength]), nil
}

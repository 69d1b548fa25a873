package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

const (
	keyFileName = ".cfgkey"
	keySize     = 32 // 256-bit SQLCipher key
)

// FileKeyProvider keeps the config store key in a 0600 file in the config
// directory. The file is written once and never replaced.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given config directory.
func NewFileKeyProvider(configDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(configDir, keyFileName),
	}
}

// GetKey reads and decodes the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return decodeKey(encoded)
}

// StoreKey publishes key as the key file. The encoded key is written to a
// temp file first and hard-linked into place, so readers never see a
// partial key and a second writer gets domain.ErrKeyExists.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	dir := filepath.Dir(p.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, keyFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeKeyFile(tmp, key); err != nil {
		return err
	}

	if err := os.Link(tmp.Name(), p.keyPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.ErrKeyExists
		}
		return fmt.Errorf("failed to publish key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

func writeKeyFile(f *os.File, key []byte) error {
	defer f.Close()
	if err := f.Chmod(0600); err != nil {
		return fmt.Errorf("failed to set key file mode: %w", err)
	}
	if _, err := f.WriteString(base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync key file: %w", err)
	}
	return f.Close()
}

func decodeKey(encoded []byte) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating and storing one on first
// run. When another process stores its key first, that key is returned
// and the generated one is discarded.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	switch err := provider.StoreKey(key); {
	case errors.Is(err, domain.ErrKeyExists):
		return provider.GetKey()
	case err != nil:
		return nil, err
	}
	return key, nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)

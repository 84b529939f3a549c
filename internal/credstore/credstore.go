// Package credstore provides secure storage for platform credentials
// using AES-256-GCM encryption.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/stagesync/internal/crypto"
	"github.com/mrlokans/stagesync/internal/entities"
)

const (
	// EnvEncryptionKey is the environment variable for the encryption key
	EnvEncryptionKey = "CREDENTIAL_ENCRYPTION_KEY"

	// DefaultKeyFileName is the default name for the key file
	DefaultKeyFileName = ".stagesync-credential-key"
)

// passphraseSalt keys scrypt derivation for passphrase-configured
// deployments. Changing it invalidates every stored credential.
var passphraseSalt = []byte("stagesync.credentials.v1")

// Store provides encrypted persistence of platform credentials.
type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// Config holds configuration for the credential store.
type Config struct {
	// EncryptionKey is the base64-encoded 32-byte encryption key.
	// Takes precedence over Passphrase.
	EncryptionKey string

	// Passphrase derives the key via scrypt when no raw key is set.
	Passphrase string

	// KeyFilePath is the path of the generated key file used when
	// neither a key nor a passphrase is configured.
	KeyFilePath string
}

// New creates a credential store over an already opened database.
func New(db *gorm.DB, cfg Config) (*Store, error) {
	encryptor, err := resolveEncryptor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}
	return &Store{db: db, encryptor: encryptor}, nil
}

// resolveEncryptor picks the key source: explicit key, passphrase,
// environment variable, then a generated key file.
func resolveEncryptor(cfg Config) (*crypto.Encryptor, error) {
	if cfg.EncryptionKey != "" {
		return crypto.NewEncryptorFromBase64(cfg.EncryptionKey)
	}

	if cfg.Passphrase != "" {
		return crypto.NewEncryptorFromPassphrase(cfg.Passphrase, passphraseSalt)
	}

	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return crypto.NewEncryptorFromBase64(envKey)
	}

	keyFilePath := cfg.KeyFilePath
	if keyFilePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		keyFilePath = filepath.Join(homeDir, DefaultKeyFileName)
	}

	if data, err := os.ReadFile(keyFilePath); err == nil {
		return crypto.NewEncryptorFromBase64(string(data))
	}

	// Generate a new key and persist it with restricted permissions
	newKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newKey), 0600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	fmt.Printf("Generated new credential encryption key and saved to %s\n", keyFilePath)
	return crypto.NewEncryptorFromBase64(newKey)
}

// Save encrypts and upserts a platform credential.
func (s *Store) Save(cred *entities.DecryptedCredential) error {
	encSecret, err := s.encryptor.Encrypt(cred.Secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	record := &entities.PlatformCredential{
		PlatformID: cred.PlatformID,
		Secret:     encSecret,
		TokenType:  cred.TokenType,
		ExpiresAt:  cred.ExpiresAt,
		Scope:      cred.Scope,
	}

	result := s.db.Where("platform_id = ?", cred.PlatformID).
		Assign(map[string]any{
			"secret":     encSecret,
			"token_type": cred.TokenType,
			"expires_at": cred.ExpiresAt,
			"scope":      cred.Scope,
			"updated_at": time.Now(),
		}).
		FirstOrCreate(record)

	if result.Error != nil {
		return fmt.Errorf("failed to save credential: %w", result.Error)
	}
	return nil
}

// Get retrieves and decrypts a platform's credential.
// Returns nil without error when no credential is stored.
func (s *Store) Get(platformID string) (*entities.DecryptedCredential, error) {
	var record entities.PlatformCredential
	result := s.db.Where("platform_id = ?", platformID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}

	secret, err := s.encryptor.Decrypt(record.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return &entities.DecryptedCredential{
		PlatformID: record.PlatformID,
		Secret:     secret,
		TokenType:  record.TokenType,
		ExpiresAt:  record.ExpiresAt,
		Scope:      record.Scope,
	}, nil
}

// Delete removes a platform's credential.
func (s *Store) Delete(platformID string) error {
	result := s.db.Where("platform_id = ?", platformID).
		Delete(&entities.PlatformCredential{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", result.Error)
	}
	return nil
}

// UpdateLastUsed stamps the last_used_at timestamp for a credential.
func (s *Store) UpdateLastUsed(platformID string) error {
	result := s.db.Model(&entities.PlatformCredential{}).
		Where("platform_id = ?", platformID).
		Update("last_used_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to update last used: %w", result.Error)
	}
	return nil
}

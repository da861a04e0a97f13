package hipaa

import (
	"fmt"

	"github.com/rs/zerolog"
)

// KeyConfig carries HIPAA_ENCRYPTION_KEY and its rotation settings.
type KeyConfig struct {
	Key          string // hex, 32 bytes
	Version      int
	PreviousKeys string // "1:<hex>,2:<hex>"
}

// EncryptionService is the encryptor handed to repositories. With no key
// configured it passes values through unchanged.
type EncryptionService struct {
	encryptor *RotatingEncryptor
}

func NewEncryptionService(cfg KeyConfig, logger zerolog.Logger) (*EncryptionService, error) {
	if cfg.Key == "" {
		logger.Warn().Msg("PHI encryption disabled: HIPAA_ENCRYPTION_KEY is not set")
		return &EncryptionService{}, nil
	}

	key, err := decodeKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY %w", err)
	}
	version := cfg.Version
	if version == 0 {
		version = 1
	}

	enc, err := NewRotatingEncryptor(key, version)
	if err != nil {
		return nil, err
	}

	previous, err := ParsePreviousKeys(cfg.PreviousKeys)
	if err != nil {
		return nil, fmt.Errorf("HIPAA_PREVIOUS_KEYS: %w", err)
	}
	for v, k := range previous {
		if err := enc.AddPreviousKey(k, v); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Int("key_version", version).
		Int("previous_keys", len(previous)).
		Msg("PHI field-level encryption enabled")
	return &EncryptionService{encryptor: enc}, nil
}

func (s *EncryptionService) Encrypt(value string) (string, error) {
	if s.encryptor == nil {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

func (s *EncryptionService) Decrypt(value string) (string, error) {
	if s.encryptor == nil {
		return value, nil
	}
	return s.encryptor.Decrypt(value)
}

// NeedsReEncryption is always false when encryption is disabled.
func (s *EncryptionService) NeedsReEncryption(value string) bool {
	if s.encryptor == nil {
		return false
	}
	return s.encryptor.NeedsReEncryption(value)
}

func (s *EncryptionService) IsEnabled() bool {
	return s.encryptor != nil
}

package hipaa

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Ciphertexts written by RotatingEncryptor look like "v2:<base64>".
const (
	keyVersionPrefix    = "v"
	keyVersionSeparator = ":"
)

// RotatingEncryptor encrypts with the current key version and can still
// decrypt anything written under a registered previous version.
type RotatingEncryptor struct {
	mu         sync.RWMutex
	current    *PHIEncryptor
	currentVer int
	previous   map[int]*PHIEncryptor
}

func NewRotatingEncryptor(currentKey []byte, currentVersion int) (*RotatingEncryptor, error) {
	if currentVersion <= 0 {
		return nil, fmt.Errorf("rotating encryptor: key version must be positive, got %d", currentVersion)
	}
	enc, err := NewPHIEncryptor(currentKey)
	if err != nil {
		return nil, fmt.Errorf("rotating encryptor: current key: %w", err)
	}
	return &RotatingEncryptor{
		current:    enc,
		currentVer: currentVersion,
		previous:   make(map[int]*PHIEncryptor),
	}, nil
}

// AddPreviousKey registers a retired key for decryption only.
func (r *RotatingEncryptor) AddPreviousKey(key []byte, version int) error {
	if version == r.currentVer {
		return fmt.Errorf("rotating encryptor: version %d is the current key", version)
	}
	enc, err := NewPHIEncryptor(key)
	if err != nil {
		return fmt.Errorf("rotating encryptor: previous key v%d: %w", version, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previous[version] = enc
	return nil
}

func (r *RotatingEncryptor) Encrypt(plaintext string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ciphertext, err := r.current.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return keyVersionPrefix + strconv.Itoa(r.currentVer) + keyVersionSeparator + ciphertext, nil
}

// Decrypt picks the key from the version prefix. Unprefixed values are
// treated as written by the current key.
func (r *RotatingEncryptor) Decrypt(ciphertext string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, data, ok := parseVersionedCiphertext(ciphertext)
	if !ok {
		return r.current.Decrypt(ciphertext)
	}
	if version == r.currentVer {
		return r.current.Decrypt(data)
	}
	enc, found := r.previous[version]
	if !found {
		return "", fmt.Errorf("no key available for version %d", version)
	}
	return enc.Decrypt(data)
}

// NeedsReEncryption reports whether ciphertext was written under a key other
// than the current one.
func (r *RotatingEncryptor) NeedsReEncryption(ciphertext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, _, ok := parseVersionedCiphertext(ciphertext)
	return !ok || version != r.currentVer
}

// ReEncrypt rewrites ciphertext under the current key.
func (r *RotatingEncryptor) ReEncrypt(ciphertext string) (string, error) {
	plaintext, err := r.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("re-encrypt: decrypt: %w", err)
	}
	return r.Encrypt(plaintext)
}

func (r *RotatingEncryptor) CurrentVersion() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentVer
}

func parseVersionedCiphertext(s string) (int, string, bool) {
	if !strings.HasPrefix(s, keyVersionPrefix) {
		return 0, "", false
	}
	idx := strings.Index(s, keyVersionSeparator)
	if idx < 0 {
		return 0, "", false
	}
	version, err := strconv.Atoi(s[len(keyVersionPrefix):idx])
	if err != nil {
		return 0, "", false
	}
	return version, s[idx+1:], true
}

// ParsePreviousKeys parses "1:<hex>,2:<hex>" into version-keyed raw keys.
func ParsePreviousKeys(s string) (map[int][]byte, error) {
	keys := make(map[int][]byte)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		verStr, hexKey, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("previous key %q: expected <version>:<hex>", part)
		}
		version, err := strconv.Atoi(verStr)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("previous key %q: invalid version", part)
		}
		key, err := decodeKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("previous key v%d: %w", version, err)
		}
		keys[version] = key
	}
	return keys, nil
}

func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-gateways/core"
)

// SealedPrefix marks provider config values sealed with an app key.
const SealedPrefix = "gateways.secret.v1:"

const sealedAlgorithm = "aes-256-gcm"

type SealerOption func(*AppKeySealer)

type appKey struct {
	id      string
	version int
	key     []byte
}

// AppKeySealer seals credentials such as provider private keys and API secrets
// with AES-GCM. Previous keys stay available for unsealing during rotation.
type AppKeySealer struct {
	current  appKey
	previous []appKey
}

type sealedSecret struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func WithKeyID(id string) SealerOption {
	return func(s *AppKeySealer) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			s.current.id = trimmed
		}
	}
}

func WithVersion(version int) SealerOption {
	return func(s *AppKeySealer) {
		if version > 0 {
			s.current.version = version
		}
	}
}

// WithPreviousKey keeps a retired key for unsealing values sealed before a
// rotation. It is never used to seal.
func WithPreviousKey(keyMaterial []byte, id string, version int) SealerOption {
	return func(s *AppKeySealer) {
		key := bytes.TrimSpace(keyMaterial)
		if len(key) == 0 || strings.TrimSpace(id) == "" {
			return
		}
		s.previous = append(s.previous, appKey{id: strings.TrimSpace(id), version: version, key: normalizeKey(key)})
	}
}

func NewAppKeySealer(keyMaterial []byte, opts ...SealerOption) (*AppKeySealer, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	sealer := &AppKeySealer{current: appKey{id: "app-key", version: 1, key: normalizeKey(key)}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(sealer)
	}
	return sealer, nil
}

func NewAppKeySealerFromString(key string, opts ...SealerOption) (*AppKeySealer, error) {
	return NewAppKeySealer([]byte(key), opts...)
}

func (s *AppKeySealer) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: sealer is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := newGCM(s.current.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	data, err := json.Marshal(sealedSecret{
		KeyID:      s.current.id,
		Version:    s.current.version,
		Algorithm:  sealedAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("security: encode sealed secret: %w", err)
	}
	return append([]byte(SealedPrefix), data...), nil
}

func (s *AppKeySealer) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: sealer is nil")
	}
	payload := strings.TrimSpace(string(ciphertext))
	if !strings.HasPrefix(payload, SealedPrefix) {
		return nil, fmt.Errorf("security: invalid sealed secret prefix")
	}
	var parsed sealedSecret
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, SealedPrefix)), &parsed); err != nil {
		return nil, fmt.Errorf("security: decode sealed secret: %w", err)
	}
	key, ok := s.keyFor(parsed.KeyID, parsed.Version)
	if !ok {
		return nil, fmt.Errorf("security: no key for kid %q version %d", parsed.KeyID, parsed.Version)
	}
	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("security: decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}
	gcm, err := newGCM(key.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

// Seal returns value sealed as text suitable for a config file.
func (s *AppKeySealer) Seal(ctx context.Context, value string) (string, error) {
	sealed, err := s.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// Unseal opens sealed config values and passes plain values through unchanged.
func (s *AppKeySealer) Unseal(ctx context.Context, value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	plaintext, err := s.Decrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *AppKeySealer) KeyID() string {
	if s == nil {
		return ""
	}
	return s.current.id
}

func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), SealedPrefix)
}

// UnsealAll opens every sealed entry of values in place.
func UnsealAll(ctx context.Context, provider core.SecretProvider, values ...*string) error {
	for _, value := range values {
		if value == nil || !IsSealed(*value) {
			continue
		}
		if provider == nil {
			return fmt.Errorf("security: sealed value found but no secret provider configured")
		}
		plaintext, err := provider.Decrypt(ctx, []byte(*value))
		if err != nil {
			return err
		}
		*value = string(plaintext)
	}
	return nil
}

func (s *AppKeySealer) keyFor(id string, version int) (appKey, bool) {
	candidates := append([]appKey{s.current}, s.previous...)
	for _, candidate := range candidates {
		if id != "" && candidate.id != id {
			continue
		}
		if version > 0 && candidate.version != version {
			continue
		}
		return candidate, true
	}
	return appKey{}, false
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySealer)(nil)

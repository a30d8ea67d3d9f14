package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"
)

// Sealer is an AES-GCM envelope for payloads that must cross the client
// without being persisted server-side, such as an unconfirmed TOTP secret.
// The ciphertext embeds an expiry so stale setup tokens are rejected even
// though no state exists for them.
type Sealer struct {
	aead cipher.AEAD
	now  func() time.Time
}

type sealedEnvelope struct {
	ExpiresAt int64           `json:"exp"`
	Payload   json.RawMessage `json:"pld"`
}

// NewSealer builds a sealer. The key length selects AES-128/192/256.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead, now: time.Now}, nil
}

// SetNowFunc replaces the sealer's clock. Intended for tests.
func (s *Sealer) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Seal encrypts v with the given lifetime and returns a compact base64url
// string. A fresh random nonce prefixes every ciphertext.
func (s *Sealer) Seal(v any, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal(sealedEnvelope{
		ExpiresAt: s.now().Add(ttl).Unix(),
		Payload:   payload,
	})
	if err != nil {
		return "", err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, envelope, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts raw into v. Tampered or truncated input fails with
// ErrInvalid; a valid but stale envelope fails with ErrExpired.
func (s *Sealer) Open(raw string, v any) error {
	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return ErrInvalid
	}
	if len(sealed) < s.aead.NonceSize() {
		return ErrInvalid
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrInvalid
	}
	var envelope sealedEnvelope
	if err := json.Unmarshal(plain, &envelope); err != nil {
		return ErrInvalid
	}
	if s.now().Unix() > envelope.ExpiresAt {
		return ErrExpired
	}
	if err := json.Unmarshal(envelope.Payload, v); err != nil {
		return ErrInvalid
	}
	return nil
}

// Package auth owns the two halves of credential handling: the encrypted
// at-rest store for a user's HoYoLAB cookie pair, and the correlator that
// bridges a suspended command to the later credential submission.
package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const credKeyPrefix = "cred:"

// Credential is a user's long-lived HoYoLAB cookie pair. The token is a
// secret: it never appears in logs or user-facing messages.
type Credential struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// Valid reports whether both halves are present.
func (c Credential) Valid() bool {
	return c.UID != "" && c.Token != ""
}

// KV is the slice of the shared store the credential store uses.
type KV interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any, ttl time.Duration) error
	Delete(key string)
}

// CredentialStore persists credentials sealed with XChaCha20-Poly1305.
// Values on disk are nonce-prefixed ciphertext, base64-encoded.
type CredentialStore struct {
	kv   KV
	aead cipher.AEAD
}

// NewCredentialStore builds a store from a 32-byte hex-encoded key.
func NewCredentialStore(kv KV, hexKey string) (*CredentialStore, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("auth: decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("auth: encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: init cipher: %w", err)
	}
	return &CredentialStore{kv: kv, aead: aead}, nil
}

// Get returns the credential for userID, if one exists.
func (s *CredentialStore) Get(userID string) (Credential, bool, error) {
	var sealed string
	found, err := s.kv.Get(credKeyPrefix+userID, &sealed)
	if err != nil || !found {
		return Credential{}, false, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return Credential{}, false, fmt.Errorf("auth: decode credential: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return Credential{}, false, fmt.Errorf("auth: credential record too short")
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return Credential{}, false, fmt.Errorf("auth: unseal credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(plain, &cred); err != nil {
		return Credential{}, false, fmt.Errorf("auth: unmarshal credential: %w", err)
	}
	return cred, true, nil
}

// Put stores the credential for userID, replacing any previous one. Called
// on first successful authentication and on every re-submission.
func (s *CredentialStore) Put(userID string, cred Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("auth: refusing to store incomplete credential")
	}

	plain, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("auth: marshal credential: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("auth: nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plain, []byte(userID))
	return s.kv.Set(credKeyPrefix+userID, base64.StdEncoding.EncodeToString(sealed), 0)
}

// Delete removes the credential for userID.
func (s *CredentialStore) Delete(userID string) {
	s.kv.Delete(credKeyPrefix + userID)
}

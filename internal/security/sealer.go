// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security provides session audit logging and token protection at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/jeranaias/hms-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a stored value as sealed (format: ENC1:base64(nonce|ciphertext|tag)).
const SealedPrefix = "ENC1:"

// MasterKeySize is the size of the on-disk master key.
const MasterKeySize = 32

// tokenKeyInfo binds the derived key to its single purpose.
const tokenKeyInfo = "hms-tui session token v1"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDecryptionFailed indicates a wrong key or tampered ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidCiphertext indicates a malformed sealed value.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrInvalidMasterKey indicates a key file of the wrong size.
	ErrInvalidMasterKey = errors.New("invalid master key")
)

// ZeroBytes overwrites key material.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// SEALER
// =============================================================================

// Sealer encrypts the bearer token before it reaches durable storage.
// AES-256-GCM with a key derived from the master key by HKDF-SHA256.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the token key from masterKey.
func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidMasterKey, len(masterKey), MasterKeySize)
	}

	key := make([]byte, 32)
	defer ZeroBytes(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(tokenKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values without SealedPrefix were
// written while sealing was disabled and are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// =============================================================================
// MASTER KEY FILE
// =============================================================================

// LoadOrCreateMasterKey reads the base64 master key at path, creating a new
// random key with 0600 permissions if none exists.
func LoadOrCreateMasterKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKey, decErr)
		}
		if len(key) != MasterKeySize {
			ZeroBytes(key)
			return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidMasterKey, len(key), MasterKeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := util.AtomicWriteFile(path, []byte(encoded+"\n"), 0600); err != nil {
		ZeroBytes(key)
		return nil, fmt.Errorf("failed to store master key: %w", err)
	}
	return key, nil
}

// Package cryptox seals JSON payloads with AES-GCM and derives symmetric
// keys from operator-supplied secrets.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of keys produced by DeriveKey (AES-256).
const KeySize = 32

// ErrMalformed is returned by OpenJSON when the sealed blob is too short to
// contain a nonce and an authentication tag.
var ErrMalformed = errors.New("malformed ciphertext")

// ErrAuthFailed is returned by OpenJSON when the ciphertext does not
// authenticate under the given key (wrong key or tampered data).
var ErrAuthFailed = errors.New("message authentication failed")

// DeriveKey stretches secret with argon2id into a KeySize-byte AES key.
// The same secret and salt always yield the same key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// SealJSON serializes v to JSON and encrypts it with AES-GCM under key.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A fresh
// random nonce is generated per call and prepended to the ciphertext, so the
// result is nonce || ciphertext || tag and can be opened with OpenJSON alone.
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenJSON reverses SealJSON: it splits off the nonce, authenticates and
// decrypts the remainder, and unmarshals the JSON plaintext into v.
//
// Any modification of sealed yields ErrAuthFailed (or ErrMalformed when the
// input is truncated below the minimum size); it never panics.
func OpenJSON(sealed, key []byte, v any) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return ErrMalformed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrAuthFailed
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aead, nil
}

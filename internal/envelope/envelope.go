// Package envelope seals JSON payloads into authenticated, encrypted
// envelopes before they cross the network boundary to the reasoning service.
package envelope

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrAuthentication is returned when a ciphertext fails authentication:
	// it was modified in transit or sealed under a different secret.
	ErrAuthentication = errors.New("envelope authentication failed")

	// ErrMalformed is returned when an envelope is structurally invalid.
	ErrMalformed = errors.New("malformed envelope")

	// ErrEmptySecret is returned when a codec is built without a secret.
	ErrEmptySecret = errors.New("envelope secret is empty")
)

// Key derivation parameters. Changing either breaks compatibility with
// deployed reasoning services.
var (
	kdfSalt = []byte("interview-engine/envelope/v1")
	kdfInfo = []byte("xchacha20poly1305 key")
)

// Envelope is the wire representation of a sealed payload.
// Byte fields are base64 encoded by encoding/json.
type Envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Codec seals and opens envelopes with a key derived from a pre-shared secret.
// A Codec is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCodec derives the symmetric key from secret and returns a ready codec
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), kdfSalt, kdfInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive envelope key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *Codec) Encrypt(plaintext []byte) (Envelope, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return Envelope{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return Envelope{
		Nonce:      nonce,
		Ciphertext: c.aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Decrypt authenticates and opens an envelope. It never returns partial plaintext.
func (c *Codec) Decrypt(env Envelope) ([]byte, error) {
	if len(env.Nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", ErrMalformed, len(env.Nonce), c.aead.NonceSize())
	}
	if len(env.Ciphertext) < c.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrMalformed)
	}

	plaintext, err := c.aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// Seal marshals payload as JSON and encrypts it
func (c *Codec) Seal(payload any) (Envelope, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.Encrypt(plaintext)
}

// Open decrypts env and unmarshals the JSON payload into out
func (c *Codec) Open(env Envelope, out any) error {
	plaintext, err := c.Decrypt(env)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: payload is not valid JSON: %v", ErrMalformed, err)
	}
	return nil
}

// Marshal seals payload and returns the envelope's JSON encoding
func (c *Codec) Marshal(payload any) ([]byte, error) {
	env, err := c.Seal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal parses a JSON envelope and opens it into out
func (c *Codec) Unmarshal(data []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c.Open(env, out)
}

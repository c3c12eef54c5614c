// Package security encrypts review artifacts at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

const charset = "qwertyuiopasdfghjklzxcvbnmQWERTYUIOPASDFGHJKLZXCVBNM1234567890-_|!/"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Encrypter interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

// AESEncrypter seals data with AES-GCM and hex encodes nonce+ciphertext.
type AESEncrypter struct {
	aead cipher.AEAD
}

// NewAESEncrypter accepts a 16, 24 or 32 byte key.
func NewAESEncrypter(key []byte) (*AESEncrypter, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("artifact key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}
	return &AESEncrypter{aead: gcm}, nil
}

func (e *AESEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, hex.EncodedLen(len(sealed)))
	hex.Encode(out, sealed)
	return out, nil
}

func (e *AESEncrypter) Decrypt(encoded []byte) ([]byte, error) {
	sealed := make([]byte, hex.DecodedLen(len(encoded)))
	if _, err := hex.Decode(sealed, encoded); err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", err)
	}
	return plaintext, nil
}

// GenerateRandomKey returns a printable key of the given length.
func GenerateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	limit := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

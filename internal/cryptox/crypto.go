// Package cryptox wraps the AEAD primitives used for field-level encryption.
//
// Ciphertext and authentication tag are handled separately ("detached") so
// the wire format can carry them as distinct fields: the ciphertext always
// has exactly the plaintext's length and the tag has the AEAD's overhead
// length, which lets the receiving side split and verify deterministically.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	AlgorithmAES256GCM        = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 = "chacha20-poly1305"

	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// NormalizeAlgorithm maps accepted spellings of an algorithm identifier to
// the canonical constant. Unknown identifiers are returned lowercased.
func NormalizeAlgorithm(algorithm string) string {
	switch a := strings.ToLower(strings.TrimSpace(algorithm)); a {
	case "", "aes-gcm", "aes256gcm", AlgorithmAES256GCM:
		return AlgorithmAES256GCM
	case "chacha20poly1305", AlgorithmChaCha20Poly1305:
		return AlgorithmChaCha20Poly1305
	default:
		return a
	}
}

// NewAEAD builds an AEAD for the given algorithm with the requested nonce
// and tag lengths.
//
// AES-256-GCM accepts a non-standard nonce size or a non-standard tag size
// (12..16 bytes), but not both at once. ChaCha20-Poly1305 only supports the
// 12-byte nonce and 16-byte tag.
func NewAEAD(algorithm string, key []byte, nonceSize, tagSize int) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrInvalidKeyBundle, KeySize, len(key))
	}

	switch NormalizeAlgorithm(algorithm) {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		switch {
		case nonceSize == NonceSize && tagSize == TagSize:
			return cipher.NewGCM(block)
		case nonceSize == NonceSize:
			return cipher.NewGCMWithTagSize(block, tagSize)
		case tagSize == TagSize && nonceSize > 0:
			return cipher.NewGCMWithNonceSize(block, nonceSize)
		default:
			return nil, fmt.Errorf("%w: nonce %d / tag %d", common.ErrUnsupportedAlgorithm, nonceSize, tagSize)
		}

	case AlgorithmChaCha20Poly1305:
		if nonceSize != chacha20poly1305.NonceSize || tagSize != chacha20poly1305.Overhead {
			return nil, fmt.Errorf("%w: chacha20-poly1305 needs nonce %d / tag %d",
				common.ErrUnsupportedAlgorithm, chacha20poly1305.NonceSize, chacha20poly1305.Overhead)
		}
		return chacha20poly1305.New(key)

	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, algorithm)
	}
}

// NewNonce reads size bytes from r. Callers pass crypto/rand.Reader in
// production; a nonce must never be reused under the same key.
func NewNonce(r io.Reader, size int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	nonce := make([]byte, size)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return nonce, nil
}

// GenerateKey returns a fresh random 256-bit key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// SealDetached encrypts plaintext and returns ciphertext and tag separately.
// len(ciphertext) == len(plaintext) and len(tag) == aead.Overhead().
func SealDetached(aead cipher.AEAD, nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	if len(nonce) != aead.NonceSize() {
		return nil, nil, fmt.Errorf("nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - aead.Overhead()

	return sealed[:split:split], sealed[split:], nil
}

// OpenDetached verifies tag and decrypts ciphertext. aad must match the value
// used when sealing.
func OpenDetached(aead cipher.AEAD, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	if len(tag) != aead.Overhead() {
		return nil, fmt.Errorf("tag must be %d bytes, got %d", aead.Overhead(), len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	return aead.Open(nil, nonce, sealed, aad)
}

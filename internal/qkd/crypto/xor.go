// Package crypto holds the classical ciphers applied to a distilled BB84 key.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// ErrEmptyKey is returned when a cipher is given a zero-length key
var ErrEmptyKey = errors.New("cipher key is empty")

// KeyMode selects how key bits become the repeating byte key
type KeyMode string

const (
	// KeyPacked packs the key bits MSB-first into bytes
	KeyPacked KeyMode = "packed"
	// KeyASCII uses each key bit as the character '0' or '1'. This matches
	// ciphertexts produced by tools that treat the key as a text string.
	KeyASCII KeyMode = "ascii"
)

// ParseKeyMode parses a KeyMode name
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case KeyPacked, KeyASCII:
		return KeyMode(s), nil
	default:
		return "", fmt.Errorf("unknown key mode %q", s)
	}
}

// XORCipher is a repeating-key XOR cipher over a BB84 key
type XORCipher struct {
	key []byte
}

// NewXORCipher derives the repeating byte key from bits
func NewXORCipher(bits []quantum.Bit, mode KeyMode) (*XORCipher, error) {
	if len(bits) == 0 {
		return nil, ErrEmptyKey
	}
	var key []byte
	switch mode {
	case KeyPacked, "":
		key = quantum.BitsToBytes(bits)
	case KeyASCII:
		key = []byte(quantum.FormatBits(bits))
	default:
		return nil, fmt.Errorf("unknown key mode %q", mode)
	}
	return &XORCipher{key: key}, nil
}

// Encrypt XORs plaintext with the key, wrapping the key cyclically
func (c *XORCipher) Encrypt(plaintext []byte) []byte {
	return c.apply(plaintext)
}

// Decrypt reverses Encrypt
func (c *XORCipher) Decrypt(ciphertext []byte) []byte {
	return c.apply(ciphertext)
}

// EncryptHex encrypts plaintext and hex-encodes the result
func (c *XORCipher) EncryptHex(plaintext string) string {
	return hex.EncodeToString(c.apply([]byte(plaintext)))
}

// DecryptHex decodes a hex ciphertext and decrypts it
func (c *XORCipher) DecryptHex(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	return string(c.apply(raw)), nil
}

func (c *XORCipher) apply(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ c.key[i%len(c.key)]
	}
	return out
}

// Package secrets implements the symmetric encryption used for sensitive variables.
//
// Values are encrypted with AES-128-CBC and PKCS#7 padding. A key is either derived
// from a password (PBKDF2-SHA1) for sensitive-variable files, or generated randomly
// once per deployment for embedding values into bootstrap scripts. Every encryption
// uses a fresh random IV.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // PBKDF2-SHA1 is the key derivation shared with orchestrators
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES key length in bytes.
	KeySize = 16

	passwordIterations = 1000
)

var passwordSalt = []byte("Octopuss")

// AESEncryption encrypts and decrypts values with a fixed key.
type AESEncryption struct {
	key []byte
}

// NewPasswordEncryption derives a key from password.
func NewPasswordEncryption(password string) *AESEncryption {
	return &AESEncryption{
		key: pbkdf2.Key([]byte(password), passwordSalt, passwordIterations, KeySize, sha1.New),
	}
}

// NewRandomEncryption creates an encryption with a random key.
func NewRandomEncryption() (*AESEncryption, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &AESEncryption{key: key}, nil
}

// NewKeyEncryption wraps an existing key.
func NewKeyEncryption(key []byte) (*AESEncryption, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &AESEncryption{key: k}, nil
}

// KeyHex returns the key as lowercase hex, the form interpreters accept on launch.
func (a *AESEncryption) KeyHex() string {
	return hex.EncodeToString(a.key)
}

// Encrypt encrypts plaintext with a fresh random IV.
func (a *AESEncryption) Encrypt(plaintext []byte) (ciphertext, iv []byte, err error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, iv, nil
}

// Decrypt reverses Encrypt.
func (a *AESEncryption) Decrypt(ciphertext, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext, aes.BlockSize)
}

// Seal encrypts plaintext into the envelope "base64(iv)|base64(ciphertext)".
func (a *AESEncryption) Seal(plaintext []byte) (string, error) {
	ciphertext, iv, err := a.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(iv) + "|" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts an envelope produced by Seal.
func (a *AESEncryption) Open(envelope string) ([]byte, error) {
	ivPart, cipherPart, ok := strings.Cut(strings.TrimSpace(envelope), "|")
	if !ok {
		return nil, fmt.Errorf("malformed envelope: missing separator")
	}
	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(cipherPart)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope ciphertext: %w", err)
	}
	return a.Decrypt(ciphertext, iv)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encryption errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Identifiers the built-in encryptors report through Name().
const (
	// EncryptorAESGCM identifies the AES-GCM encryptor.
	EncryptorAESGCM = "aes-gcm"

	// EncryptorAESCBC identifies the AES-CBC encryptor.
	EncryptorAESCBC = "aes-cbc"
)

// Key derivation parameters. Salt and iteration count are fixed so the same
// secret derives the same key in every process; stored ciphertext must stay
// decryptable across restarts.
const (
	keySalt       = "encrypt.fieldkey.v1"
	keyIterations = 210000
	keySize       = 32
)

// DeriveKey derives a 32-byte AES-256 key from a textual secret using
// PBKDF2-SHA256. Use it to construct a built-in encryptor from a
// configuration secret rather than raw key bytes:
//
//	enc, _ := encrypt.NewAESGCM(encrypt.DeriveKey(secret))
func DeriveKey(secret string) []byte {
	return pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, keySize, sha256.New)
}

// aesGCMEncryptor implements AES-GCM encryption with base64 output.
type aesGCMEncryptor struct {
	gcm cipher.AEAD
}

// NewAESGCM returns an AES-GCM encryptor.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func NewAESGCM(key []byte) (Encryptor, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &aesGCMEncryptor{gcm: gcm}, nil
}

func (e *aesGCMEncryptor) Name() string {
	return EncryptorAESGCM
}

func (e *aesGCMEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Prepend nonce to ciphertext
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *aesGCMEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextShort
	}

	nonce, raw := raw[:nonceSize], raw[nonceSize:]
	plain, err := e.gcm.Open(nil, nonce, raw, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return string(plain), nil
}

// aesCBCEncryptor implements AES-CBC with HMAC-SHA256 authentication,
// encrypt-then-MAC, base64 output. Layout: iv || ciphertext || mac.
type aesCBCEncryptor struct {
	key []byte
}

// NewAESCBC returns an AES-CBC encryptor authenticated with HMAC-SHA256.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func NewAESCBC(key []byte) (Encryptor, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	return &aesCBCEncryptor{key: append([]byte(nil), key...)}, nil
}

func (e *aesCBCEncryptor) Name() string {
	return EncryptorAESCBC
}

func (e *aesCBCEncryptor) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	mac := hmac.New(sha256.New, e.key)
	mac.Write(iv)
	mac.Write(ct)

	out := make([]byte, 0, len(iv)+len(ct)+sha256.Size)
	out = append(out, iv...)
	out = append(out, ct...)
	out = mac.Sum(out)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *aesCBCEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	// iv + at least one block + mac
	if len(raw) < aes.BlockSize*2+sha256.Size {
		return "", ErrCiphertextShort
	}

	macAt := len(raw) - sha256.Size
	iv, ct, tag := raw[:aes.BlockSize], raw[aes.BlockSize:macAt], raw[macAt:]

	mac := hmac.New(sha256.New, e.key)
	mac.Write(iv)
	mac.Write(ct)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}

	if len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block-aligned", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return string(plain), nil
}

// pkcs7Pad appends PKCS#7 padding up to the next block boundary.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// Package session implements the dual-encryption session check. A session
// produces two blobs of the same plaintext under two independent ciphers;
// verification decrypts both and compares. A tampered blob, a foreign key or
// a plain mismatch all fail the same way, so the check leaks nothing about
// which side broke.
package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

// CryptoContext holds the two process-lifetime keys. Keys never rotate while
// the process lives; restarting invalidates all outstanding sessions.
type CryptoContext struct {
	gcmKey []byte
	cbcKey []byte
}

// NewContext derives the two keys from secret. The same secret always yields
// the same keys, so sessions survive restarts when the secret is configured.
func NewContext(secret string) *CryptoContext {
	gcm := sha256.Sum256([]byte("session:" + secret))
	cbc := sha256.Sum256([]byte("store:" + secret))
	return &CryptoContext{gcmKey: gcm[:], cbcKey: cbc[:]}
}

// Seal encrypts plaintext under both ciphers and returns the base64 session
// blob (AES-GCM) and store blob (AES-CBC).
func (c *CryptoContext) Seal(plaintext []byte) (sessionBlob, storeBlob string, err error) {
	gcmOut, err := c.sealGCM(plaintext)
	if err != nil {
		return "", "", err
	}
	cbcOut, err := c.sealCBC(plaintext)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(gcmOut),
		base64.StdEncoding.EncodeToString(cbcOut), nil
}

// Verify reports whether the two blobs decrypt to the same plaintext. Every
// failure mode returns false; callers cannot tell tampering from mismatch.
func (c *CryptoContext) Verify(sessionBlob, storeBlob string) bool {
	gcmRaw, err := base64.StdEncoding.DecodeString(sessionBlob)
	if err != nil {
		return false
	}
	cbcRaw, err := base64.StdEncoding.DecodeString(storeBlob)
	if err != nil {
		return false
	}
	fromGCM, err := c.openGCM(gcmRaw)
	if err != nil {
		return false
	}
	fromCBC, err := c.openCBC(cbcRaw)
	if err != nil {
		return false
	}
	return bytes.Equal(fromGCM, fromCBC)
}

func (c *CryptoContext) sealGCM(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.gcmKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *CryptoContext) openGCM(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.gcmKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("short ciphertext")
	}
	return gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
}

func (c *CryptoContext) sealCBC(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.cbcKey)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func (c *CryptoContext) openCBC(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.cbcKey)
	if err != nil {
		return nil, err
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, errors.New("bad ciphertext length")
	}
	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("bad padding")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, errors.New("bad padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errors.New("bad padding")
		}
	}
	return data[:len(data)-pad], nil
}

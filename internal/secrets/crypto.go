package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrDecrypt is returned when a sealed secret cannot be opened
var ErrDecrypt = errors.New("decryption failed (wrong key or corrupted data)")

type key = [keySize]byte

func deriveKey(passphrase string) key {
	return sha256.Sum256([]byte(passphrase))
}

// seal encrypts plaintext and prepends the random nonce
func seal(plaintext []byte, k *key) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, k), nil
}

// open reverses seal
func open(sealed []byte, k *key) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("sealed data too short (%d bytes)", len(sealed))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, k)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

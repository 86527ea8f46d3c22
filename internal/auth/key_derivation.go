package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is the length of derived keys in bytes.
	DerivedKeyLength = 32

	purposeAPIJWT = "wryteon-api-jwt-v1"
	purposeCSRF   = "wryteon-csrf-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is empty.
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from masterSecret using HKDF-SHA256.
// Different purpose strings yield independent keys.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, derivedKey); err != nil {
		return nil, err
	}
	return derivedKey, nil
}

// DeriveAPIJWTKey derives the signing key for API bearer tokens.
func DeriveAPIJWTKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeAPIJWT)
}

// DeriveCSRFKey derives the gorilla/csrf authentication key from CSRF_KEY,
// or from JWT_SECRET when no CSRF key is set.
func DeriveCSRFKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeCSRF)
}

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters. Hashes are hex encoded alongside a random 16-byte salt.
const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashPassword derives a salted scrypt hash of password.
func HashPassword(password string) (hash, salt string, err error) {
	b := make([]byte, saltLen)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(b)
	hash, err = derive(password, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// CheckPassword reports whether password matches the stored hash and salt.
func CheckPassword(password, hash, salt string) (bool, error) {
	got, err := derive(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1, nil
}

func derive(password, salt string) (string, error) {
	s, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), s, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt: %w", err)
	}
	return hex.EncodeToString(key), nil
}

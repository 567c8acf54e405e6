package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedToken is returned when a bearer token is not "<familyID>.<secret>".
var ErrMalformedToken = errors.New("malformed api token")

// NewToken mints a family API token and the bcrypt hash to persist. The
// plaintext is shown to the caller once and never stored.
func NewToken(familyID int64) (token, hash string, err error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	secret := hex.EncodeToString(b)
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash token: %w", err)
	}
	return strconv.FormatInt(familyID, 10) + "." + secret, string(h), nil
}

// ParseToken splits a token into its family ID and secret.
func ParseToken(token string) (int64, string, error) {
	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return 0, "", ErrMalformedToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrMalformedToken
	}
	return id, secret, nil
}

// CheckSecret reports whether secret matches the stored bcrypt hash.
func CheckSecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of an opaque token before hex encoding.
const TokenBytes = 32

// TokenLength is the length of an encoded opaque token.
const TokenLength = TokenBytes * 2

// NewToken returns a fresh hex-encoded opaque token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParseToken validates the shape of an opaque token. It does not consult the store.
func ParseToken(token string) (string, error) {
	if len(token) != TokenLength {
		return "", ErrMalformedToken
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", ErrMalformedToken
		}
	}
	return token, nil
}

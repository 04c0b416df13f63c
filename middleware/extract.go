package middleware

import (
	"strings"

	"github.com/MrEthical07/gatekeep"
)

// DefaultSchemes are the Authorization schemes accepted when none are configured:
// the legacy "Token" scheme and "Bearer".
var DefaultSchemes = []string{"Token", "Bearer"}

// ExtractToken parses "<scheme> <token>" from an Authorization header value.
// The header must have exactly two space-separated parts and the scheme must match one
// of schemes exactly (case-sensitive). An empty header is gatekeep.ErrMissingToken;
// every other shape error is gatekeep.ErrMalformedToken.
func ExtractToken(header string, schemes []string) (string, error) {
	if header == "" {
		return "", gatekeep.ErrMissingToken
	}
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", gatekeep.ErrMalformedToken
	}
	for _, s := range schemes {
		if parts[0] == s {
			return parts[1], nil
		}
	}
	return "", gatekeep.ErrMalformedToken
}

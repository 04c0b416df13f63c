package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed input, a bad signature, a wrong algorithm and
	// missing required claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned only for correctly signed tokens whose exp has passed.
	ErrTokenExpired = errors.New("token expired")
)

const (
	// ProfileShort is the default token lifetime.
	ProfileShort = time.Hour
	// ProfileLong is the extended lifetime some deployments select.
	ProfileLong = 24 * time.Hour

	// MinSecretLength is the shortest HMAC secret NewCodec accepts.
	MinSecretLength = 32
)

// Config configures a [Codec]. Lifetime is a deployment choice, not a per-call one.
type Config struct {
	Secret   []byte
	Lifetime time.Duration
	Issuer   string
	Leeway   time.Duration
}

// Claims is the payload of a signed token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the sub claim.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.ID
}

// ExpiresTime returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Codec signs and verifies tokens with a single process-wide secret.
//
// Codec is safe for concurrent use once configured. Call [Codec.WithClock] before
// sharing it.
type Codec struct {
	config Config
	now    func() time.Time
}

// NewCodec validates cfg and returns a [Codec]. A zero Lifetime selects [ProfileShort].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = ProfileShort
	}
	if cfg.Lifetime < 0 {
		return nil, errors.New("invalid lifetime configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Codec{config: cfg, now: time.Now}, nil
}

// WithClock replaces the clock used for iat/exp and for validation.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	if now != nil {
		c.now = now
	}
	return c
}

// Lifetime returns the configured token lifetime.
func (c *Codec) Lifetime() time.Duration {
	return c.config.Lifetime
}

// Sign issues a token for subjectID with role, expiring after the configured lifetime.
func (c *Codec) Sign(subjectID, role string) (string, *Claims, error) {
	if subjectID == "" {
		return "", nil, errors.New("empty subject")
	}
	if role == "" {
		return "", nil, errors.New("empty role")
	}

	now := c.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.Lifetime)),
			Issuer:    c.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}

	return claims, nil
}

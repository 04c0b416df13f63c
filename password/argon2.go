package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

const (
	// MinPasswordBytes is the shortest password Hash accepts.
	MinPasswordBytes = 10
	// DefaultMaxPasswordBytes caps password input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned by Hash for input under MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when input exceeds Config.MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned for encoded hashes that are not argon2id PHC strings.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrInvalidConfig is returned by NewArgon2 for parameters below the minimums.
	ErrInvalidConfig = errors.New("invalid argon2 config")
)

var b64 = base64.StdEncoding

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 `yaml:"memory_kb"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
	// MaxPasswordBytes bounds hashing cost for hostile input; zero means DefaultMaxPasswordBytes.
	MaxPasswordBytes int `yaml:"max_password_bytes"`
}

// DefaultConfig returns Argon2id parameters suitable for interactive logins.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, minMemoryKB)
	case c.Time < minTimeCost:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTimeCost)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return nil
}

// cost is the part of an encoded hash that NeedsUpgrade compares.
type cost struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func (c Config) cost() cost {
	return cost{memory: c.Memory, time: c.Time, parallelism: c.Parallelism}
}

// phcHash is one decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phcHash struct {
	cost
	salt []byte
	key  []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		h.memory, h.time, h.parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func (h phcHash) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
}

// Argon2 hashes and verifies passwords. Safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash of password. Bytes are used as given,
// without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	h := phcHash{cost: a.config.cost(), salt: make([]byte, a.config.SaltLength)}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	h.key = argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, a.config.KeyLength)
	return h.String(), nil
}

// Verify reports whether password matches encodedHash, in constant time.
//
//	Performance: one Argon2id derivation at the cost stored in encodedHash.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.derive(password), h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters
// than the hasher's, or with a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	want := a.config.cost()
	return want.memory > h.memory ||
		want.time > h.time ||
		want.parallelism > h.parallelism ||
		uint32(len(h.key)) != a.config.KeyLength, nil
}

func decodePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phcHash{}, fmt.Errorf("%w: expected 5 sections", ErrMalformedHash)
	}
	if parts[1] != algorithmID {
		return phcHash{}, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return phcHash{}, fmt.Errorf("%w: missing version", ErrMalformedHash)
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return phcHash{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, version)
	}

	c, err := decodeCost(parts[3])
	if err != nil {
		return phcHash{}, err
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return phcHash{}, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return phcHash{}, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}

	return phcHash{cost: c, salt: salt, key: key}, nil
}

func decodeCost(section string) (cost, error) {
	var (
		c    cost
		seen = map[string]bool{}
	)
	pairs := strings.Split(section, ",")
	if len(pairs) != 3 {
		return cost{}, fmt.Errorf("%w: expected m,t,p", ErrMalformedHash)
	}

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return cost{}, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return cost{}, fmt.Errorf("%w: bad memory %q", ErrMalformedHash, value)
			}
			c.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return cost{}, fmt.Errorf("%w: bad time %q", ErrMalformedHash, value)
			}
			c.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return cost{}, fmt.Errorf("%w: bad parallelism %q", ErrMalformedHash, value)
			}
			c.parallelism = uint8(v)
		default:
			return cost{}, fmt.Errorf("%w: unsupported parameter %q", ErrMalformedHash, name)
		}
	}
	return c, nil
}

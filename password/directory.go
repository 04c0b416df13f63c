package password

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Account is one login entry in a [Directory].
type Account struct {
	Username  string
	SubjectID string
	Role      string
	hash      string
}

// Directory is an in-memory credential table for login endpoints.
type Directory struct {
	hasher *Argon2
	mu     sync.RWMutex
	byName map[string]Account
	// dummy is verified for unknown usernames so both failure paths cost one hash.
	dummy string
}

// NewDirectory creates an empty directory over hasher.
func NewDirectory(hasher *Argon2) (*Directory, error) {
	if hasher == nil {
		return nil, errors.New("nil hasher")
	}
	dummy, err := hasher.Hash("directory-placeholder-password")
	if err != nil {
		return nil, err
	}
	return &Directory{
		hasher: hasher,
		byName: make(map[string]Account),
		dummy:  dummy,
	}, nil
}

// Add hashes password and stores the account under username.
func (d *Directory) Add(username, subjectID, role, password string) error {
	if username == "" || subjectID == "" {
		return errors.New("username and subject are required")
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", username, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byName[username]; exists {
		return fmt.Errorf("account %s already exists", username)
	}
	d.byName[username] = Account{Username: username, SubjectID: subjectID, Role: role, hash: hash}
	return nil
}

// Authenticate returns the account for username when password matches.
func (d *Directory) Authenticate(username, password string) (Account, error) {
	d.mu.RLock()
	acct, ok := d.byName[username]
	d.mu.RUnlock()

	hash := acct.hash
	if !ok {
		hash = d.dummy
	}
	match, err := d.hasher.Verify(password, hash)
	if err != nil || !match || !ok {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}

package auth

import (
	"fmt"
	"sort"
	"sync"
)

// Directory holds the configured API accounts. It is read-only after
// construction.
type Directory struct {
	users map[string]*User

	dummyOnce sync.Once
	dummyHash string
}

// NewDirectory validates users and builds a directory. Usernames must be
// unique and every hash must be a decodable Argon2id PHC string.
func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{users: make(map[string]*User, len(users))}
	for i := range users {
		u := users[i]
		if !IsValidUsername(u.Username) {
			return nil, fmt.Errorf("%w: username %q", ErrInvalidUser, u.Username)
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", ErrInvalidUser, u.Username)
		}
		role, err := ParseRole(string(u.Role))
		if err != nil {
			return nil, err
		}
		u.Role = role
		if _, _, _, err := decodePHC(u.PasswordHash); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
		d.users[u.Username] = &u
	}
	return d, nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	return len(d.users)
}

// Usernames returns the account names in sorted order.
func (d *Directory) Usernames() []string {
	names := make([]string, 0, len(d.users))
	for name := range d.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials, after the same amount of
// hashing work.
func (d *Directory) Authenticate(username, password string) (*User, error) {
	u, ok := d.users[username]
	if !ok {
		_, _ = VerifyPassword(password, d.dummy())
		return nil, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, u.PasswordHash)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	out := *u
	return &out, nil
}

func (d *Directory) dummy() string {
	d.dummyOnce.Do(func() {
		hash, err := HashPassword("railcontrol-dummy-password")
		if err == nil {
			d.dummyHash = hash
		}
	})
	return d.dummyHash
}

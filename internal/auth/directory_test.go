package auth

import (
	"errors"
	"testing"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return hash
}

func TestDirectoryAuthenticate(t *testing.T) {
	d, err := NewDirectory([]User{
		{Username: "alice", PasswordHash: mustHash(t, "s3cret"), Role: RoleOperator},
		{Username: "bob", PasswordHash: mustHash(t, "hunter2"), Role: RoleObserver},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
	if names := d.Usernames(); len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("Usernames() = %v", names)
	}

	u, err := d.Authenticate("bob", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if u.Role != RoleObserver {
		t.Errorf("Role = %q, want observer", u.Role)
	}

	tests := []struct {
		name, user, password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "s3cret"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Authenticate(tt.user, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestDirectoryDefaultsRole(t *testing.T) {
	d, err := NewDirectory([]User{{Username: "carol", PasswordHash: mustHash(t, "pw")}})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	u, err := d.Authenticate("carol", "pw")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if u.Role != RoleOperator {
		t.Errorf("Role = %q, want operator", u.Role)
	}
}

func TestNewDirectoryRejects(t *testing.T) {
	hash := mustHash(t, "pw")
	tests := []struct {
		name    string
		users   []User
		wantErr error
	}{
		{"bad username", []User{{Username: "a b", PasswordHash: hash}}, ErrInvalidUser},
		{"duplicate", []User{{Username: "a", PasswordHash: hash}, {Username: "a", PasswordHash: hash}}, ErrInvalidUser},
		{"bad role", []User{{Username: "a", PasswordHash: hash, Role: "root"}}, ErrInvalidRole},
		{"bad hash", []User{{Username: "a", PasswordHash: "plaintext"}}, ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDirectory(tt.users); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDirectory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

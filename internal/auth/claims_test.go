package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestGenerateAndParseAccessToken(t *testing.T) {
	user := &User{Username: "alice", Role: RoleOperator}

	token, expires, err := GenerateAccessToken(user, testSecret, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.SessionID == "" || claims.ID == "" {
		t.Error("session and token IDs must be set")
	}
	if !claims.ExpiresAt.Time.Equal(expires.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, expires)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	user := &User{Username: "bob", Role: RoleObserver}

	_, expires, err := GenerateAccessToken(user, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	diff := time.Until(expires) - DefaultAccessTokenTTL
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~%v, got expiry diff of %v", DefaultAccessTokenTTL, diff)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	user := &User{Username: "alice", Role: RoleOperator}
	valid, _, err := GenerateAccessToken(user, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	sign := func(claims CustomClaims, method jwt.SigningMethod, key any) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	now := time.Now()
	base := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	expired := base
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noExpiry := base
	noExpiry.ExpiresAt = nil
	foreign := base
	foreign.Issuer = "someone-else"
	noSubject := base
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-valid-jwt"},
		{"wrong secret", sign(CustomClaims{RegisteredClaims: base, Role: RoleOperator}, jwt.SigningMethodHS256, []byte("another-secret"))},
		{"wrong method", sign(CustomClaims{RegisteredClaims: base, Role: RoleOperator}, jwt.SigningMethodHS512, []byte(testSecret))},
		{"expired", sign(CustomClaims{RegisteredClaims: expired, Role: RoleOperator}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no expiry", sign(CustomClaims{RegisteredClaims: noExpiry, Role: RoleOperator}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"foreign issuer", sign(CustomClaims{RegisteredClaims: foreign, Role: RoleOperator}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no subject", sign(CustomClaims{RegisteredClaims: noSubject, Role: RoleOperator}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"no role", sign(CustomClaims{RegisteredClaims: base}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"unknown role", sign(CustomClaims{RegisteredClaims: base, Role: "admin"}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"tampered", valid + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, testSecret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.test"

func newTestKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func sign(t *testing.T, priv ed25519.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	require.NoError(t, err)
	return s
}

func staticValidator(pub ed25519.PublicKey) *Validator {
	return NewStaticValidator(testIssuer, func(*jwt.Token) (any, error) { return pub, nil })
}

func TestAuthenticate_ValidToken(t *testing.T) {
	pub, priv := newTestKeys(t)
	v := staticValidator(pub)

	token := sign(t, priv, jwt.MapClaims{
		"sub":  "user-42",
		"name": "Ada Lovelace",
		"iss":  testIssuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	userID, name, err := v.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
	assert.Equal(t, "Ada", name)
}

func TestAuthenticate_Rejects(t *testing.T) {
	pub, priv := newTestKeys(t)
	_, otherPriv := newTestKeys(t)
	v := staticValidator(pub)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong key", sign(t, otherPriv, jwt.MapClaims{"sub": "u", "iss": testIssuer, "exp": future})},
		{"wrong issuer", sign(t, priv, jwt.MapClaims{"sub": "u", "iss": "https://evil.test", "exp": future})},
		{"expired", sign(t, priv, jwt.MapClaims{"sub": "u", "iss": testIssuer, "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no subject", sign(t, priv, jwt.MapClaims{"iss": testIssuer, "exp": future})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Authenticate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestValidate_NoBaseURL(t *testing.T) {
	_, err := NewValidator("").Validate("x")
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestFirstNameFromClaims(t *testing.T) {
	tests := []struct {
		claims jwt.MapClaims
		want   string
	}{
		{jwt.MapClaims{"name": "Grace Hopper"}, "Grace"},
		{jwt.MapClaims{"name": "  Linus  "}, "Linus"},
		{jwt.MapClaims{"name": "   "}, fallbackName},
		{jwt.MapClaims{}, fallbackName},
		{jwt.MapClaims{"name": 7}, fallbackName},
	}
	for _, tt := range tests {
		if got := FirstNameFromClaims(tt.claims); got != tt.want {
			t.Errorf("FirstNameFromClaims(%v) = %q, want %q", tt.claims, got, tt.want)
		}
	}
}

func TestUserIDFromClaims(t *testing.T) {
	tests := []struct {
		claims jwt.MapClaims
		want   string
	}{
		{jwt.MapClaims{"sub": "a", "id": "b"}, "a"},
		{jwt.MapClaims{"sub": "", "id": "b"}, "b"},
		{jwt.MapClaims{"id": "b"}, "b"},
		{jwt.MapClaims{}, ""},
	}
	for _, tt := range tests {
		if got := UserIDFromClaims(tt.claims); got != tt.want {
			t.Errorf("UserIDFromClaims(%v) = %q, want %q", tt.claims, got, tt.want)
		}
	}
}

package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const fallbackName = "Player"

var (
	ErrNoBaseURL     = errors.New("auth base URL is not set")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrMissingUserID = errors.New("token has no subject")
)

// Validator verifies JWTs issued by the auth provider at BaseURL, using the
// provider's JWKS. The key set is fetched on first use and refreshed in the
// background by keyfunc.
type Validator struct {
	BaseURL string

	mu      sync.Mutex
	keyfunc jwt.Keyfunc
	issuer  string
	methods []string
}

// NewValidator returns a Validator for the given issuer base URL.
func NewValidator(baseURL string) *Validator {
	return &Validator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		methods: []string{"EdDSA"},
	}
}

// NewStaticValidator verifies tokens with a fixed key function instead of a remote JWKS.
func NewStaticValidator(issuer string, kf jwt.Keyfunc, methods ...string) *Validator {
	if len(methods) == 0 {
		methods = []string{"EdDSA"}
	}
	return &Validator{keyfunc: kf, issuer: issuer, methods: methods}
}

func (v *Validator) init() (jwt.Keyfunc, string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keyfunc != nil {
		return v.keyfunc, v.issuer, nil
	}
	if v.BaseURL == "" {
		return nil, "", ErrNoBaseURL
	}
	u, err := url.Parse(v.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base URL: %w", err)
	}
	jwks, err := keyfunc.NewDefault([]string{v.BaseURL + "/.well-known/jwks.json"})
	if err != nil {
		return nil, "", err
	}
	v.keyfunc = jwks.Keyfunc
	v.issuer = u.Scheme + "://" + u.Host
	return v.keyfunc, v.issuer, nil
}

// Validate parses and verifies tokenString and returns its claims.
func (v *Validator) Validate(tokenString string) (jwt.MapClaims, error) {
	kf, issuer, err := v.init()
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods)}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.Parse(tokenString, kf, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// Authenticate validates the token and returns the user ID and first name.
func (v *Validator) Authenticate(tokenString string) (userID, name string, err error) {
	claims, err := v.Validate(tokenString)
	if err != nil {
		return "", "", err
	}
	userID = UserIDFromClaims(claims)
	if userID == "" {
		return "", "", ErrMissingUserID
	}
	return userID, FirstNameFromClaims(claims), nil
}

// FirstNameFromClaims returns the first word of the "name" claim, or a fallback.
func FirstNameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return fallbackName
	}
	return parts[0]
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

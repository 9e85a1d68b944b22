package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/framevist/framevist/pkg/webkit"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim required on admin tokens.
const RoleAdmin = "admin"

// AdminClaims are the claims carried by an admin bearer token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 admin tokens issued by the external auth
// service.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator for secret. An empty secret
// disables the admin API.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Issue signs an admin token for subject. fvctl and tests use it; the
// storefront never issues tokens itself.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("admin secret is not configured")
	}
	now := a.now()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks its signature, expiry and role.
func (a *Authenticator) Verify(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}
	return claims, nil
}

// Middleware rejects requests without a valid admin bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			webkit.Error(w, http.StatusServiceUnavailable, "admin API is not configured")
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			webkit.Error(w, http.StatusUnauthorized, "No authorization header provided.")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			webkit.Error(w, http.StatusUnauthorized, "The Authorization header must use the Bearer scheme.")
			return
		}
		if _, err := a.Verify(token); err != nil {
			webkit.Error(w, http.StatusUnauthorized, "Invalid admin token: "+err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/harrydbarnes/recordsteps/kit"
)

// MinSecretLen is the minimum JWT signing secret length in bytes.
const MinSecretLen = 32

// Claims carried by panel session tokens.
type Claims struct {
	Operator string `json:"operator,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator exchanges the shared control token for short-lived
// JWTs and validates them on API requests. The control token is only
// ever held as a bcrypt hash.
type Authenticator struct {
	secret    []byte
	tokenHash []byte
	expiry    time.Duration
}

// NewAuthenticator builds an Authenticator. secret signs JWTs (HS256),
// tokenHash is the bcrypt hash of the control token.
func NewAuthenticator(secret, tokenHash []byte, expiry time.Duration) (*Authenticator, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("session: jwt secret must be at least %d bytes", MinSecretLen)
	}
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &Authenticator{secret: secret, tokenHash: tokenHash, expiry: expiry}, nil
}

// HashToken bcrypt-hashes a control token for storage in config.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("session: hash token: %w", err)
	}
	return string(h), nil
}

// Login verifies the control token and mints a session JWT.
func (a *Authenticator) Login(token, operator string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)); err != nil {
		return "", errors.New("session: invalid control token")
	}
	now := time.Now()
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "panel",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.secret)
}

// Validate parses and validates a session JWT. The signing method is
// pinned to HS256 to prevent algorithm confusion.
func (a *Authenticator) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("session: invalid token")
}

type claimsKey struct{}

// Middleware extracts a Bearer JWT, validates it and injects the
// claims into the request context. Missing or invalid tokens pass
// through untouched — RequireAuth enforces.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.Validate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = kit.WithOperator(ctx, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims retrieves validated claims from the context, or nil.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// RequireAuth rejects requests without validated claims.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaims(r.Context()) == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

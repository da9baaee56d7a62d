package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/peterson-htn252/HTN252/internal/api"
)

type contextKey string

const claimsKey contextKey = "claims"

// Claims carried by every access token.
type Claims struct {
	AccountID   string `json:"sub"`
	AccountType string `json:"account_type"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator mints and verifies access tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttlHours int) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: time.Duration(ttlHours) * time.Hour}
}

func (a *Authenticator) Mint(accountID, accountType, email string) (string, time.Time, error) {
	expires := time.Now().Add(a.ttl)
	claims := &Claims{
		AccountID:   accountID,
		AccountType: accountType,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "aidledger",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (a *Authenticator) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Middleware verifies the bearer token and injects claims into the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			api.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required", "")
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		claims, err := a.Parse(tokenString)
		if err != nil {
			api.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid token", "")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the claims set by Middleware, or nil on unauthenticated requests.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

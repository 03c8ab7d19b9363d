// Package auth issues and validates admin session tokens. Regular clip
// access never goes through here; it is gated by the access package.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 12 * time.Hour

var (
	ErrInvalidCredentials = Error("invalid credentials")
	ErrInvalidToken       = Error("invalid token")
	ErrAdminNotConfigured = Error("admin access is not configured")
)

type Error string

func (e Error) Error() string {
	return string(e)
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	passwordHash string
	jwtSecret    []byte
}

func NewService(passwordHash, jwtSecret string) *Service {
	return &Service{passwordHash: passwordHash, jwtSecret: []byte(jwtSecret)}
}

// Login verifies the admin password against its bcrypt hash and issues a
// signed session token.
func (s *Service) Login(password string) (string, error) {
	if s.passwordHash == "" || len(s.jwtSecret) == 0 {
		return "", ErrAdminNotConfigured
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   "admin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a session token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

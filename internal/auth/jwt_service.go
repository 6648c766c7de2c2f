package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"taskservice/internal/model"
)

// DefaultTokenExpiry is used when no explicit token lifetime is configured.
const DefaultTokenExpiry = 24 * time.Hour

var (
	// ErrSigning is returned when a token cannot be signed, typically because
	// the server secret is missing.
	ErrSigning = errors.New("token signing unavailable")
	// ErrInvalidToken is returned for any token that fails verification.
	// Callers are not told which check failed.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents JWT claims.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService creates a new JWT service with the given secret and token
// lifetime. A non-positive expiry selects DefaultTokenExpiry.
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTService{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue signs a bearer token for the identity.
func (s *JWTService) Issue(identity *model.Identity) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigning
	}
	if identity == nil || identity.ID == "" {
		return "", fmt.Errorf("%w: empty identity", ErrSigning)
	}

	now := time.Now()
	claims := &Claims{
		UserID: identity.ID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return token, nil
}

// Verify validates signature, signing method and expiry. It never consults a
// store.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 || tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

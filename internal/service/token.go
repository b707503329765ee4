package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postboard/internal/model"
)

// TokenService signs and verifies bearer tokens. The subject claim carries the user id.
type TokenService struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, maxAge time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Generate issues an HS256 token for userID valid for the configured max age.
func (s *TokenService) Generate(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the subject.
// Errors are model.ErrTokenExpired or model.ErrTokenInvalid.
func (s *TokenService) Parse(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", model.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// hashToken is the stored form of a reset token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

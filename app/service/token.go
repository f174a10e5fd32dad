package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vantage-solutions/ms-go-accounts/app/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenExpired = errors.New("token has expired")
)

// SessionClaims is the payload of a session token: enough to resolve the
// caller's identity and role without a store lookup.
type SessionClaims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the two token kinds: HMAC-signed session
// tokens and random single-use action tokens for verification/reset links.
type TokenIssuer struct {
	secret     []byte
	sessionTTL time.Duration
}

func NewTokenIssuer(secret string, sessionTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
	}
}

func (i *TokenIssuer) IssueSession(user *entity.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.sessionTTL
	}

	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *TokenIssuer) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// NewActionToken returns an unguessable single-use token. It carries no
// structure; consuming one always goes through an account lookup.
func (i *TokenIssuer) NewActionToken() string {
	return uuid.New().String()
}

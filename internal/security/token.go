package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"greenmart/api/internal/config"
)

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and decodes the access/refresh token pair. Both tokens
// are HS512 JWTs carrying the user id; the refresh token is signed with its
// own secret and a longer TTL.
type TokenIssuer struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(cfg config.SecurityConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  cfg.JWTAccessSecret,
		refreshSecret: cfg.JWTRefreshSecret,
		accessTTL:     cfg.JWTAccessTTL,
		refreshTTL:    cfg.JWTRefreshTTL,
	}
}

func (t *TokenIssuer) CreateAccessToken(userID string) (string, error) {
	return sign(userID, t.accessSecret, t.accessTTL)
}

// CreateRefreshToken returns the signed token along with its expiry, which
// is persisted on the refresh-token row.
func (t *TokenIssuer) CreateRefreshToken(userID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(t.refreshTTL)
	token, err := sign(userID, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (t *TokenIssuer) DecodeAccessToken(tokenStr string) (*Claims, error) {
	return decode(tokenStr, t.accessSecret)
}

func (t *TokenIssuer) DecodeRefreshToken(tokenStr string) (*Claims, error) {
	return decode(tokenStr, t.refreshSecret)
}

func sign(userID string, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func decode(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "invincible-tiles"

var (
	// ErrInvalidToken токен не прошёл проверку подписи, срока или формата
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret секрет короче 32 байт или не в base64
	ErrWeakSecret = errors.New("secret key must be base64 and at least 32 bytes")
)

// Claims данные JWT токена
type Claims struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermission проверяет право так же, как группа хоста: без учета регистра, "*" - всё.
func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == "*" || strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

// Issuer подписывает и проверяет токены одним секретом.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer создаёт Issuer. Пустой secret - случайный ключ на время жизни процесса.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		return &Issuer{secret: key, ttl: ttl}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(decoded) < 32 {
		return nil, ErrWeakSecret
	}
	return &Issuer{secret: decoded, ttl: ttl}, nil
}

// GenerateJWT подписывает токен пользователя с его правами
func (i *Issuer) GenerateJWT(username string, permissions []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username:    username,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateJWT проверяет токен и возвращает его claims
func (i *Issuer) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Проверяем алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateSecureSecret генерирует новый секретный ключ
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/review-workflow/internal/domain"
)

// ErrAnonymousToken: подпись верна, но в токене нет user_id.
// Без него нельзя проверить назначение юриста и авторство заявки.
var ErrAnonymousToken = errors.New("token carries no user id")

// RS256Validator проверяет токены, выпущенные AuthService.
type RS256Validator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewRS256Validator(pubKey *rsa.PublicKey) *RS256Validator {
	return &RS256Validator{
		publicKey: pubKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(domain.TokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// VerifyToken принимает значение заголовка Authorization целиком или голый токен.
func (v *RS256Validator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, fmt.Errorf("invalid token: empty")
	}

	claims := &domain.CustomClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrAnonymousToken
	}
	// sub и user_id выпускаются парой; расхождение значит чужой эмитент
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return nil, fmt.Errorf("invalid token: subject %q does not match user id %q", claims.Subject, claims.UserID)
	}
	return claims, nil
}

// ParseRSAPublicKey разбирает PEM открытого ключа.
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey разбирает PEM закрытого ключа для выпуска токенов.
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

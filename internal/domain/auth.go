package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer: значение iss в токенах сервиса.
const TokenIssuer = "review-workflow"

// CustomClaims: полезная нагрузка токена. Роли кладутся именами из каталога.
type CustomClaims struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// Caller: принципал из проверенного токена.
func (c *CustomClaims) Caller() Caller {
	return Caller{ID: c.UserID, DisplayName: c.DisplayName, Roles: ParseRoleSet(c.Roles)}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // Никогда не отправляем на фронт
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

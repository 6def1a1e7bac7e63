package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/review-workflow/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator: проверка входящего токена.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// RoleResolver отдает актуальные роли из каталога. Роли в токене могли устареть.
type RoleResolver interface {
	Roles(ctx context.Context, userID string) (domain.RoleSet, error)
}

type ctxKey struct{}

func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerFrom достает принципала, положенного middleware.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(domain.Caller)
	return c, ok
}

// NewMiddleware проверяет Bearer-токен и кладет domain.Caller в контекст.
// resolver может быть nil: тогда используются роли из токена.
func NewMiddleware(v TokenValidator, resolver RoleResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			caller := claims.Caller()
			if resolver != nil {
				roles, err := resolver.Roles(r.Context(), caller.ID)
				if err != nil {
					// Каталог недоступен: доверяем ролям из подписанного токена
					logger.Warn("role directory unavailable, using token roles",
						zap.String("user_id", caller.ID), zap.Error(err))
				} else {
					caller.Roles = roles
				}
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/ChiNguyen3107/todo-app/internal/errors"
	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/service"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	logctx "github.com/ChiNguyen3107/todo-app/pkg/log"
)

// Verifier проверяет access-токен (service.Service.Verify).
type Verifier interface {
	Verify(accessToken string) (*models.Claims, error)
}

type claimsKey struct{}

// ClaimsFrom возвращает claims проверенного access-токена или nil.
func ClaimsFrom(ctx context.Context) *models.Claims {
	c, _ := ctx.Value(claimsKey{}).(*models.Claims)
	return c
}

// WithClaims кладёт claims в контекст.
func WithClaims(ctx context.Context, c *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// bearerToken извлекает токен из "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	const prefix = "bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

// Authenticate требует валидный access-токен. Любой отказ проверки — 401
// (единственный сигнал клиенту обновить пару токенов). Обновление на сервере
// не выполняется.
func Authenticate(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(bearerToken(r))
			if err != nil {
				logctx.From(r.Context()).Debug("access_token_rejected",
					slog.String("path", r.URL.Path),
					slog.String("err", err.Error()),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="todo-app"`)
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logctx.With(ctx, slog.String("user_id", claims.UserID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пропускает запрос, только если guard.Check разрешает доступ
// для claims из контекста. Unauthenticated — 401, Forbidden — 403.
// Используется после Authenticate.
func RequireRole(required guard.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := guard.State{}
			if c := ClaimsFrom(r.Context()); c != nil {
				state = guard.State{Authenticated: true, Role: c.Role}
			}

			d := guard.Check(state, required)
			switch d.Reason {
			case guard.ReasonUnauthenticated:
				apierrors.WriteError(w, r, service.ErrUnauthenticated)
				return
			case guard.ReasonForbidden:
				logctx.From(r.Context()).Warn("access_denied",
					slog.String("path", r.URL.Path),
					slog.String("role", string(state.Role)),
					slog.String("required", string(required)),
				)
				apierrors.WriteError(w, r, apierrors.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

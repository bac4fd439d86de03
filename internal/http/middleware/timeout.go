package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/ChiNguyen3107/todo-app/pkg/log"
)

// ErrRequestTimeout — причина отмены контекста по серверному дедлайну
// (context.Cause), в отличие от отмены клиентом.
var ErrRequestTimeout = errors.New("request timeout")

// Timeout ограничивает время обработки запроса значением d. Более ранний
// дедлайн (например, от вызывающего) сохраняется. d <= 0 отключает мидлвар.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dl, ok := r.Context().Deadline(); ok && time.Until(dl) <= d {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeoutCause(r.Context(), d, ErrRequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(context.Cause(ctx), ErrRequestTimeout) {
				logctx.From(ctx).Warn("request_timeout",
					slog.String("path", r.URL.Path),
					slog.Duration("limit", d),
				)
			}
		})
	}
}

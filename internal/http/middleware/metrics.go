package middleware

import (
	"net/http"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Metrics учитывает запрос в Prometheus по шаблону маршрута chi
// (например, /api/admin/users/{id}/role), а не по сырому пути: так
// кардинальность label route остаётся ограниченной.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.ObserveRequest(r.Method, route, sw.Status(), time.Since(start))
		})
	}
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ChiNguyen3107/todo-app/internal/http/handlers"
	"github.com/ChiNguyen3107/todo-app/internal/http/middleware"
	"github.com/ChiNguyen3107/todo-app/internal/metrics"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
	Metrics  *metrics.Metrics
}

// Service — всё, что нужно роутеру от сервисного слоя.
type Service interface {
	handlers.AuthService
	middleware.Verifier
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.Metrics)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, v middleware.Verifier) {
	// auth: публичные
	r.Post("/auth/login", h.Login)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/refresh-token", h.RefreshToken)

	// auth: по access-токену
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(v))

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)
		r.Post("/auth/change-password", h.ChangePassword)
	})

	// admin
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(v), middleware.RequireRole(guard.RoleAdmin))

		r.Get("/admin/users", h.ListUsers)
		r.Get("/admin/users/{id}", h.GetUser)
		r.Put("/admin/users/{id}/status", h.SetUserStatus)
		r.Put("/admin/users/{id}/role", h.SetUserRole)
	})
}

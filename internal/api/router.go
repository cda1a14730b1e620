package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// RouterConfig параметры маршрутизатора
type RouterConfig struct {
	CORSAllowedOrigins []string
	LoginRequests      int // 0 отключает ограничение
	LoginWindow        time.Duration
}

// NewRouter собирает все маршруты HTTP API
func NewRouter(h *Handler, mw *auth.Middleware, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(baseMiddleware()...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.resp.Error(w, req, apperrors.New(apperrors.KindNotFound, "Route not found"))
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginRateLimit(h, cfg)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate)
				r.Get("/me", h.Me)
				r.Put("/change-password", h.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)

			r.Route("/admin", func(r chi.Router) {
				r.Use(mw.RequireRole(users.RoleAdmin))
				r.Post("/admins", h.CreateAdmin)
				r.Post("/lecturers", h.CreateLecturer)
				r.Get("/lecturers", h.ListLecturers)
				r.Post("/students", h.CreateStudent)
				r.Post("/accounts/suspend", h.SuspendAccount)
				r.Post("/accounts/unsuspend", h.UnsuspendAccount)
			})

			r.With(mw.RequireRole(users.RoleAdmin, users.RoleLecturer)).Get("/students", h.ListStudents)
			r.With(mw.RequireRole(users.RoleAdmin)).Get("/dashboard/counts", h.DashboardCounts)
		})
	})

	return otelhttp.NewHandler(r, "portal-http")
}

// baseMiddleware общая цепочка. Recoverer стоит внутри AccessLog,
// чтобы запрос с паникой попал в лог и метрики как 500.
func baseMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RequestIDWithLogging(),
		chimiddleware.RealIP,
		AccessLog,
		chimiddleware.Recoverer,
	}
}

// loginRateLimit ограничивает попытки входа с одного IP
func loginRateLimit(h *Handler, cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.LoginRequests <= 0 || cfg.LoginWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		cfg.LoginRequests,
		cfg.LoginWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.resp.Error(w, r, apperrors.New(apperrors.KindRateLimited, "Too many login attempts, try again later"))
		}),
	)
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/review-workflow/internal/console/handler"
	"github.com/xela07ax/review-workflow/internal/engine"
	"github.com/xela07ax/review-workflow/internal/infra/auth"
)

// Handlers: обработчики бизнес-доменов сервиса.
type Handlers struct {
	Auth     *handler.AuthHandler     // /auth/token
	Requests *handler.RequestHandler  // /v1/requests
	Audit    *handler.AuditHandler    // /v1/requests/{id}/audit
	Settings *handler.SettingsHandler // /v1/settings
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка токенов (RS256) и актуализация ролей из каталога
	authValidator auth.TokenValidator
	roles         auth.RoleResolver
	gatherer      prometheus.Gatherer

	h Handlers
}

// NewConsoleServer собирает роутер API заявок. gatherer может быть nil — тогда /metrics не публикуется.
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	roles auth.RoleResolver,
	gatherer prometheus.Gatherer,
	h Handlers,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		authValidator: validator,
		roles:         roles,
		gatherer:      gatherer,
		h:             h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Post("/auth/token", s.h.Auth.Login)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.roles, s.logger))

		r.Route("/v1/requests", func(r chi.Router) {
			r.Post("/", s.h.Requests.Create) // Новый черновик
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Requests.Get)
				r.Get("/audit", s.h.Audit.GetLogs)
				r.Get("/permissions/check", s.h.Requests.CheckPermission)

				// Действия автомата; Idempotency-Key защищает от повторной отправки
				r.With(engine.IdempotencyMiddleware).Post("/{action}", s.h.Requests.Act)
			})
		})

		r.Route("/v1/settings", func(r chi.Router) {
			r.Get("/working-hours", s.h.Settings.GetWorkingHours)
			r.Put("/working-hours", s.h.Settings.UpdateWorkingHours)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

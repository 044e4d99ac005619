package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	App       config.AppConfig
	RateLimit config.RateLimitConfig
	Logger    *slog.Logger
}

func NewRouter(
	cfg RouterConfig,
	JWTService jwt.Service,
	payrollHandler PayrollHandler,
	timeEntryHandler TimeEntryHandler,
	rateTableHandler RateTableHandler,
) *chi.Mux {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Retry-After"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
		// Event streams stay open for minutes; logging them on close only adds noise.
		Skip: func(req *http.Request, respStatus int) bool {
			return respStatus == http.StatusOK && req.Header.Get("Accept") == "text/event-stream"
		},
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication. EventSource cannot set headers, so the
		// token may also come from the "jwt" query parameter.
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired(JWTService))
			r.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

			r.Route("/runs", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollView))
					r.Get("/", payrollHandler.ListRuns)
					r.Get("/{id}", payrollHandler.GetRun)
					r.Get("/{id}/payslips", payrollHandler.ListPayslips)
					r.Get("/{id}/events", payrollHandler.Events)
				})

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollManage))
					r.Post("/", payrollHandler.CreateRun)
					r.Post("/{id}/calculate", payrollHandler.Calculate)
					r.Post("/{id}/cancel", payrollHandler.CancelCalculation)
					r.Post("/{id}/employees/{employeeID}/recalculate", payrollHandler.RecalculateEmployee)
					r.Post("/{id}/approve", payrollHandler.Approve)
					r.Post("/{id}/process", payrollHandler.StartProcessing)
					r.Post("/{id}/pay", payrollHandler.MarkPaid)
					r.Post("/{id}/close", payrollHandler.Close)
					r.Post("/{id}/export", payrollHandler.Export)
					r.Get("/{id}/exports/{artifact}", payrollHandler.DownloadExport)
				})
			})

			r.Route("/time-entries", func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionTimeEntryCreateOwn))
				r.Post("/", timeEntryHandler.Create)
				r.Get("/", timeEntryHandler.List)
				r.Get("/{id}", timeEntryHandler.Get)
				r.Put("/{id}", timeEntryHandler.Update)
				r.Delete("/{id}", timeEntryHandler.Delete)
				r.Post("/{id}/submit", timeEntryHandler.Submit)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					r.Post("/{id}/approve", timeEntryHandler.Approve)
					r.Post("/{id}/reject", timeEntryHandler.Reject)
				})
			})

			r.Route("/rate-tables", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/", rateTableHandler.Current)
				r.Post("/reload", rateTableHandler.Reload)
				r.Post("/rows", rateTableHandler.AppendRate)
			})
		})
	})
	return r
}

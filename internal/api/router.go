package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/user-accounts/docs"
	"github.com/99minutos/user-accounts/internal/api/handler"
	"github.com/99minutos/user-accounts/internal/api/middleware"
	"github.com/99minutos/user-accounts/internal/core/domain"
	"github.com/99minutos/user-accounts/internal/core/ports"
	"github.com/99minutos/user-accounts/pkg/logger"
)

const usersPath = "/users"

// RouterConfig holds what NewRouter needs to build the Echo instance.
type RouterConfig struct {
	Users  ports.UserService
	Tokens ports.TokenVerifier
	// AuthRequired rejects requests without a valid token on every /users
	// route except authenticate.
	AuthRequired bool
	// Checks are the readiness probes, keyed by dependency name.
	Checks map[string]handler.Check
	// Registerer receives the HTTP metrics. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestContext)
	e.Use(requestLogger(cfg.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "users",
		Subsystem:  "http",
		Registerer: cfg.Registerer,
	}))

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(cfg.Checks)

	e.GET("/health", healthHandler.Liveness)         // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: cfg.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- User routes ---
	users := handler.NewUserHandler(cfg.Users, usersPath)
	g := e.Group(usersPath)

	g.POST("/authenticate", users.Authenticate)

	if cfg.AuthRequired {
		g.Use(middleware.Auth(cfg.Tokens))
	} else {
		g.Use(middleware.OptionalAuth(cfg.Tokens))
	}
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	g.GET("", users.Find)
	g.POST("", users.Create)
	g.GET("/current", users.Current)
	g.GET("/getbyusername", users.GetByUsername)
	g.PATCH("/resetpassword", users.ResetPassword, adminOnly)
	g.GET("/getroles", users.KnownRoles)
	g.GET("/getapplications", users.KnownApplications)

	g.GET("/:id", users.Get)
	g.PUT("/:id", users.Update, adminOnly)
	g.DELETE("/:id", users.Delete)
	g.PATCH("/:id/changepassword", users.ChangePassword)
	g.PATCH("/:id/changeemailaddress", users.ChangeEmailAddress)

	g.GET("/:id/roles", users.Roles)
	g.POST("/:id/roles", users.ChangeRoles, adminOnly)
	g.GET("/:id/apps", users.Applications)
	g.POST("/:id/apps", users.ChangeApplications, adminOnly)

	return e
}

// requestContext copies the request id into the request context so that
// service and error logs can be correlated with the access log.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// requestLogger writes one zerolog entry per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

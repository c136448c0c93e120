package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/bug-tracker/docs" // registers the OpenAPI spec
	"github.com/99minutos/bug-tracker/internal/api/handler"
	"github.com/99minutos/bug-tracker/internal/api/metrics"
	"github.com/99minutos/bug-tracker/internal/api/middleware"
	"github.com/99minutos/bug-tracker/internal/core/domain"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

const maxBodySize = "1M"

// Options carries the HTTP-level settings of the router.
type Options struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	AuthRateLimit      float64
	AuthRateBurst      int
}

// Dependencies are the services and probes the routes are served by.
type Dependencies struct {
	Auth      ports.AuthService
	Bugs      ports.BugService
	Denylist  ports.TokenDenylist
	Readiness map[string]handler.DependencyCheck
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(opts Options, deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: opts.CORSAllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomiddleware.BodyLimit(maxBodySize))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	bugHandler := handler.NewBugHandler(deps.Bugs)
	authMiddleware := middleware.Auth(opts.JWTSecret, deps.Denylist, log)
	authLimiter := middleware.NewRateLimiter(opts.AuthRateLimit, opts.AuthRateBurst)

	// --- User routes ---
	users := e.Group("/users")
	users.POST("/register", authHandler.Register, authLimiter.Middleware())
	users.POST("/login", authHandler.Login, authLimiter.Middleware())

	account := users.Group("", authMiddleware, middleware.RBAC(domain.RoleUser, domain.RoleAdmin))
	account.POST("/logout", authHandler.Logout)
	account.GET("/profile", authHandler.Profile)
	account.PUT("/profile", authHandler.UpdateProfile)

	// --- Bug routes (any authenticated role; ownership is checked per bug) ---
	bugs := e.Group("/bugs", authMiddleware, middleware.RBAC(domain.RoleUser, domain.RoleAdmin))
	bugs.GET("", bugHandler.List)
	bugs.POST("", bugHandler.Create)
	bugs.GET("/:id", bugHandler.Get)
	bugs.PUT("/:id", bugHandler.Update)
	bugs.DELETE("/:id", bugHandler.Delete)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness: is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness: are dependencies up?

	// --- Operations ---
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

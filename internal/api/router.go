package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/influencerlab/studio/docs"

	"github.com/influencerlab/studio/internal/api/handler"
	"github.com/influencerlab/studio/internal/api/middleware"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
	"github.com/influencerlab/studio/internal/infrastructure/http/handlers"
)

// CallbackTokenHeader carries the shared secret on backend callbacks.
const CallbackTokenHeader = "X-Backend-Token"

// Deps is everything the HTTP layer needs. Services are built by the caller.
type Deps struct {
	Auth        ports.AuthService
	Generations ports.GenerationService
	Characters  ports.CharacterService
	Ledger      ports.LedgerService
	Outcomes    handler.OutcomeQueue
	Checks      map[string]handlers.Check

	// Registry collects the HTTP metrics. Nil means the default registry,
	// which also serves the service metrics on /metrics.
	Registry *prometheus.Registry

	JWTSecret     string
	CallbackToken string
	Log           zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "studio",
		Subsystem:  "http",
		Registerer: registerer,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	generationHandler := handler.NewGenerationHandler(d.Generations)
	characterHandler := handler.NewCharacterHandler(d.Characters)
	creditHandler := handler.NewCreditHandler(d.Ledger)
	callbackHandler := handler.NewCallbackHandler(d.Outcomes)

	// --- Public routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewHealthDependenciesHandler(d.Checks).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Backend callbacks (shared token) ---
	backend := e.Group("/v1/backend", middleware.SharedToken(CallbackTokenHeader, d.CallbackToken))
	backend.POST("/callback", callbackHandler.Receive)
	backend.POST("/callback/batch", callbackHandler.ReceiveBatch)

	// --- Authenticated routes ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))

	v1.POST("/generations", generationHandler.Create)
	v1.POST("/generations/image", generationHandler.CreateImage)
	v1.POST("/generations/video", generationHandler.CreateVideo)
	v1.GET("/generations", generationHandler.List)
	v1.GET("/generations/:id", generationHandler.Get)
	v1.GET("/dashboard", generationHandler.Dashboard)

	v1.POST("/characters", characterHandler.Create)
	v1.GET("/characters", characterHandler.List)
	v1.GET("/characters/:id", characterHandler.Get)
	v1.DELETE("/characters/:id", characterHandler.Delete)

	v1.GET("/credits", creditHandler.Balance)
	v1.GET("/credits/transactions", creditHandler.Transactions)

	admin := v1.Group("/admin", middleware.RBAC(domain.RoleAdmin))
	admin.POST("/users/:id/credits", creditHandler.Grant)
	admin.POST("/users/:id/ledger/verify", creditHandler.Verify)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

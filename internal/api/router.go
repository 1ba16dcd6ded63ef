package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/handyfix/marketplace-engine/docs"
	"github.com/handyfix/marketplace-engine/internal/api/handler"
	"github.com/handyfix/marketplace-engine/internal/api/middleware"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
	"github.com/handyfix/marketplace-engine/internal/core/service"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	JWTSecret string
	Log       zerolog.Logger

	Auth     ports.AuthService
	Roles    ports.RoleService
	Bookings ports.BookingService
	Payments ports.PaymentService
	Chat     ports.ChatService

	Dispatcher      handler.EventDispatcher
	VerifyWebhook   handler.SignatureVerifier
	SignatureHeader string

	// Sandbox is set only when the in-process gateway is active.
	Sandbox handler.SandboxPayer

	HealthChecks map[string]handler.Check

	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// default registry, which also holds the engine metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:                 "marketplace",
		Registerer:                registerer(d.Registry),
		DoNotUseRequestPathFor404: true,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	roleHandler := handler.NewRoleHandler(d.Roles)
	bookingHandler := handler.NewBookingHandler(d.Bookings)
	paymentHandler := handler.NewPaymentHandler(d.Payments)
	chatHandler := handler.NewChatHandler(d.Chat)
	webhookHandler := handler.NewWebhookHandler(d.Dispatcher, d.VerifyWebhook, d.SignatureHeader, d.Log)
	healthHandler := handler.NewHealthHandler(d.HealthChecks)

	authn := middleware.Auth(d.JWTSecret)
	guard := func(capability domain.Capability) echo.MiddlewareFunc {
		return middleware.Guard(d.Roles, service.Authorize, capability)
	}
	signedIn := guard(domain.CapabilityAuthenticated)
	clientOnly := guard(domain.CapabilityClient)

	// --- Auth routes (development identity provider) ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	v1 := e.Group("/v1")

	// --- Gateway notifications: signed, no bearer token ---
	v1.POST("/payments/webhook", webhookHandler.Receive)

	// --- Authenticated API ---
	api := v1.Group("", authn)
	api.GET("/me/role", roleHandler.Me, signedIn)
	api.POST("/auth/logout", roleHandler.Logout)

	api.POST("/bookings", bookingHandler.Create, clientOnly)
	api.GET("/bookings", bookingHandler.List, signedIn)
	api.GET("/bookings/:id", bookingHandler.Get, signedIn)
	api.POST("/bookings/:id/transitions", bookingHandler.Transition, signedIn)

	api.POST("/bookings/:id/checkout", paymentHandler.Checkout, clientOnly)
	api.POST("/bookings/:id/payment/confirm", paymentHandler.Confirm, signedIn)
	api.POST("/bookings/:id/payment/reconcile", paymentHandler.Reconcile, clientOnly)

	api.GET("/threads/recent", chatHandler.Recent, signedIn)

	// --- Development gateway ---
	if d.Sandbox != nil {
		sandboxHandler := handler.NewSandboxHandler(d.Sandbox, d.Dispatcher)
		e.POST("/sandbox/checkout/:session_id/pay", sandboxHandler.Pay)
	}

	// --- Health probes, metrics, docs (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer(d.Registry)}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func registerer(r *prometheus.Registry) prometheus.Registerer {
	if r == nil {
		return prometheus.DefaultRegisterer
	}
	return r
}

func gatherer(r *prometheus.Registry) prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r
}

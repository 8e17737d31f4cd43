package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/api/handler"
	"github.com/maison-edition/storefront/internal/api/middleware"
	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
	"github.com/maison-edition/storefront/internal/kv"
)

// Deps carries everything the router needs, built once at startup.
type Deps struct {
	Sessions  ports.SessionService
	Orders    ports.OrderService
	Cart      ports.CartService
	Favorites ports.FavoriteService
	Store     kv.Store
	JWTSecret string
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("storefront"))

	authHandler := handler.NewAuthHandler(deps.Sessions)
	orderHandler := handler.NewOrderHandler(deps.Orders, deps.Cart)
	cartHandler := handler.NewCartHandler(deps.Cart)
	favoriteHandler := handler.NewFavoriteHandler(deps.Favorites)

	requireAuth := middleware.Auth(deps.JWTSecret)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/session", authHandler.Session)
	e.PATCH("/auth/profile", authHandler.UpdateProfile, requireAuth)

	// --- Cart routes (browser-local, no auth) ---
	e.GET("/cart", cartHandler.Get)
	e.POST("/cart/items", cartHandler.AddItem)
	e.PUT("/cart/items/:product_id", cartHandler.SetQuantity)
	e.DELETE("/cart/items/:product_id", cartHandler.RemoveItem)
	e.DELETE("/cart", cartHandler.Clear)

	// --- Favorite routes (resolved against the active identity) ---
	e.GET("/favorites", favoriteHandler.List, requireAuth)
	e.PUT("/favorites/:product_id", favoriteHandler.Add, requireAuth)
	e.DELETE("/favorites/:product_id", favoriteHandler.Remove, requireAuth)

	// --- Order routes ---
	e.POST("/orders", orderHandler.Checkout, requireAuth)
	e.GET("/orders/mine", orderHandler.Mine, requireAuth)
	e.GET("/orders/mine/grouped", orderHandler.MineGrouped, requireAuth)
	e.GET("/orders", orderHandler.List, requireAuth, requireAdmin)
	e.GET("/orders/:id", orderHandler.Get, requireAuth, requireAdmin)
	e.PATCH("/orders/:id/status", orderHandler.SetStatus, requireAuth, requireAdmin)
	e.DELETE("/orders", orderHandler.DeleteMany, requireAuth, requireAdmin)

	// --- Observability and health probes ---
	e.GET("/metrics", echoprometheus.NewHandler())

	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewHealthReadinessHandler(deps.Store)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	return e
}

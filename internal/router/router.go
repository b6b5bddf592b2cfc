package router // package router registers every HTTP route of the API

import (
	"github.com/labstack/echo/v4"                             // Echo web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus exposition handler

	"github.com/iliyamo/car-rental-booking/internal/handler"    // HTTP handlers
	"github.com/iliyamo/car-rental-booking/internal/middleware" // JWT auth, roles, cache, rate limiting
)

// RegisterRoutes registers operational endpoints: the health check, the
// Prometheus scrape endpoint and the uploaded car images.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, imageDir string) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	// Uploaded images are written as /images/<unix millis>.<ext>.
	e.Static("/images", imageDir)
}

// RegisterAuth registers signup, login and session verification.  Signup
// and login share the rate limiter; verify requires a bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/signup", a.Signup, limit)
	g.POST("/login", a.Login, limit)
	g.GET("/verify", a.Verify, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the guest-facing catalogue, booking and payment
// routes.  No authentication is required: bookings create or reuse an
// account by email.  The provider callback is not rate limited because
// Daraja retries on any non-200.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, b *handler.BookingHandler, pay *handler.PaymentHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/cars", p.ListCars, cache)
	e.POST("/bookings", b.Create, limit)
	e.POST("/pay", pay.Pay, limit)
	e.POST("/pay/callback/:bookingId", pay.Callback)
}

// RegisterAdmin registers the back office under /admin.  Every route
// requires a valid token whose role is admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole("admin"))

	g.GET("/dashboard", a.Dashboard)

	g.GET("/cars", a.ListCars)
	g.GET("/cars/:id", a.GetCar)
	g.POST("/cars", a.CreateCar)
	g.PUT("/cars/:id", a.UpdateCar)
	g.DELETE("/cars/:id", a.DeleteCar)

	g.GET("/bookings", a.ListBookings)
	g.PUT("/bookings/:id/status", a.UpdateBookingStatus)
	g.DELETE("/bookings/:id", a.DeleteBooking)

	g.GET("/users", a.ListUsers)
	g.PUT("/users/:id/role", a.UpdateUserRole)
	g.DELETE("/users/:id", a.DeleteUser)
}

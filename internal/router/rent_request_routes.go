package router

import (
	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/handler"
	"github.com/toolshare/rental-backend/internal/middleware"
)

// RegisterRentRequests registers the booking endpoints.  Every route
// requires a valid JWT; whether the caller acts as borrower, lender or
// admin is decided per rent request by the service.
func RegisterRentRequests(e *echo.Echo, h *handler.RentRequestHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// PUT and DELETE address the rent request through rentRequest_id in
	// the body.
	g.POST("/rent-requests", h.Create)
	g.PUT("/rent-requests", h.Update)
	g.DELETE("/rent-requests", h.Delete)

	g.GET("/rent-requests", h.List)
	g.GET("/rent-requests/:id", h.Get)
	g.GET("/transactions", h.Transactions)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/toolshare/rental-backend/internal/handler"
	"github.com/toolshare/rental-backend/internal/middleware"
	"github.com/toolshare/rental-backend/internal/model"
)

// RegisterListings registers listing and review routes.  Browsing is
// public and served through the response cache; cache may be nil.
func RegisterListings(e *echo.Echo, l *handler.ListingHandler, r *handler.ReviewHandler, cache *middleware.ResponseCache, jwtSecret string) {
	browse := []echo.MiddlewareFunc{}
	if cache != nil {
		browse = append(browse, cache.Middleware())
	}
	e.GET("/v1/listings", l.Browse, browse...)
	// unapproved listings are shown to their owner and admins only
	e.GET("/v1/listings/:id", l.Get, middleware.OptionalJWT(jwtSecret))
	e.GET("/v1/users/:id/reviews", r.ForUser)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/listings", l.Create)
	g.PUT("/listings/:id", l.Update)
	g.DELETE("/listings/:id", l.Delete)
	g.POST("/listings/:id/images", l.UploadImage)
	g.POST("/reviews", r.Create)

	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.PUT("/listings/:id/approve", l.Approve)
	admin.PUT("/reviews/:id/approve", r.Approve)
}

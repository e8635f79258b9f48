package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/appforge/gitsync/cmd/gitsync/container"
	"github.com/appforge/gitsync/cmd/gitsync/handlers"
	"github.com/appforge/gitsync/cmd/gitsync/middleware"
)

// RegisterProfileRoutes registers git author profile routes
func RegisterProfileRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewProfileHandler(c.ProfileService, c.Components)

	profile := e.Group("/api/v1/git/profile")
	profile.Use(middleware.RequireIdentity())
	{
		profile.GET("", h.GetGlobalProfile)                           // GET /api/v1/git/profile
		profile.PUT("", h.UpdateGlobalProfile)                        // PUT /api/v1/git/profile
		profile.GET("/:defaultApplicationId", h.GetApplicationProfile)    // GET /api/v1/git/profile/{defaultApplicationId}
		profile.PUT("/:defaultApplicationId", h.UpdateApplicationProfile) // PUT /api/v1/git/profile/{defaultApplicationId}
	}
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/appforge/gitsync/cmd/gitsync/middleware"
	"github.com/appforge/gitsync/cmd/gitsync/service"
	"github.com/appforge/gitsync/common/apperrors"
	"github.com/appforge/gitsync/common/bootstrap"
	"github.com/appforge/gitsync/common/models"
)

// ProfileHandler handles git author profile requests
type ProfileHandler struct {
	profileSvc *service.ProfileService
	components *bootstrap.Components
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileSvc *service.ProfileService, components *bootstrap.Components) *ProfileHandler {
	return &ProfileHandler{
		profileSvc: profileSvc,
		components: components,
	}
}

func (h *ProfileHandler) fail(c echo.Context, err error) error {
	h.components.Logger.Warn("profile operation failed",
		"path", c.Path(),
		"code", string(apperrors.CodeOf(err)),
		"error", err)

	return c.JSON(apperrors.HTTPStatus(err), map[string]interface{}{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err),
	})
}

// GetGlobalProfile returns the caller's global git author profile,
// creating a placeholder one on first access
// GET /api/v1/git/profile
func (h *ProfileHandler) GetGlobalProfile(c echo.Context) error {
	userID := middleware.GetUserID(c)

	profile, err := h.profileSvc.GetOrCreateGlobal(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": profile})
}

// UpdateGlobalProfile replaces the caller's global git author profile
// PUT /api/v1/git/profile
func (h *ProfileHandler) UpdateGlobalProfile(c echo.Context) error {
	userID := middleware.GetUserID(c)

	profile := &models.GitProfile{}
	if err := c.Bind(profile); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	if err := h.profileSvc.StoreGlobal(c.Request().Context(), userID, profile); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": profile})
}

// GetApplicationProfile returns the profile used for one lineage,
// falling back to the global profile when none is pinned
// GET /api/v1/git/profile/:defaultApplicationId
func (h *ProfileHandler) GetApplicationProfile(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	userID := middleware.GetUserID(c)

	profile, err := h.profileSvc.GetForApplication(c.Request().Context(), userID, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": profile})
}

// UpdateApplicationProfile pins a profile to one lineage
// PUT /api/v1/git/profile/:defaultApplicationId
func (h *ProfileHandler) UpdateApplicationProfile(c echo.Context) error {
	id, err := appID(c)
	if err != nil {
		return h.fail(c, err)
	}
	userID := middleware.GetUserID(c)

	profile := &models.GitProfile{}
	if err := c.Bind(profile); err != nil {
		return h.fail(c, apperrors.New(apperrors.InvalidParameter, "request body"))
	}
	if err := h.profileSvc.StoreForApplication(c.Request().Context(), userID, id, profile); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": profile})
}

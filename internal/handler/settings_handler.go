package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/settings"
)

type SettingsHandler struct {
	settings *settings.Service
	users    repository.UserRepository
}

func NewSettingsHandler(st *settings.Service, users repository.UserRepository) *SettingsHandler {
	return &SettingsHandler{settings: st, users: users}
}

type SetSettingRequest struct {
	Value    string `json:"value"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// RequireAdmin must run after the auth middleware.
func (h *SettingsHandler) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := currentUID(c)
		if uid == "" {
			return unauthorized(c)
		}
		u, err := h.users.FindByID(c.Request().Context(), uid)
		if err != nil || u.Role != model.UserRoleAdmin {
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "admin only"))
		}
		return next(c)
	}
}

func (h *SettingsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"settings": h.settings.All(c.Request().Context())})
}

func (h *SettingsHandler) Set(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid key"))
	}
	var req SetSettingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	switch req.Type {
	case "", "string", "number", "boolean":
	default:
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "type must be string, number or boolean"))
	}
	if err := h.settings.Set(c.Request().Context(), key, req.Value, req.Type, req.Category); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserHandler struct {
	users      repository.UserRepository
	authClient *auth.Client
}

// NewUserHandler accepts a nil auth client; display names then come only
// from the request body.
func NewUserHandler(users repository.UserRepository, client *auth.Client) *UserHandler {
	return &UserHandler{users: users, authClient: client}
}

type UserResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	WalletBalance  int64  `json:"walletBalance"`
	BlockedBalance int64  `json:"blockedBalance"`
}

type PublicUserResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UpdateMeRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Role:           string(u.Role),
		WalletBalance:  u.WalletBalance,
		BlockedBalance: u.BlockedBalance,
	}
}

func (h *UserHandler) GetMe(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	u, err := h.users.FindByID(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "profile not created"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch user"))
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

// UpdateMe creates or updates the caller's profile. Admin cannot be
// self-assigned.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	var req UpdateMeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	ctx := c.Request().Context()

	u, err := h.users.FindByID(ctx, uid)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = &model.User{ID: uid, Role: model.UserRoleBuyer}
	case err != nil:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch user"))
	}

	switch role := model.UserRole(req.Role); role {
	case "":
	case model.UserRoleBuyer, model.UserRoleSeller:
		if u.Role != model.UserRoleAdmin {
			u.Role = role
		}
	default:
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "role must be buyer or seller"))
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	} else if u.Name == "" && h.authClient != nil {
		if fu, err := h.authClient.GetUser(ctx, uid); err == nil {
			u.Name = fu.DisplayName
		} else {
			log.WithError(err).WithField("uid", uid).Warn("failed to fetch firebase user")
		}
	}

	if err := h.users.Upsert(ctx, u); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to save user"))
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	u, err := h.users.FindByID(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	}
	return c.JSON(http.StatusOK, PublicUserResponse{ID: u.ID, Name: u.Name})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const DevUserHeader = "X-User-ID"

type AuthMiddleware struct {
	authClient *auth.Client
}

// NewAuthMiddleware verifies Firebase ID tokens for projectID. An empty
// projectID trusts the X-User-ID header instead and must never be used in
// production.
func NewAuthMiddleware(ctx context.Context, projectID string) (*AuthMiddleware, error) {
	if projectID == "" {
		log.Warn("FIREBASE_PROJECT_ID is not set; trusting " + DevUserHeader)
		return &AuthMiddleware{}, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthMiddleware{authClient: client}, nil
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.authClient == nil {
			uid := strings.TrimSpace(c.Request().Header.Get(DevUserHeader))
			if uid == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			c.Set("uid", uid)
			return next(c)
		}
		authz := c.Request().Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		token, err := m.authClient.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		c.Set("uid", token.UID)
		return next(c)
	}
}

// OptionalAuth sets uid when credentials are present and valid, and lets the
// request through either way.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.authClient == nil {
			if uid := strings.TrimSpace(c.Request().Header.Get(DevUserHeader)); uid != "" {
				c.Set("uid", uid)
			}
			return next(c)
		}
		if authz := c.Request().Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
			if token, err := m.authClient.VerifyIDToken(c.Request().Context(), strings.TrimPrefix(authz, "Bearer ")); err == nil {
				c.Set("uid", token.UID)
			}
		}
		return next(c)
	}
}

// Client is nil in dev mode.
func (m *AuthMiddleware) Client() *auth.Client {
	return m.authClient
}

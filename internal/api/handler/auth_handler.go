package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
)

type AuthHandler struct {
	sessions ports.SessionService
}

func NewAuthHandler(sessions ports.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=1"`
}

type identityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Identity      *identityResponse `json:"identity,omitempty"`
}

type loginResponse struct {
	Token    string           `json:"token"`
	Identity identityResponse `json:"identity"`
}

func toIdentityResponse(ident *domain.Identity) *identityResponse {
	if ident == nil {
		return nil
	}
	return &identityResponse{
		ID:          ident.ID,
		Email:       ident.Email,
		Role:        ident.Role,
		DisplayName: ident.DisplayName,
		ExpiresAt:   ident.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.sessions.Register(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]string{"email": domain.NormalizeEmail(req.Email)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ident, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:    h.sessions.Credential(c.Request().Context()),
		Identity: *toIdentityResponse(ident),
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.sessions.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Session handles GET /auth/session. It never fails: an expired or missing
// credential simply reports the anonymous state.
func (h *AuthHandler) Session(c echo.Context) error {
	if !h.sessions.HasValidSession(c.Request().Context()) {
		return c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, sessionResponse{
		Authenticated: true,
		Identity:      toIdentityResponse(h.sessions.CurrentIdentity()),
	})
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ident, err := h.sessions.UpdateDisplayName(c.Request().Context(), req.DisplayName)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toIdentityResponse(ident))
}

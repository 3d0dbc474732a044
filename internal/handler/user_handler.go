package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/model"
	"farmtrace/internal/service"
)

// UserHandler serves stakeholder profiles.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ExportKeyRequest carries the password that unlocks the caller's wallet.
type ExportKeyRequest struct {
	Password string `json:"password" validate:"required"`
}

// ExportKeyResponse returns a decrypted private key.
type ExportKeyResponse struct {
	WalletAddress string `json:"wallet_address"`
	PrivateKey    string `json:"private_key"`
}

// Me godoc
// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param offset query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {array} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	var role model.Role
	if raw := c.QueryParam("role"); raw != "" {
		r, ok := model.ParseRole(raw)
		if !ok {
			return badRequest("invalid role", "INVALID_QUERY")
		}
		role = r
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return err
	}

	users, err := h.svc.List(c.Request().Context(), role, offset, limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ExportKey godoc
// @Summary Export the caller's wallet private key
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body ExportKeyRequest true "Wallet password"
// @Success 200 {object} ExportKeyResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /users/{id}/export-key [post]
func (h *UserHandler) ExportKey(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	if caller != id {
		return mapError(fmt.Errorf("%w: only the wallet owner can export its key", apperrors.ErrForbidden))
	}

	var req ExportKeyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	key, err := h.svc.ExportPrivateKey(ctx, id, req.Password)
	if err != nil {
		return mapError(err)
	}
	user, err := h.svc.Get(ctx, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ExportKeyResponse{WalletAddress: user.WalletAddress, PrivateKey: key})
}

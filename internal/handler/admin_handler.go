package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"farmtrace/internal/model"
	"farmtrace/internal/service"
)

// AdminHandler serves operator actions guarded by the admin API key.
type AdminHandler struct {
	users service.UserService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(users service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// VerifyResponse represents the outcome of a verification.
type VerifyResponse struct {
	User   *model.User    `json:"user"`
	Ledger LedgerResponse `json:"ledger"`
}

// VerifyUser godoc
// @Summary Mark a user as verified
// @Description Verifies the user locally and mirrors verifyUser with the operator key.
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param id path string true "User ID"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id}/verify [post]
func (h *AdminHandler) VerifyUser(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	user, res, err := h.users.Verify(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, VerifyResponse{User: user, Ledger: res})
}

// SyncVerification godoc
// @Summary Copy the on-chain verification flag to the user record
// @Tags admin
// @Produce json
// @Security AdminKey
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /admin/users/{id}/sync-verification [post]
func (h *AdminHandler) SyncVerification(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.SyncVerification(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, user)
}

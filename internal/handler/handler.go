package handler

import (
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"farmtrace/internal/auth"
	"farmtrace/internal/errors"
	"farmtrace/internal/model"
)

// ContextKeyUser is where echo-jwt stores the parsed token.
const ContextKeyUser = "user"

// LedgerResponse reports the outcome of a ledger mirror.
type LedgerResponse = model.LedgerResult

// mapError converts a service error into an echo HTTP error.
func mapError(err error) *echo.HTTPError {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(message, code string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// bindAndValidate binds the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

// ClaimsFrom returns the claims of the authenticated caller.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	token, ok := c.Get(ContextKeyUser).(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*auth.Claims)
	return claims, ok
}

func callerID(c echo.Context) (uuid.UUID, error) {
	claims, ok := ClaimsFrom(c)
	if !ok || claims.UserID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid token",
			Code:  "UNAUTHORIZED",
		})
	}
	return claims.UserID, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid "+name, "INVALID_UUID")
	}
	return id, nil
}

// intQuery reads a non-negative integer query parameter, def when absent.
func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid "+name, "INVALID_QUERY")
	}
	return n, nil
}

// optionalDecimal parses s, returning zero for an empty string.
func optionalDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, badRequest("invalid "+field, "INVALID_AMOUNT")
	}
	return d, nil
}

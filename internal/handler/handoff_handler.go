package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"farmtrace/internal/model"
	"farmtrace/internal/service"
)

// HandoffHandler handles custody transitions and provenance queries.
type HandoffHandler struct {
	handoffService service.HandoffService
}

// NewHandoffHandler creates a new handoff handler.
func NewHandoffHandler(handoffService service.HandoffService) *HandoffHandler {
	return &HandoffHandler{handoffService: handoffService}
}

// HandoffRequest represents a custody transfer from the caller.
type HandoffRequest struct {
	ToUserID    string `json:"to_user_id" validate:"required,uuid"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Location    string `json:"location" validate:"max=255"`
	Temperature string `json:"temperature"`
	Notes       string `json:"notes" validate:"max=2000"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url"`
	Password    string `json:"password"`
}

// TransitRequest marks a batch as shipped by its holder.
type TransitRequest struct {
	Location    string `json:"location" validate:"max=255"`
	Temperature string `json:"temperature"`
	Notes       string `json:"notes" validate:"max=2000"`
	Password    string `json:"password"`
}

// RecordHandoff godoc
// @Summary Hand a batch to another stakeholder
// @Description Moves custody from the caller to to_user_id. A quantity below the batch quantity splits off a remainder that stays with the caller.
// @Tags handoffs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Param request body HandoffRequest true "Handoff data"
// @Success 201 {object} model.HandoffResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /batches/{id}/handoffs [post]
func (h *HandoffHandler) RecordHandoff(c echo.Context) error {
	fromID, err := callerID(c)
	if err != nil {
		return err
	}
	batchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req HandoffRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		return badRequest("invalid to_user_id", "INVALID_UUID")
	}

	in := model.HandoffInput{
		Location: req.Location,
		Notes:    req.Notes,
		PhotoURL: req.PhotoURL,
		Password: req.Password,
	}
	if in.Quantity, err = optionalDecimal(req.Quantity, "quantity"); err != nil {
		return err
	}
	if in.Price, err = optionalDecimal(req.Price, "price"); err != nil {
		return err
	}
	if in.Temperature, err = temperature(req.Temperature); err != nil {
		return err
	}

	result, err := h.handoffService.RecordHandoff(c.Request().Context(), batchID, fromID, toID, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// MarkInTransit godoc
// @Summary Mark a harvested batch as in transit
// @Tags handoffs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Param request body TransitRequest true "Transit data"
// @Success 201 {object} model.HandoffResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /batches/{id}/transit [post]
func (h *HandoffHandler) MarkInTransit(c echo.Context) error {
	holderID, err := callerID(c)
	if err != nil {
		return err
	}
	batchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req TransitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := model.HandoffInput{
		Location: req.Location,
		Notes:    req.Notes,
		Password: req.Password,
	}
	if in.Temperature, err = temperature(req.Temperature); err != nil {
		return err
	}

	result, err := h.handoffService.MarkInTransit(c.Request().Context(), batchID, holderID, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// GetHistory godoc
// @Summary Handoff history of a batch
// @Description Events in ascending sequence order after the given sequence number.
// @Tags handoffs
// @Produce json
// @Param id path string true "Batch ID"
// @Param after query int false "Return events with a greater sequence"
// @Param limit query int false "Page size"
// @Success 200 {array} model.HandoffEvent
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /batches/{id}/history [get]
func (h *HandoffHandler) GetHistory(c echo.Context) error {
	batchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	after, err := intQuery(c, "after", 0)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return err
	}

	events, err := h.handoffService.GetBatchHistory(c.Request().Context(), batchID, after, limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// GetTrace godoc
// @Summary Consumer provenance trace
// @Description The batch, its history and the history of every batch it was split from.
// @Tags trace
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} model.BatchTrace
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /trace/{id} [get]
func (h *HandoffHandler) GetTrace(c echo.Context) error {
	batchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	trace, err := h.handoffService.GetBatchTrace(c.Request().Context(), batchID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, trace)
}

func temperature(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, badRequest("invalid temperature", "INVALID_TEMPERATURE")
	}
	return &d, nil
}

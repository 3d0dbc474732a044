package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"farmtrace/internal/model"
	"farmtrace/internal/service"
)

// BatchHandler handles batch endpoints.
type BatchHandler struct {
	batchService service.BatchService
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// CreateBatchRequest represents a harvest registration.
type CreateBatchRequest struct {
	ProduceType  string     `json:"produce_type" validate:"required,max=100"`
	Variety      string     `json:"variety" validate:"max=100"`
	Quantity     string     `json:"quantity" validate:"required"`
	Unit         string     `json:"unit" validate:"max=16"`
	Price        string     `json:"price"`
	QualityGrade string     `json:"quality_grade" validate:"max=32"`
	Organic      bool       `json:"organic"`
	FarmLocation string     `json:"farm_location" validate:"max=255"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	HarvestedAt  *time.Time `json:"harvested_at"`
	PhotoURL     string     `json:"photo_url" validate:"omitempty,url"`
	Password     string     `json:"password"`
}

// BatchResponse represents a batch with its ledger outcome.
type BatchResponse struct {
	Batch  *model.Batch   `json:"batch"`
	Ledger LedgerResponse `json:"ledger"`
}

// BatchListResponse is a page of batches.
type BatchListResponse struct {
	Batches []model.Batch `json:"batches"`
	Total   int64         `json:"total"`
}

// CreateBatch godoc
// @Summary Register a harvested batch
// @Description The caller must be a farmer. A password signs the ledger mirror; without one it is skipped.
// @Tags batches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBatchRequest true "Batch data"
// @Success 201 {object} BatchResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /batches [post]
func (h *BatchHandler) CreateBatch(c echo.Context) error {
	producerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req CreateBatchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	quantity, err := optionalDecimal(req.Quantity, "quantity")
	if err != nil {
		return err
	}
	price, err := optionalDecimal(req.Price, "price")
	if err != nil {
		return err
	}

	in := service.CreateBatchInput{
		ProduceType:  req.ProduceType,
		Variety:      req.Variety,
		Quantity:     quantity,
		Unit:         req.Unit,
		Price:        price,
		QualityGrade: req.QualityGrade,
		Organic:      req.Organic,
		FarmLocation: req.FarmLocation,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		PhotoURL:     req.PhotoURL,
		Password:     req.Password,
	}
	if req.HarvestedAt != nil {
		in.HarvestedAt = req.HarvestedAt.UTC()
	}

	batch, res, err := h.batchService.CreateBatch(c.Request().Context(), in, producerID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, BatchResponse{Batch: batch, Ledger: res})
}

// ListBatches godoc
// @Summary List batches
// @Tags batches
// @Produce json
// @Security BearerAuth
// @Param holder_id query string false "Current holder"
// @Param producer_id query string false "Producing farmer"
// @Param status query string false "Batch status"
// @Param offset query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {object} BatchListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /batches [get]
func (h *BatchHandler) ListBatches(c echo.Context) error {
	var filter model.BatchFilter
	var err error

	if filter.HolderID, err = uuidQuery(c, "holder_id"); err != nil {
		return err
	}
	if filter.ProducerID, err = uuidQuery(c, "producer_id"); err != nil {
		return err
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := model.ParseBatchStatus(raw)
		if !ok {
			return badRequest("invalid status", "INVALID_QUERY")
		}
		filter.Status = status
	}
	if filter.Offset, err = intQuery(c, "offset", 0); err != nil {
		return err
	}
	if filter.Limit, err = intQuery(c, "limit", 0); err != nil {
		return err
	}

	batches, total, err := h.batchService.ListBatches(c.Request().Context(), filter)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, BatchListResponse{Batches: batches, Total: total})
}

// GetBatch godoc
// @Summary Get batch by id
// @Tags batches
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Success 200 {object} model.Batch
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /batches/{id} [get]
func (h *BatchHandler) GetBatch(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	batch, err := h.batchService.GetBatch(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, batch)
}

// GetMetadata godoc
// @Summary Get the off-chain metadata document of a batch
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} service.BatchMetadata
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /batches/{id}/metadata [get]
func (h *BatchHandler) GetMetadata(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	meta, err := h.batchService.GetMetadata(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, meta)
}

func uuidQuery(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("invalid "+name, "INVALID_UUID")
	}
	return id, nil
}

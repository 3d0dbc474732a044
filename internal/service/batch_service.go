package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmtrace/internal/cache"
	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/ledger"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/mq"
	"farmtrace/internal/repository"
	"farmtrace/internal/storage"
)

const batchCacheTTL = time.Minute

// CreateBatchInput carries the descriptive fields of a new batch.
type CreateBatchInput struct {
	ProduceType  string
	Variety      string
	Quantity     decimal.Decimal
	Unit         string
	Price        decimal.Decimal
	QualityGrade string
	Organic      bool
	FarmLocation string
	Latitude     *float64
	Longitude    *float64
	HarvestedAt  time.Time
	PhotoURL     string
	// Password unlocks the farmer's wallet for the ledger mirror. Empty skips it.
	Password string
}

// BatchMetadata is the off-chain document stored for every batch.
type BatchMetadata struct {
	BatchID      uuid.UUID       `json:"batch_id"`
	ProducerID   uuid.UUID       `json:"producer_id"`
	Producer     string          `json:"producer"`
	Wallet       string          `json:"producer_wallet"`
	ProduceType  string          `json:"produce_type"`
	Variety      string          `json:"variety,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	QualityGrade string          `json:"quality_grade,omitempty"`
	Organic      bool            `json:"organic"`
	FarmLocation string          `json:"farm_location,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	HarvestedAt  time.Time       `json:"harvested_at"`
	PhotoURL     string          `json:"photo_url,omitempty"`
}

// BatchService manages produce batches.
type BatchService interface {
	CreateBatch(ctx context.Context, in CreateBatchInput, producerID uuid.UUID) (*model.Batch, model.LedgerResult, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	ListBatches(ctx context.Context, filter model.BatchFilter) ([]model.Batch, int64, error)
	GetMetadata(ctx context.Context, id uuid.UUID) (*BatchMetadata, error)
}

type batchService struct {
	store     repository.Store
	mirror    *LedgerMirror
	docs      *storage.Documents
	publisher *mq.Publisher
	cache     *cache.Client
	log       *logger.Logger
}

// NewBatchService creates a new batch service. docs may be nil, which
// disables metadata documents.
func NewBatchService(
	store repository.Store,
	mirror *LedgerMirror,
	docs *storage.Documents,
	publisher *mq.Publisher,
	cache *cache.Client,
	log *logger.Logger,
) BatchService {
	return &batchService{
		store:     store,
		mirror:    mirror,
		docs:      docs,
		publisher: publisher,
		cache:     cache,
		log:       log,
	}
}

func batchCacheKey(id uuid.UUID) string {
	return "batch:" + id.String()
}

func validateBatch(in CreateBatchInput) (CreateBatchInput, error) {
	in.ProduceType = strings.TrimSpace(in.ProduceType)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.ProduceType == "" {
		return in, apperrors.NewValidationError("produce_type", "is required")
	}
	if !in.Quantity.IsPositive() {
		return in, apperrors.NewValidationError("quantity", "must be greater than zero")
	}
	if in.Price.IsNegative() {
		return in, apperrors.NewValidationError("price", "must not be negative")
	}
	if err := checkScale("quantity", in.Quantity, model.QuantityScale); err != nil {
		return in, err
	}
	if err := checkScale("price", in.Price, model.PriceScale); err != nil {
		return in, err
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return in, apperrors.NewValidationError("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return in, apperrors.NewValidationError("longitude", "must be between -180 and 180")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return in, apperrors.NewValidationError("latitude", "latitude and longitude must be given together")
	}
	if in.Unit == "" {
		in.Unit = "kg"
	}
	if in.HarvestedAt.IsZero() {
		in.HarvestedAt = time.Now().UTC()
	}
	return in, nil
}

// CreateBatch records a harvest: the batch and its harvest event are written
// in one transaction, then the metadata document and ledger mirror follow.
func (s *batchService) CreateBatch(ctx context.Context, in CreateBatchInput, producerID uuid.UUID) (*model.Batch, model.LedgerResult, error) {
	in, err := validateBatch(in)
	if err != nil {
		return nil, model.LedgerResult{}, err
	}

	producer, err := s.store.Users().FindByID(ctx, producerID)
	if err != nil {
		return nil, model.LedgerResult{}, fmt.Errorf("producer %s: %w", producerID, err)
	}
	if producer.Role != model.RoleFarmer {
		return nil, model.LedgerResult{}, fmt.Errorf("%w: only farmers can create batches", apperrors.ErrForbidden)
	}

	key, err := s.mirror.Unlock(producer, in.Password)
	if err != nil {
		return nil, model.LedgerResult{}, err
	}

	now := time.Now().UTC()
	batch := &model.Batch{
		ProducerID:      producer.ID,
		ProduceType:     in.ProduceType,
		Variety:         strings.TrimSpace(in.Variety),
		Quantity:        in.Quantity,
		Unit:            in.Unit,
		Price:           in.Price,
		QualityGrade:    strings.TrimSpace(in.QualityGrade),
		Organic:         in.Organic,
		FarmLocation:    strings.TrimSpace(in.FarmLocation),
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		HarvestedAt:     in.HarvestedAt,
		CurrentHolderID: producer.ID,
		Status:          model.StatusHarvested,
		PhotoURL:        in.PhotoURL,
		LedgerStatus:    model.LedgerStatusSkipped,
	}
	event := &model.HandoffEvent{
		Sequence:     1,
		ToUserID:     producer.ID,
		EventType:    model.EventHarvest,
		StatusAfter:  model.StatusHarvested,
		Quantity:     in.Quantity,
		Price:        in.Price,
		Location:     batch.FarmLocation,
		PhotoURL:     in.PhotoURL,
		LedgerStatus: model.LedgerStatusSkipped,
		OccurredAt:   now,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Batches().Create(ctx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		event.BatchID = batch.ID
		if err := tx.Handoffs().Create(ctx, event); err != nil {
			return fmt.Errorf("create harvest event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, model.LedgerResult{}, err
	}
	s.log.Info("Batch service: batch created", "batch_id", batch.ID, "producer_id", producer.ID, "quantity", batch.Quantity)

	s.storeMetadata(ctx, batch, producer)

	res := s.mirror.Submit(ctx, key, ledger.CreateBatch(batch.ID, batch.ProduceType, batch.Quantity))
	logResult(s.log, "Batch service: batch mirrored", res, "batch_id", batch.ID)
	s.recordLedger(ctx, batch, event, res)

	s.publisher.Publish(ctx, mq.EventBatchCreated, map[string]any{
		"batch_id":     batch.ID,
		"producer_id":  batch.ProducerID,
		"produce_type": batch.ProduceType,
		"quantity":     batch.Quantity,
	})

	return batch, res, nil
}

func (s *batchService) storeMetadata(ctx context.Context, batch *model.Batch, producer *model.User) {
	if s.docs == nil {
		return
	}
	ref, err := s.docs.PutJSON(ctx, storage.BatchMetadataKey(batch.ID), BatchMetadata{
		BatchID:      batch.ID,
		ProducerID:   producer.ID,
		Producer:     producer.Name,
		Wallet:       producer.WalletAddress,
		ProduceType:  batch.ProduceType,
		Variety:      batch.Variety,
		Quantity:     batch.Quantity,
		Unit:         batch.Unit,
		QualityGrade: batch.QualityGrade,
		Organic:      batch.Organic,
		FarmLocation: batch.FarmLocation,
		Latitude:     batch.Latitude,
		Longitude:    batch.Longitude,
		HarvestedAt:  batch.HarvestedAt,
		PhotoURL:     batch.PhotoURL,
	})
	if err != nil {
		s.log.Warn("Batch service: failed to store metadata document", "batch_id", batch.ID, "error", err)
		return
	}
	if err := s.store.Batches().UpdateMetadataRef(ctx, batch.ID, ref); err != nil {
		s.log.Error("Batch service: failed to save metadata reference", "batch_id", batch.ID, "error", err)
		return
	}
	batch.MetadataRef = ref
}

func (s *batchService) recordLedger(ctx context.Context, batch *model.Batch, event *model.HandoffEvent, res model.LedgerResult) {
	var ledgerID string
	if res.OK() {
		ledgerID = ledger.BatchKeyHex(batch.ID)
	}
	if err := s.store.Batches().UpdateLedger(ctx, batch.ID, ledgerID, res.Status, res.TxHash); err != nil {
		s.log.Error("Batch service: failed to record ledger outcome", "batch_id", batch.ID, "error", err)
	}
	if err := s.store.Handoffs().UpdateLedger(ctx, event.ID, res.Status, res.TxHash); err != nil {
		s.log.Error("Batch service: failed to record ledger outcome", "event_id", event.ID, "error", err)
	}
	batch.LedgerID = ledgerID
	batch.LedgerStatus = res.Status
	batch.LedgerTxHash = res.TxHash
	event.LedgerStatus = res.Status
	event.LedgerTxHash = res.TxHash
}

func (s *batchService) GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var cached model.Batch
	if s.cache.GetJSON(ctx, batchCacheKey(id), &cached) {
		return &cached, nil
	}

	batch, err := s.store.Batches().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", id, err)
	}
	s.cache.SetJSON(ctx, batchCacheKey(id), batch, batchCacheTTL)
	return batch, nil
}

func (s *batchService) ListBatches(ctx context.Context, filter model.BatchFilter) ([]model.Batch, int64, error) {
	if filter.Offset < 0 {
		return nil, 0, apperrors.NewValidationError("offset", "must not be negative")
	}
	return s.store.Batches().List(ctx, filter)
}

// GetMetadata loads the metadata document of a batch from object storage.
func (s *batchService) GetMetadata(ctx context.Context, id uuid.UUID) (*BatchMetadata, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.docs == nil || batch.MetadataRef == "" {
		return nil, fmt.Errorf("metadata of batch %s: %w", id, apperrors.ErrNotFound)
	}

	var meta BatchMetadata
	if err := s.docs.GetJSON(ctx, s.docs.KeyFromRef(batch.MetadataRef), &meta); err != nil {
		s.log.Warn("Batch service: failed to load metadata document", "batch_id", id, "error", err)
		return nil, errors.Join(apperrors.ErrNotFound, err)
	}
	return &meta, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"farmtrace/internal/model"
)

// BatchRepository defines batch persistence operations.
type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	Update(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	List(ctx context.Context, filter model.BatchFilter) ([]model.Batch, int64, error)
	UpdateMetadataRef(ctx context.Context, id uuid.UUID, ref string) error
	UpdateLedger(ctx context.Context, id uuid.UUID, ledgerID string, status model.LedgerStatus, txHash string) error
}

type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

// Create creates a new batch.
func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return wrapErr(r.db.WithContext(ctx).Omit(clause.Associations).Create(batch).Error)
}

// Update writes every column of batch.
func (r *batchRepository) Update(ctx context.Context, batch *model.Batch) error {
	return wrapErr(r.db.WithContext(ctx).Omit(clause.Associations).Save(batch).Error)
}

// FindByID finds a batch by ID.
func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &batch, nil
}

// FindByIDForUpdate finds a batch by ID with row-level lock for update.
func (r *batchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &batch, nil
}

// List returns batches matching filter, newest first, and the total count.
func (r *batchRepository) List(ctx context.Context, filter model.BatchFilter) ([]model.Batch, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Batch{})
	if filter.HolderID != uuid.Nil {
		q = q.Where("current_holder_id = ?", filter.HolderID)
	}
	if filter.ProducerID != uuid.Nil {
		q = q.Where("producer_id = ?", filter.ProducerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}

	var batches []model.Batch
	if err := q.Order("created_at DESC").Offset(filter.Offset).Limit(pageLimit(filter.Limit)).
		Find(&batches).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return batches, total, nil
}

func (r *batchRepository) UpdateMetadataRef(ctx context.Context, id uuid.UUID, ref string) error {
	return wrapErr(r.db.WithContext(ctx).Model(&model.Batch{}).Where("id = ?", id).
		Update("metadata_ref", ref).Error)
}

func (r *batchRepository) UpdateLedger(ctx context.Context, id uuid.UUID, ledgerID string, status model.LedgerStatus, txHash string) error {
	updates := map[string]any{"ledger_status": status, "ledger_tx_hash": txHash}
	if ledgerID != "" {
		updates["ledger_id"] = ledgerID
	}
	return wrapErr(r.db.WithContext(ctx).Model(&model.Batch{}).Where("id = ?", id).Updates(updates).Error)
}

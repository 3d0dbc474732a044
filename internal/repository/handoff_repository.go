package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"farmtrace/internal/model"
)

// HistoryRange selects a slice of a batch history by sequence number.
// Zero fields are unbounded.
type HistoryRange struct {
	After   int
	Through int
	Limit   int
}

// HandoffRepository defines handoff event persistence. Events are append-only.
type HandoffRepository interface {
	Create(ctx context.Context, event *model.HandoffEvent) error
	// LastSequence returns the highest sequence of a batch, 0 when it has none.
	LastSequence(ctx context.Context, batchID uuid.UUID) (int, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID, rng HistoryRange) ([]model.HandoffEvent, error)
	UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error
}

type handoffRepository struct {
	db *gorm.DB
}

// NewHandoffRepository creates a new handoff repository.
func NewHandoffRepository(db *gorm.DB) HandoffRepository {
	return &handoffRepository{db: db}
}

func (r *handoffRepository) Create(ctx context.Context, event *model.HandoffEvent) error {
	return wrapErr(r.db.WithContext(ctx).Create(event).Error)
}

func (r *handoffRepository) LastSequence(ctx context.Context, batchID uuid.UUID) (int, error) {
	var seq int
	err := r.db.WithContext(ctx).Model(&model.HandoffEvent{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("batch_id = ?", batchID).
		Scan(&seq).Error
	if err != nil {
		return 0, wrapErr(err)
	}
	return seq, nil
}

// ListByBatch returns events in ascending sequence order.
func (r *handoffRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, rng HistoryRange) ([]model.HandoffEvent, error) {
	q := r.db.WithContext(ctx).Where("batch_id = ?", batchID)
	if rng.After > 0 {
		q = q.Where("sequence > ?", rng.After)
	}
	if rng.Through > 0 {
		q = q.Where("sequence <= ?", rng.Through)
	}
	if rng.Limit > 0 {
		q = q.Limit(pageLimit(rng.Limit))
	}

	events := make([]model.HandoffEvent, 0)
	if err := q.Order("sequence ASC").Find(&events).Error; err != nil {
		return nil, wrapErr(err)
	}
	return events, nil
}

func (r *handoffRepository) UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error {
	return wrapErr(r.db.WithContext(ctx).Model(&model.HandoffEvent{}).Where("id = ?", id).
		Updates(map[string]any{"ledger_status": status, "ledger_tx_hash": txHash}).Error)
}

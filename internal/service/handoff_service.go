package service

import (
	"context"
	"crypto/ecdsa"
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
)

const (
	traceCacheTTL = time.Minute
	// maxLineageDepth bounds the walk up parent_batch_id links.
	maxLineageDepth = 64
)

// HandoffService executes custody transitions and serves batch history.
type HandoffService interface {
	RecordHandoff(ctx context.Context, batchID, fromID, toID uuid.UUID, in model.HandoffInput) (*model.HandoffResult, error)
	MarkInTransit(ctx context.Context, batchID, holderID uuid.UUID, in model.HandoffInput) (*model.HandoffResult, error)
	GetBatchHistory(ctx context.Context, batchID uuid.UUID, afterSeq, limit int) ([]model.HandoffEvent, error)
	GetBatchTrace(ctx context.Context, batchID uuid.UUID) (*model.BatchTrace, error)
}

type handoffService struct {
	store     repository.Store
	mirror    *LedgerMirror
	publisher *mq.Publisher
	cache     *cache.Client
	log       *logger.Logger
	now       func() time.Time
}

// NewHandoffService creates a new handoff service.
func NewHandoffService(
	store repository.Store,
	mirror *LedgerMirror,
	publisher *mq.Publisher,
	cache *cache.Client,
	log *logger.Logger,
) HandoffService {
	return &handoffService{
		store:     store,
		mirror:    mirror,
		publisher: publisher,
		cache:     cache,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func traceCacheKey(id uuid.UUID) string {
	return "trace:" + id.String()
}

func validateHandoff(in model.HandoffInput) error {
	if in.Quantity.IsNegative() {
		return apperrors.NewValidationError("quantity", "must not be negative")
	}
	if in.Price.IsNegative() {
		return apperrors.NewValidationError("price", "must not be negative")
	}
	if err := checkScale("quantity", in.Quantity, model.QuantityScale); err != nil {
		return err
	}
	if err := checkScale("price", in.Price, model.PriceScale); err != nil {
		return err
	}
	if in.Temperature != nil {
		return checkScale("temperature", *in.Temperature, model.TemperatureScale)
	}
	return nil
}

// checkScale rejects values with more decimal places than their column
// stores, which MySQL would otherwise round silently.
func checkScale(field string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Truncate(places)) {
		return apperrors.NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", places))
	}
	return nil
}

// RecordHandoff moves custody of a batch from its holder to another user.
//
// The transition is evaluated and written under a row lock in a single
// transaction: the new event, the batch's holder, status and quantity, and for
// a partial quantity a remainder batch that stays with the sender. The ledger
// mirror runs after commit and cannot undo it. A zero quantity hands off the
// whole batch.
func (s *handoffService) RecordHandoff(ctx context.Context, batchID, fromID, toID uuid.UUID, in model.HandoffInput) (*model.HandoffResult, error) {
	if err := validateHandoff(in); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, apperrors.NewValidationError("to_user_id", "must differ from the sender")
	}

	sender, err := s.store.Users().FindByID(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("sender %s: %w", fromID, err)
	}
	receiver, err := s.store.Users().FindByID(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("receiver %s: %w", toID, err)
	}
	key, err := s.mirror.Unlock(sender, in.Password)
	if err != nil {
		return nil, err
	}

	result := &model.HandoffResult{}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		batch, err := tx.Batches().FindByIDForUpdate(ctx, batchID)
		if err != nil {
			return fmt.Errorf("batch %s: %w", batchID, err)
		}
		if batch.CurrentHolderID != fromID {
			return fmt.Errorf("%w: sender does not hold batch %s", apperrors.ErrForbidden, batchID)
		}

		transition, err := model.NextTransition(batch.Status, receiver.Role)
		if err != nil {
			return err
		}

		quantity := in.Quantity
		if quantity.IsZero() {
			quantity = batch.Quantity
		}
		if quantity.GreaterThan(batch.Quantity) {
			return apperrors.NewValidationError("quantity", fmt.Sprintf("exceeds batch quantity %s", batch.Quantity))
		}

		last, err := tx.Handoffs().LastSequence(ctx, batch.ID)
		if err != nil {
			return err
		}

		if quantity.LessThan(batch.Quantity) {
			remainder, err := s.split(ctx, tx, batch, fromID, last, batch.Quantity.Sub(quantity))
			if err != nil {
				return err
			}
			result.Remainder = remainder
		}

		event := s.newEvent(batch.ID, last+1, fromID, toID, transition, quantity, in)
		if err := tx.Handoffs().Create(ctx, &event); err != nil {
			return fmt.Errorf("create handoff event: %w", err)
		}

		batch.Quantity = quantity
		batch.Status = transition.Next
		batch.CurrentHolderID = toID
		if err := tx.Batches().Update(ctx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		result.Batch = *batch
		result.Event = event
		return nil
	})
	if err != nil {
		s.log.Debug("Handoff service: handoff rejected", "batch_id", batchID, "from", fromID, "to", toID, "error", err)
		return nil, err
	}
	s.log.Info("Handoff service: handoff recorded",
		"batch_id", batchID, "from", fromID, "to", toID,
		"event", result.Event.EventType, "status", result.Batch.Status, "quantity", result.Event.Quantity)

	s.afterCommit(ctx, result, key, receiver.WalletAddress)
	return result, nil
}

// MarkInTransit records that the holder has shipped the batch. Custody does
// not change and the whole batch moves.
func (s *handoffService) MarkInTransit(ctx context.Context, batchID, holderID uuid.UUID, in model.HandoffInput) (*model.HandoffResult, error) {
	if err := validateHandoff(in); err != nil {
		return nil, err
	}

	holder, err := s.store.Users().FindByID(ctx, holderID)
	if err != nil {
		return nil, fmt.Errorf("holder %s: %w", holderID, err)
	}
	key, err := s.mirror.Unlock(holder, in.Password)
	if err != nil {
		return nil, err
	}

	result := &model.HandoffResult{}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		batch, err := tx.Batches().FindByIDForUpdate(ctx, batchID)
		if err != nil {
			return fmt.Errorf("batch %s: %w", batchID, err)
		}
		if batch.CurrentHolderID != holderID {
			return fmt.Errorf("%w: caller does not hold batch %s", apperrors.ErrForbidden, batchID)
		}

		transition, err := model.TransitTransition(batch.Status, holder.Role)
		if err != nil {
			return err
		}
		if !in.Quantity.IsZero() && !in.Quantity.Equal(batch.Quantity) {
			return apperrors.NewValidationError("quantity", "a batch is shipped whole")
		}

		last, err := tx.Handoffs().LastSequence(ctx, batch.ID)
		if err != nil {
			return err
		}

		event := s.newEvent(batch.ID, last+1, holderID, holderID, transition, batch.Quantity, in)
		if err := tx.Handoffs().Create(ctx, &event); err != nil {
			return fmt.Errorf("create transit event: %w", err)
		}

		batch.Status = transition.Next
		if err := tx.Batches().Update(ctx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		result.Batch = *batch
		result.Event = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Handoff service: batch in transit", "batch_id", batchID, "holder", holderID)

	s.afterCommit(ctx, result, key, holder.WalletAddress)
	return result, nil
}

// split carves a remainder batch off batch. The remainder keeps the holder
// and status and opens its own history with a split event.
func (s *handoffService) split(ctx context.Context, tx repository.Store, batch *model.Batch, holderID uuid.UUID, parentSeq int, quantity decimal.Decimal) (*model.Batch, error) {
	parentID := batch.ID
	remainder := *batch
	remainder.ID = uuid.Nil
	remainder.ParentBatchID = &parentID
	remainder.ParentSequence = parentSeq
	remainder.Quantity = quantity
	remainder.LedgerID = ""
	remainder.LedgerStatus = model.LedgerStatusSkipped
	remainder.LedgerTxHash = ""
	remainder.CreatedAt = time.Time{}
	remainder.UpdatedAt = time.Time{}

	if err := tx.Batches().Create(ctx, &remainder); err != nil {
		return nil, fmt.Errorf("create remainder batch: %w", err)
	}

	from := holderID
	event := model.HandoffEvent{
		BatchID:      remainder.ID,
		Sequence:     1,
		FromUserID:   &from,
		ToUserID:     holderID,
		EventType:    model.EventSplit,
		StatusAfter:  remainder.Status,
		Quantity:     quantity,
		Price:        batch.Price,
		Notes:        "split from batch " + parentID.String(),
		LedgerStatus: model.LedgerStatusSkipped,
		OccurredAt:   s.now(),
	}
	if err := tx.Handoffs().Create(ctx, &event); err != nil {
		return nil, fmt.Errorf("create split event: %w", err)
	}
	return &remainder, nil
}

func (s *handoffService) newEvent(batchID uuid.UUID, seq int, fromID, toID uuid.UUID, t model.Transition, quantity decimal.Decimal, in model.HandoffInput) model.HandoffEvent {
	from := fromID
	return model.HandoffEvent{
		BatchID:      batchID,
		Sequence:     seq,
		FromUserID:   &from,
		ToUserID:     toID,
		EventType:    t.Event,
		StatusAfter:  t.Next,
		Quantity:     quantity,
		Price:        in.Price,
		Location:     strings.TrimSpace(in.Location),
		Temperature:  in.Temperature,
		Notes:        strings.TrimSpace(in.Notes),
		PhotoURL:     in.PhotoURL,
		LedgerStatus: model.LedgerStatusSkipped,
		OccurredAt:   s.now(),
	}
}

// afterCommit mirrors a committed transition, records the outcome on the
// event and announces it.
func (s *handoffService) afterCommit(ctx context.Context, result *model.HandoffResult, key *ecdsa.PrivateKey, toWallet string) {
	res := s.mirror.Submit(ctx, key, ledger.TransferBatch(
		result.Batch.ID, toWallet, result.Batch.Status.Code(), result.Event.Quantity, result.Event.Price,
	))
	logResult(s.log, "Handoff service: handoff mirrored", res, "batch_id", result.Batch.ID, "sequence", result.Event.Sequence)

	if err := s.store.Handoffs().UpdateLedger(ctx, result.Event.ID, res.Status, res.TxHash); err != nil {
		s.log.Error("Handoff service: failed to record ledger outcome", "event_id", result.Event.ID, "error", err)
	}
	result.Event.LedgerStatus = res.Status
	result.Event.LedgerTxHash = res.TxHash
	result.Ledger = res

	_ = s.cache.Delete(ctx, batchCacheKey(result.Batch.ID), traceCacheKey(result.Batch.ID))

	payload := map[string]any{
		"batch_id":   result.Batch.ID,
		"sequence":   result.Event.Sequence,
		"event_type": result.Event.EventType,
		"status":     result.Batch.Status,
		"to_user_id": result.Event.ToUserID,
		"quantity":   result.Event.Quantity,
	}
	if result.Remainder != nil {
		payload["remainder_batch_id"] = result.Remainder.ID
	}
	s.publisher.Publish(ctx, mq.EventBatchHandoff, payload)
}

// GetBatchHistory returns the events of a batch in ascending sequence order,
// starting after afterSeq. Reading the same range twice yields the same events.
func (s *handoffService) GetBatchHistory(ctx context.Context, batchID uuid.UUID, afterSeq, limit int) ([]model.HandoffEvent, error) {
	if afterSeq < 0 {
		return nil, apperrors.NewValidationError("after", "must not be negative")
	}
	if limit < 0 {
		return nil, apperrors.NewValidationError("limit", "must not be negative")
	}
	if _, err := s.store.Batches().FindByID(ctx, batchID); err != nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	return s.store.Handoffs().ListByBatch(ctx, batchID, repository.HistoryRange{After: afterSeq, Limit: limit})
}

// GetBatchTrace returns a batch with its full history and, for split
// remainders, the history of every ancestor up to the split.
func (s *handoffService) GetBatchTrace(ctx context.Context, batchID uuid.UUID) (*model.BatchTrace, error) {
	var cached model.BatchTrace
	if s.cache.GetJSON(ctx, traceCacheKey(batchID), &cached) {
		return &cached, nil
	}

	batch, err := s.store.Batches().FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	history, err := s.store.Handoffs().ListByBatch(ctx, batchID, repository.HistoryRange{})
	if err != nil {
		return nil, err
	}

	trace := &model.BatchTrace{Batch: *batch, History: history}
	current := batch
	for depth := 0; current.ParentBatchID != nil && depth < maxLineageDepth; depth++ {
		parent, err := s.store.Batches().FindByID(ctx, *current.ParentBatchID)
		if err != nil {
			return nil, fmt.Errorf("parent batch %s: %w", *current.ParentBatchID, err)
		}
		events, err := s.store.Handoffs().ListByBatch(ctx, parent.ID, repository.HistoryRange{Through: current.ParentSequence})
		if err != nil {
			return nil, err
		}
		trace.Ancestors = append(trace.Ancestors, model.TraceSegment{
			BatchID:      parent.ID,
			ProducerID:   parent.ProducerID,
			ProduceType:  parent.ProduceType,
			Variety:      parent.Variety,
			FarmLocation: parent.FarmLocation,
			HarvestedAt:  parent.HarvestedAt,
			SplitAt:      current.ParentSequence,
			History:      events,
		})
		current = parent
	}

	s.cache.SetJSON(ctx, traceCacheKey(batchID), trace, traceCacheTTL)
	return trace, nil
}

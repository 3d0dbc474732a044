package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/model"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return NewStore(gdb), mock
}

func TestUserRepository_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &model.User{Phone: "+254700000001", Name: "Wanjiku", Role: model.RoleFarmer}
	err := store.Users().Create(context.Background(), user)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicatePhone(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnError(&mysqldriver.MySQLError{
		Number:  1062,
		Message: "Duplicate entry '+254700000001' for key 'idx_users_phone'",
	})
	mock.ExpectRollback()

	err := store.Users().Create(context.Background(), &model.User{Phone: "+254700000001"})

	assert.ErrorIs(t, err, apperrors.ErrDuplicateUser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByPhone_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE phone = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone"}))

	user, err := store.Users().FindByPhone(context.Background(), "+254700000009")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_DatabaseDown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE id = \\?").
		WillReturnError(errors.New("connection refused"))

	_, err := store.Users().FindByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBatchRepository_FindByIDForUpdate(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	farmer := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "producer_id", "current_holder_id", "produce_type", "quantity", "price", "status", "harvested_at", "created_at", "updated_at",
	}).AddRow(id.String(), farmer.String(), farmer.String(), "tomato", "100.000", "2.50", "harvested", now, now, now)

	mock.ExpectQuery("SELECT \\* FROM `batches` WHERE id = \\? .*FOR UPDATE").WillReturnRows(rows)

	batch, err := store.Batches().FindByIDForUpdate(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, batch.ID)
	assert.Equal(t, farmer, batch.CurrentHolderID)
	assert.Equal(t, model.StatusHarvested, batch.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(batch.Quantity))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandoffRepository_LastSequence(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(sequence\\), 0\\) FROM `handoff_events` WHERE batch_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(3))

	seq, err := store.Handoffs().LastSequence(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, 3, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandoffRepository_ListByBatch_Ordered(t *testing.T) {
	store, mock := newMockStore(t)

	batchID := uuid.New()
	holder := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "batch_id", "sequence", "to_user_id", "event_type", "status_after", "quantity", "occurred_at"}).
		AddRow(uuid.NewString(), batchID.String(), 2, holder.String(), "transit", "in_transit", "100", now).
		AddRow(uuid.NewString(), batchID.String(), 3, holder.String(), "pickup", "at_distributor", "50", now.Add(time.Minute))

	mock.ExpectQuery("SELECT \\* FROM `handoff_events` WHERE batch_id = \\? AND sequence > \\? ORDER BY sequence ASC").
		WillReturnRows(rows)

	events, err := store.Handoffs().ListByBatch(context.Background(), batchID, HistoryRange{After: 1})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Sequence)
	assert.Equal(t, model.EventPickup, events[1].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTransaction_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx Store) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, pageLimit(0))
	assert.Equal(t, 10, pageLimit(10))
	assert.Equal(t, MaxPageSize, pageLimit(MaxPageSize+1))
}

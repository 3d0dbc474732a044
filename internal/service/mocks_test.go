package service

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"farmtrace/internal/ledger"
	"farmtrace/internal/model"
	"farmtrace/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error) {
	args := m.Called(ctx, role, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error {
	args := m.Called(ctx, id, status, txHash)
	return args.Error(0)
}

// MockBatchRepository is a mock implementation of BatchRepository.
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) Create(ctx context.Context, batch *model.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) Update(ctx context.Context, batch *model.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchRepository) List(ctx context.Context, filter model.BatchFilter) ([]model.Batch, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Batch), args.Get(1).(int64), args.Error(2)
}

func (m *MockBatchRepository) UpdateMetadataRef(ctx context.Context, id uuid.UUID, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

func (m *MockBatchRepository) UpdateLedger(ctx context.Context, id uuid.UUID, ledgerID string, status model.LedgerStatus, txHash string) error {
	args := m.Called(ctx, id, ledgerID, status, txHash)
	return args.Error(0)
}

// MockHandoffRepository is a mock implementation of HandoffRepository.
type MockHandoffRepository struct {
	mock.Mock
}

func (m *MockHandoffRepository) Create(ctx context.Context, event *model.HandoffEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockHandoffRepository) LastSequence(ctx context.Context, batchID uuid.UUID) (int, error) {
	args := m.Called(ctx, batchID)
	return args.Int(0), args.Error(1)
}

func (m *MockHandoffRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, rng repository.HistoryRange) ([]model.HandoffEvent, error) {
	args := m.Called(ctx, batchID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HandoffEvent), args.Error(1)
}

func (m *MockHandoffRepository) UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error {
	args := m.Called(ctx, id, status, txHash)
	return args.Error(0)
}

// MockStore is a mock implementation of Store. WithTransaction runs the
// callback against the same mocks unless an error is configured.
type MockStore struct {
	mock.Mock
	users    *MockUserRepository
	batches  *MockBatchRepository
	handoffs *MockHandoffRepository
}

func newMockStore() *MockStore {
	return &MockStore{
		users:    new(MockUserRepository),
		batches:  new(MockBatchRepository),
		handoffs: new(MockHandoffRepository),
	}
}

func (m *MockStore) Users() repository.UserRepository       { return m.users }
func (m *MockStore) Batches() repository.BatchRepository    { return m.batches }
func (m *MockStore) Handoffs() repository.HandoffRepository { return m.handoffs }

func (m *MockStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m)
}

// MockLedgerClient is a mock implementation of ledger.Client.
type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) SignAndSubmit(ctx context.Context, key *ecdsa.PrivateKey, call ledger.Call) (ledger.Receipt, error) {
	args := m.Called(ctx, key, call)
	return args.Get(0).(ledger.Receipt), args.Error(1)
}

func (m *MockLedgerClient) IsVerified(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, role string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, role, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, string, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uuid.UUID), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

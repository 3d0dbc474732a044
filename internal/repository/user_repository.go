package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/model"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts user. A phone or wallet collision returns ErrDuplicateUser.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil && isDuplicate(err) {
		return apperrors.ErrDuplicateUser
	}
	return wrapErr(err)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

// List returns users ordered by registration time. An empty role lists all.
func (r *userRepository) List(ctx context.Context, role model.Role, offset, limit int) ([]model.User, error) {
	q := r.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []model.User
	if err := q.Order("created_at ASC").Offset(offset).Limit(pageLimit(limit)).Find(&users).Error; err != nil {
		return nil, wrapErr(err)
	}
	return users, nil
}

// MarkVerified sets the verification flag. Verifying twice is not an error.
func (r *userRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("verified", true)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	return nil
}

func (r *userRepository) UpdateLedger(ctx context.Context, id uuid.UUID, status model.LedgerStatus, txHash string) error {
	return wrapErr(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"ledger_status": status, "ledger_tx_hash": txHash}).Error)
}

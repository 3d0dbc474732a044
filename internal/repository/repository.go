package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	apperrors "farmtrace/internal/errors"
)

const mysqlDuplicateEntry = 1062

// DefaultPageSize is applied to listings requested without a limit.
const DefaultPageSize = 50

// MaxPageSize caps listings.
const MaxPageSize = 500

// Store groups the repositories sharing one database handle.
type Store interface {
	Users() UserRepository
	Batches() BatchRepository
	Handoffs() HandoffRepository
	// WithTransaction runs fn with a Store bound to a single database transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Users() UserRepository {
	return &userRepository{db: s.db}
}

func (s *store) Batches() BatchRepository {
	return &batchRepository{db: s.db}
}

func (s *store) Handoffs() HandoffRepository {
	return &handoffRepository{db: s.db}
}

// WithTransaction executes a function within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx})
	})
}

// wrapErr maps driver errors onto the application taxonomy.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrPersistence, gorm.ErrDuplicatedKey)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

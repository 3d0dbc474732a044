//go:build integration

package service_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"farmtrace/internal/db"
	apperrors "farmtrace/internal/errors"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/repository"
	"farmtrace/internal/service"
	"farmtrace/internal/wallet"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "password",
				"MYSQL_DATABASE":      "farmtrace_test",
			},
			WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("root:password@tcp(%s:%s)/farmtrace_test?charset=utf8mb4&parseTime=True&loc=UTC", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	var (
		gormDB *gorm.DB
		err    error
	)
	require.Eventually(t, func() bool {
		gormDB, err = db.NewMySQL(dsn)
		return err == nil && db.Ping(gormDB) == nil
	}, time.Minute, time.Second)
	require.NoError(t, db.Reset(gormDB))
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

type services struct {
	users    service.UserService
	batches  service.BatchService
	handoffs service.HandoffService
}

func newServices(gormDB *gorm.DB) services {
	log := logger.Nop()
	store := repository.NewStore(gormDB)
	wallets := wallet.NewManager(wallet.KDFParams{Time: 1, MemKiB: 1024, Par: 1})
	mirror := service.NewLedgerMirror(nil, wallets, nil, log)
	return services{
		users:    service.NewUserService(store.Users(), wallets, mirror, nil, nil, log),
		batches:  service.NewBatchService(store, mirror, nil, nil, nil, log),
		handoffs: service.NewHandoffService(store, mirror, nil, nil, log),
	}
}

func register(t *testing.T, s services, phone, role string) *model.User {
	t.Helper()
	u, res, err := s.users.Register(context.Background(), service.RegisterInput{
		Phone: phone, Name: role, Role: role, Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LedgerStatusDisabled, res.Status)
	return u
}

func TestSupplyChain_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newServices(openDB(t))

	farmer := register(t, s, "+254700000101", "farmer")
	distributor := register(t, s, "+254700000102", "distributor")
	retailer := register(t, s, "+254700000103", "retailer")
	consumer := register(t, s, "+254700000104", "consumer")

	_, _, err := s.users.Register(ctx, service.RegisterInput{Phone: farmer.Phone, Name: "x", Role: "farmer", Password: "secret1"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUser)

	batch, res, err := s.batches.CreateBatch(ctx, service.CreateBatchInput{
		ProduceType: "tomato",
		Quantity:    decimal.NewFromInt(100),
		Price:       decimal.RequireFromString("2.50"),
		Password:    "secret1",
	}, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LedgerStatusDisabled, res.Status)

	// consumer cannot buy straight from the farmer
	_, err = s.handoffs.RecordHandoff(ctx, batch.ID, farmer.ID, consumer.ID, model.HandoffInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	pickup, err := s.handoffs.RecordHandoff(ctx, batch.ID, farmer.ID, distributor.ID, model.HandoffInput{
		Quantity: decimal.NewFromInt(50),
		Price:    decimal.NewFromInt(120),
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAtDistributor, pickup.Batch.Status)
	assert.Equal(t, distributor.ID, pickup.Batch.CurrentHolderID)
	assert.Equal(t, 2, pickup.Event.Sequence)
	require.NotNil(t, pickup.Remainder)
	assert.True(t, decimal.NewFromInt(50).Equal(pickup.Remainder.Quantity))

	stored, err := s.batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(stored.Quantity))

	_, err = s.handoffs.RecordHandoff(ctx, batch.ID, distributor.ID, retailer.ID, model.HandoffInput{})
	require.NoError(t, err)
	sale, err := s.handoffs.RecordHandoff(ctx, batch.ID, retailer.ID, consumer.ID, model.HandoffInput{Price: decimal.RequireFromString("4.99")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSold, sale.Batch.Status)

	_, err = s.handoffs.RecordHandoff(ctx, batch.ID, consumer.ID, retailer.ID, model.HandoffInput{})
	assert.Error(t, err)

	history, err := s.handoffs.GetBatchHistory(ctx, batch.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, e := range history {
		assert.Equal(t, i+1, e.Sequence)
	}
	tail, err := s.handoffs.GetBatchHistory(ctx, batch.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, history[2:], tail)

	trace, err := s.handoffs.GetBatchTrace(ctx, pickup.Remainder.ID)
	require.NoError(t, err)
	require.Len(t, trace.History, 1)
	assert.Equal(t, model.EventSplit, trace.History[0].EventType)
	require.Len(t, trace.Ancestors, 1)
	require.Len(t, trace.Ancestors[0].History, 1)
	assert.Equal(t, model.EventHarvest, trace.Ancestors[0].History[0].EventType)
}

func TestSupplyChain_ConcurrentHandoffsSerialize(t *testing.T) {
	ctx := context.Background()
	s := newServices(openDB(t))

	farmer := register(t, s, "+254700000201", "farmer")
	first := register(t, s, "+254700000202", "distributor")
	second := register(t, s, "+254700000203", "distributor")

	batch, _, err := s.batches.CreateBatch(ctx, service.CreateBatchInput{
		ProduceType: "kale",
		Quantity:    decimal.NewFromInt(10),
	}, farmer.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.handoffs.RecordHandoff(ctx, batch.ID, farmer.ID, to, model.HandoffInput{})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	history, err := s.handoffs.GetBatchHistory(ctx, batch.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

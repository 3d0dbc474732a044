package server

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"farmtrace/internal/auth"
	"farmtrace/internal/cache"
	"farmtrace/internal/config"
	"farmtrace/internal/db"
	"farmtrace/internal/handler"
	"farmtrace/internal/ledger"
	"farmtrace/internal/logger"
	"farmtrace/internal/mq"
	"farmtrace/internal/repository"
	"farmtrace/internal/router"
	"farmtrace/internal/service"
	"farmtrace/internal/storage"
	"farmtrace/internal/wallet"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 90 * time.Second
	idleTimeout  = 60 * time.Second
)

// Services bundles the domain services built from configuration.
type Services struct {
	Users    service.UserService
	Auth     service.AuthService
	Batches  service.BatchService
	Handoffs service.HandoffService
}

// App owns every long-lived dependency of the process.
type App struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *gorm.DB
	cache     *cache.Client
	ledger    *ledger.EthereumClient
	publisher *mq.Publisher
	jwt       *auth.JWTService
	echo      *echo.Echo

	Services Services
}

// New connects to the configured backends and builds the services. Ledger,
// object storage and messaging are optional and disabled when unconfigured.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	gormDB, err := db.NewMySQL(cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	app := &App{
		cfg:   cfg,
		log:   log,
		db:    gormDB,
		cache: cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		jwt:   auth.NewJWTService(cfg.JWT.Secret),
	}

	wallets := wallet.NewManager(wallet.KDFParams{Time: cfg.KDF.Time, MemKiB: cfg.KDF.MemKiB, Par: cfg.KDF.Par})
	client, err := app.ledgerClient(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	mirror := service.NewLedgerMirror(client, wallets, app.operatorKey(), log)
	docs := app.documents(ctx)
	app.publisher = app.eventPublisher()

	store := repository.NewStore(gormDB)
	users := service.NewUserService(store.Users(), wallets, mirror, app.publisher, app.cache, log)
	app.Services = Services{
		Users:    users,
		Auth:     service.NewAuthService(users, app.jwt, auth.NewTokenStore(app.cache)),
		Batches:  service.NewBatchService(store, mirror, docs, app.publisher, app.cache, log),
		Handoffs: service.NewHandoffService(store, mirror, app.publisher, app.cache, log),
	}
	return app, nil
}

// DB returns the database handle.
func (a *App) DB() *gorm.DB {
	return a.db
}

// ledgerClient returns nil when mirroring is not configured.
func (a *App) ledgerClient(ctx context.Context) (ledger.Client, error) {
	if !a.cfg.Ledger.Enabled() {
		a.log.Info("Ledger mirroring disabled")
		return nil, nil
	}
	client, err := ledger.Dial(ctx, a.cfg.Ledger.RPCURL, a.cfg.Ledger.ContractAddress, a.cfg.Ledger.ChainID, a.cfg.Ledger.Timeout)
	if err != nil {
		return nil, err
	}
	a.ledger = client
	a.log.Info("Ledger mirroring enabled", "rpc_url", a.cfg.Ledger.RPCURL, "contract", a.cfg.Ledger.ContractAddress)
	return client, nil
}

func (a *App) operatorKey() *ecdsa.PrivateKey {
	if a.cfg.Ledger.OperatorKey == "" {
		return nil
	}
	key, err := wallet.ParsePrivateKey(a.cfg.Ledger.OperatorKey)
	if err != nil {
		a.log.Warn("Ignoring invalid ledger operator key", "error", err)
		return nil
	}
	a.log.Info("Ledger operator configured", "address", wallet.AddressOf(key))
	return key
}

// documents returns nil when object storage is unavailable.
func (a *App) documents(ctx context.Context) *storage.Documents {
	if a.cfg.Storage.Endpoint == "" {
		a.log.Info("Metadata documents disabled")
		return nil
	}
	client, err := storage.NewMinioClient(a.cfg.Storage)
	if err != nil {
		a.log.Warn("Metadata documents disabled", "error", err)
		return nil
	}
	if err := client.EnsureBucket(ctx); err != nil {
		a.log.Warn("Metadata documents disabled", "bucket", a.cfg.Storage.Bucket, "error", err)
		return nil
	}
	return storage.NewDocuments(client)
}

// eventPublisher returns a publisher that drops events when RabbitMQ is unavailable.
func (a *App) eventPublisher() *mq.Publisher {
	if a.cfg.RabbitMQ.URL == "" {
		a.log.Info("Event publishing disabled")
		return mq.NewPublisher(nil, "", a.log)
	}
	client, err := mq.NewRabbitMQClient(a.cfg.RabbitMQ)
	if err != nil {
		a.log.Warn("Event publishing disabled", "error", err)
		return mq.NewPublisher(nil, "", a.log)
	}
	return mq.NewPublisher(client, a.cfg.RabbitMQ.Queue, a.log)
}

// Migrate creates or updates the schema.
func (a *App) Migrate() error {
	return db.Migrate(a.db)
}

// Handler builds the HTTP API.
func (a *App) Handler() *echo.Echo {
	if a.echo != nil {
		return a.echo
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, a.cfg, a.log, a.jwt, a.Services.Auth, router.Handlers{
		Auth:    handler.NewAuthHandler(a.Services.Users, a.Services.Auth),
		User:    handler.NewUserHandler(a.Services.Users),
		Admin:   handler.NewAdminHandler(a.Services.Users),
		Batch:   handler.NewBatchHandler(a.Services.Batches),
		Handoff: handler.NewHandoffHandler(a.Services.Handoffs),
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"mysql": func(context.Context) error { return db.Ping(a.db) },
			"redis": a.cache.Ping,
		}),
	})
	a.echo = e
	return e
}

// Start serves HTTP until Shutdown is called.
func (a *App) Start() error {
	e := a.Handler()
	e.Server.ReadTimeout = readTimeout
	e.Server.WriteTimeout = writeTimeout
	e.Server.IdleTimeout = idleTimeout

	addr := ":" + a.cfg.Server.Port
	a.log.Info("HTTP server listening", "addr", addr, "swagger", swaggerURL(a.cfg.Server))
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server start: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	if a.echo == nil {
		return nil
	}
	return a.echo.Shutdown(ctx)
}

// Close releases backend connections.
func (a *App) Close() {
	if a.ledger != nil {
		a.ledger.Close()
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("Failed to close event publisher", "error", err)
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("Failed to close cache", "error", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func swaggerURL(cfg config.Server) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.Port
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"errors"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aa-wallet.backend/internal/config"
	"aa-wallet.backend/internal/infrastructure/jobs"
	"aa-wallet.backend/internal/infrastructure/models"
	"aa-wallet.backend/internal/infrastructure/repositories"
	"aa-wallet.backend/internal/interfaces/http/handlers"
	"aa-wallet.backend/internal/interfaces/http/middleware"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/jwt"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/redis"
)

const (
	nonceCacheTTL        = 10 * time.Minute
	idempotencyLock      = 30 * time.Second
	idempotencyRetention = 24 * time.Hour
	shutdownTimeout      = 10 * time.Second
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		gormCfg := &gorm.Config{
			PrepareStmt: false,
			Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
		}
		if cfg.IsSQLite() {
			return gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
		}
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL(),
			PreferSimpleProtocol: true,
		}), gormCfg)
	}
	migrate   = func(db *gorm.DB) error { return db.AutoMigrate(models.All()...) }
	runServer = serveHTTP
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

// serveHTTP serves r until ctx is done, then drains in-flight requests.
func serveHTTP(ctx context.Context, r *gin.Engine, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis is optional: without it there is no idempotency replay and no nonce cache
	if cfg.Redis.URL != "" {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
			logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()
		logger.Info(context.Background(), "Redis initialized")
	} else {
		logger.Warn(context.Background(), "REDIS_URL not set, idempotency and nonce cache disabled")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.IsSQLite() {
		// sqlite allows one writer; the sequencer already serializes ledger writes
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database not available: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	logger.Info(context.Background(), "Connected to ledger database", zap.String("driver", cfg.Database.Driver))

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry)

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	limitRepo := repositories.NewSpendingLimitRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	paymasterRepo := repositories.NewPaymasterRepository(db)
	eventRepo := repositories.NewLedgerEventRepository(db)
	receiptRepo := repositories.NewReceiptRepository(db)
	sequencer := usecases.NewSequencer(repositories.NewUnitOfWork(db))

	// Initialize usecases
	paymasterUsecase := usecases.NewPaymasterUsecase(paymasterRepo, cfg.Ledger.FeeCollector)
	ledgerUsecase := usecases.NewLedgerUsecase(accountRepo, limitRepo, tokenRepo, eventRepo, receiptRepo, sequencer, paymasterUsecase,
		usecases.LedgerConfig{
			ChainID:      big.NewInt(cfg.Ledger.ChainID),
			FeeCollector: cfg.Ledger.FeeCollector,
			GasPrice:     cfg.Ledger.GasPrice,
		})
	accountUsecase := usecases.NewAccountUsecase(accountRepo, limitRepo, tokenRepo, paymasterRepo, eventRepo, sequencer,
		usecases.AccountConfig{
			FactoryAddress: cfg.Ledger.FactoryAddress,
			LimitWindow:    cfg.Ledger.LimitWindow,
		})

	var responseStore middleware.ResponseStore
	if redis.Enabled() {
		ledgerUsecase.SetNonceCache(redis.NewNonceCache("nonce", nonceCacheTTL))
		responseStore = redis.NewResponseStore("idempotency", idempotencyLock, idempotencyRetention)
	}

	if cfg.Operator.PasswordHash == "" {
		logger.Warn(context.Background(), "OPERATOR_PASSWORD_HASH not set, operator login disabled")
	}

	// Initialize handlers
	d := routeDeps{
		transactionHandler: handlers.NewTransactionHandler(ledgerUsecase),
		accountHandler:     handlers.NewAccountHandler(accountUsecase),
		paymasterHandler:   handlers.NewPaymasterHandler(paymasterUsecase),
		adminHandler: handlers.NewAdminHandler(accountUsecase, jwtService, handlers.OperatorCredentials{
			Username:     cfg.Operator.Username,
			PasswordHash: cfg.Operator.PasswordHash,
		}),
		rpcHandler:   handlers.NewRPCHandler(ledgerUsecase),
		operatorAuth: middleware.OperatorAuthMiddleware(jwtService),
		idempotency:  middleware.IdempotencyMiddleware(responseStore),
	}

	// SIGINT/SIGTERM stop the jobs and the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := jobs.NewPaymasterBalanceMonitor(paymasterRepo, accountRepo, cfg.Paymaster.LowBalance, cfg.Paymaster.Interval)
	go monitor.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerRPCRoute(r, d)
	registerAPIV1Routes(r, d)

	for _, route := range r.Routes() {
		logger.Debug(context.Background(), "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	logger.Info(context.Background(), "AA wallet ledger starting",
		zap.String("port", cfg.Server.Port),
		zap.Int64("chainId", cfg.Ledger.ChainID),
		zap.String("rpc", "http://localhost:"+cfg.Server.Port+"/rpc"))

	err = runServer(ctx, r, cfg.Server.Port)
	monitor.Stop()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

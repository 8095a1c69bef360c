package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aa-wallet.backend/internal/domain/auth"
	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/internal/infrastructure/models"
	infra "aa-wallet.backend/internal/infrastructure/repositories"
	"aa-wallet.backend/internal/interfaces/http/middleware"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/jwt"
	"aa-wallet.backend/pkg/txcodec"
)

const stackChainID = 270

var (
	stackCollector = common.HexToAddress("0x00000000000000000000000000000000000fee00")
	stackFactory   = common.HexToAddress("0x0000000000000000000000000000000000008006")
	stackRecipient = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testStack is the HTTP surface over a private sqlite ledger.
type testStack struct {
	t          *testing.T
	router     *gin.Engine
	ledger     *usecases.LedgerUsecase
	accounts   *usecases.AccountUsecase
	paymasters *usecases.PaymasterUsecase
	jwt        *jwt.JWTService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	accountRepo := infra.NewAccountRepository(db)
	limitRepo := infra.NewSpendingLimitRepository(db)
	tokenRepo := infra.NewTokenRepository(db)
	paymasterRepo := infra.NewPaymasterRepository(db)
	eventRepo := infra.NewLedgerEventRepository(db)
	receiptRepo := infra.NewReceiptRepository(db)
	seq := usecases.NewSequencer(infra.NewUnitOfWork(db))

	s := &testStack{t: t, jwt: jwt.NewJWTService("test-secret", time.Hour)}
	s.paymasters = usecases.NewPaymasterUsecase(paymasterRepo, stackCollector)
	s.ledger = usecases.NewLedgerUsecase(accountRepo, limitRepo, tokenRepo, eventRepo, receiptRepo, seq, s.paymasters,
		usecases.LedgerConfig{ChainID: big.NewInt(stackChainID), FeeCollector: stackCollector, GasPrice: big.NewInt(1)})
	s.accounts = usecases.NewAccountUsecase(accountRepo, limitRepo, tokenRepo, paymasterRepo, eventRepo, seq,
		usecases.AccountConfig{FactoryAddress: stackFactory, LimitWindow: entities.DefaultLimitWindow})

	hash, err := crypto.HashPassword("hunter2")
	require.NoError(t, err)

	txH := NewTransactionHandler(s.ledger)
	accH := NewAccountHandler(s.accounts)
	pmH := NewPaymasterHandler(s.paymasters)
	adminH := NewAdminHandler(s.accounts, s.jwt, OperatorCredentials{Username: "ops", PasswordHash: hash})
	rpcH := NewRPCHandler(s.ledger)

	r := gin.New()
	r.POST("/rpc", rpcH.Serve)
	v1 := r.Group("/api/v1")
	v1.POST("/transactions", txH.Submit)
	v1.GET("/transactions/:hash", txH.GetTransaction)
	v1.GET("/accounts/:address", accH.GetAccount)
	v1.GET("/accounts/:address/limits", accH.ListLimits)
	v1.GET("/accounts/:address/limits/:token", accH.GetLimit)
	v1.GET("/accounts/:address/events", accH.ListEvents)
	v1.GET("/tokens", accH.ListTokens)
	v1.GET("/tokens/:token/allowance", accH.GetAllowance)
	v1.GET("/paymasters", pmH.ListPaymasters)
	v1.GET("/paymasters/:address", pmH.GetPaymaster)
	v1.GET("/paymasters/:address/quote", pmH.Quote)
	v1.POST("/admin/login", adminH.Login)
	admin := v1.Group("/admin", middleware.OperatorAuthMiddleware(s.jwt))
	admin.POST("/accounts", adminH.DeployAccount)
	admin.POST("/accounts/:address/fund", adminH.Fund)
	admin.POST("/tokens", adminH.RegisterToken)
	admin.POST("/tokens/:token/mint", adminH.MintToken)
	admin.POST("/paymasters", adminH.RegisterPaymaster)
	admin.PUT("/paymasters/:address/active", pmH.SetActive)
	s.router = r
	return s
}

func (s *testStack) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testStack) operatorToken() string {
	s.t.Helper()
	tok, err := s.jwt.Issue("ops")
	require.NoError(s.t, err)
	return tok.Token
}

func (s *testStack) wallet(owner *crypto.Signer, funds int64) common.Address {
	s.t.Helper()
	acc, err := s.accounts.DeployAccount(context.Background(), &entities.DeployAccountInput{Owners: []string{owner.Address().Hex()}})
	require.NoError(s.t, err)
	if funds > 0 {
		_, err = s.accounts.Fund(context.Background(), acc.Address, &entities.FundInput{Amount: fmt.Sprint(funds)})
		require.NoError(s.t, err)
	}
	return acc.Address
}

func newOwner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.GenerateSigner()
	require.NoError(t, err)
	return s
}

// signedTransfer is a self-paid value transfer with fee 100.
func (s *testStack) signedTransfer(owner *crypto.Signer, from common.Address, nonce uint64, value int64) []byte {
	s.t.Helper()
	tx := &entities.Transaction{
		ChainID:  big.NewInt(stackChainID),
		From:     from,
		To:       stackRecipient,
		Value:    big.NewInt(value),
		Nonce:    new(big.Int).SetUint64(nonce),
		GasLimit: big.NewInt(100),
		GasPrice: big.NewInt(1),
		Extension: entities.Extension{
			GasPerPubdata: big.NewInt(entities.DefaultGasPerPubdata),
		},
	}
	digest, err := txcodec.Digest(tx)
	require.NoError(s.t, err)
	sig, err := owner.Sign(digest)
	require.NoError(s.t, err)
	raw, err := txcodec.Serialize(tx.WithSignature(auth.JoinSignatures(sig)))
	require.NoError(s.t, err)
	return raw
}

func hexRaw(raw []byte) string {
	return hexutil.Encode(raw)
}

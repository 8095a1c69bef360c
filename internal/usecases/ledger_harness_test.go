package usecases_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aa-wallet.backend/internal/domain/auth"
	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/internal/infrastructure/models"
	infra "aa-wallet.backend/internal/infrastructure/repositories"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/txcodec"
	"aa-wallet.backend/pkg/utils"
)

const testChainID = 270

var (
	feeCollector = common.HexToAddress("0x00000000000000000000000000000000000fee00")
	factory      = common.HexToAddress("0x0000000000000000000000000000000000008006")
	recipient    = common.HexToAddress("0x000000000000000000000000000000000000b0b0")
	utilsAll     = utils.PaginationParams{Page: 1}
)

// ledgerHarness wires the usecases over a private in-memory sqlite ledger.
type ledgerHarness struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	ledger     *usecases.LedgerUsecase
	accounts   *usecases.AccountUsecase
	paymasters *usecases.PaymasterUsecase
	events     *infra.LedgerEventRepository
	tokens     *infra.TokenRepository
	now        time.Time

	// signer owns the wallet built by sponsoredSetup
	signer *crypto.Signer
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
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

	paymasters := usecases.NewPaymasterUsecase(paymasterRepo, feeCollector)
	h := &ledgerHarness{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		paymasters: paymasters,
		events:     eventRepo,
		tokens:     tokenRepo,
		now:        time.Unix(1_700_000_000, 0),
	}
	h.ledger = usecases.NewLedgerUsecase(accountRepo, limitRepo, tokenRepo, eventRepo, receiptRepo, seq, paymasters,
		usecases.LedgerConfig{ChainID: big.NewInt(testChainID), FeeCollector: feeCollector, GasPrice: big.NewInt(1)})
	h.ledger.SetClock(func() time.Time { return h.now })
	h.accounts = usecases.NewAccountUsecase(accountRepo, limitRepo, tokenRepo, paymasterRepo, eventRepo, seq,
		usecases.AccountConfig{FactoryAddress: factory, LimitWindow: entities.DefaultLimitWindow})
	return h
}

func (h *ledgerHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func newSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.GenerateSigner()
	require.NoError(t, err)
	return s
}

func (h *ledgerHarness) deployWallet(quorum int, owners ...*crypto.Signer) *entities.Account {
	h.t.Helper()
	in := &entities.DeployAccountInput{Quorum: quorum}
	for _, o := range owners {
		in.Owners = append(in.Owners, o.Address().Hex())
	}
	acc, err := h.accounts.DeployAccount(h.ctx, in)
	require.NoError(h.t, err)
	return acc
}

func (h *ledgerHarness) fund(addr common.Address, amount int64) {
	h.t.Helper()
	_, err := h.accounts.Fund(h.ctx, addr, &entities.FundInput{Amount: fmt.Sprint(amount)})
	require.NoError(h.t, err)
}

func (h *ledgerHarness) balance(addr common.Address) int64 {
	h.t.Helper()
	b, err := h.ledger.GetBalance(h.ctx, addr)
	require.NoError(h.t, err)
	return b.Int64()
}

func (h *ledgerHarness) nonce(addr common.Address) uint64 {
	h.t.Helper()
	n, err := h.ledger.GetNonce(h.ctx, addr)
	require.NoError(h.t, err)
	return n
}

func (h *ledgerHarness) tokenBalance(token, holder common.Address) int64 {
	h.t.Helper()
	b, err := h.tokens.GetBalance(h.ctx, token, holder)
	require.NoError(h.t, err)
	return b.Int64()
}

func (h *ledgerHarness) registerToken(symbol string) *entities.Token {
	h.t.Helper()
	tok, err := h.accounts.RegisterToken(h.ctx, &entities.RegisterTokenInput{
		Name: symbol + " token", Symbol: symbol, Decimals: 18, Mintable: true,
	})
	require.NoError(h.t, err)
	return tok
}

func (h *ledgerHarness) mint(token, holder common.Address, amount int64) {
	h.t.Helper()
	_, err := h.accounts.MintToken(h.ctx, token, holder, &entities.FundInput{Amount: fmt.Sprint(amount)})
	require.NoError(h.t, err)
}

// baseTx is a self-paid transaction from wallet at its current nonce with fee 100.
func (h *ledgerHarness) baseTx(wallet common.Address, to common.Address) *entities.Transaction {
	return &entities.Transaction{
		ChainID:  big.NewInt(testChainID),
		From:     wallet,
		To:       to,
		Value:    new(big.Int),
		Nonce:    new(big.Int).SetUint64(h.nonce(wallet)),
		GasLimit: big.NewInt(100),
		GasPrice: big.NewInt(1),
		Extension: entities.Extension{
			GasPerPubdata: big.NewInt(entities.DefaultGasPerPubdata),
		},
	}
}

func (h *ledgerHarness) sign(tx *entities.Transaction, signers ...*crypto.Signer) []byte {
	h.t.Helper()
	digest, err := txcodec.Digest(tx)
	require.NoError(h.t, err)
	sigs := make([][]byte, 0, len(signers))
	for _, s := range signers {
		sig, err := s.Sign(digest)
		require.NoError(h.t, err)
		sigs = append(sigs, sig)
	}
	raw, err := txcodec.Serialize(tx.WithSignature(auth.JoinSignatures(sigs...)))
	require.NoError(h.t, err)
	return raw
}

func (h *ledgerHarness) submit(tx *entities.Transaction, signers ...*crypto.Signer) (*usecases.ProcessResult, error) {
	h.t.Helper()
	return h.ledger.ProcessTransaction(h.ctx, h.sign(tx, signers...))
}

func (h *ledgerHarness) mustSubmit(tx *entities.Transaction, signers ...*crypto.Signer) *entities.Receipt {
	h.t.Helper()
	res, err := h.submit(tx, signers...)
	require.NoError(h.t, err)
	return res.Receipt
}

func (h *ledgerHarness) walletCall(wallet common.Address, method string, args ...interface{}) *entities.Transaction {
	h.t.Helper()
	data, err := usecases.EncodeWalletCall(method, args...)
	require.NoError(h.t, err)
	tx := h.baseTx(wallet, wallet)
	tx.Data = data
	return tx
}

func (h *ledgerHarness) tokenCall(wallet, token common.Address, method string, args ...interface{}) *entities.Transaction {
	h.t.Helper()
	data, err := usecases.EncodeERC20Call(method, args...)
	require.NoError(h.t, err)
	tx := h.baseTx(wallet, token)
	tx.Data = data
	return tx
}

func (h *ledgerHarness) eventTypes(account common.Address) []entities.LedgerEventType {
	h.t.Helper()
	evs, _, err := h.accounts.ListEvents(h.ctx, account, utilsAll)
	require.NoError(h.t, err)
	out := make([]entities.LedgerEventType, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		out = append(out, evs[i].Type)
	}
	return out
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/auth"
	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/domain/repositories"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/metrics"
	"aa-wallet.backend/pkg/txcodec"
)

// Intrinsic gas schedule used by EstimateGas.
const (
	txBaseGas         = 21000
	txDataZeroGas     = 4
	txDataNonZeroGas  = 16
	builtinCallGas    = 25000
	paymasterCheckGas = 30000
)

// DefaultLedgerChain is the chain id used when none is configured.
const DefaultLedgerChain = 270

// LedgerConfig holds the ledger-wide parameters
type LedgerConfig struct {
	ChainID      *big.Int
	FeeCollector common.Address
	GasPrice     *big.Int
}

// NonceCache mirrors committed nonces for fast reads. Implementations may drop entries.
type NonceCache interface {
	GetNonce(ctx context.Context, address common.Address) (uint64, bool, error)
	SetNonce(ctx context.Context, address common.Address, nonce uint64) error
}

// ProcessResult is the outcome of an admitted transaction.
type ProcessResult struct {
	TxHash  common.Hash       `json:"txHash"`
	Receipt *entities.Receipt `json:"receipt"`
}

// LedgerUsecase admits typed transactions into the serialized ledger.
type LedgerUsecase struct {
	accountRepo repositories.AccountRepository
	limitRepo   repositories.SpendingLimitRepository
	tokenRepo   repositories.TokenRepository
	eventRepo   repositories.LedgerEventRepository
	receiptRepo repositories.ReceiptRepository
	seq         *Sequencer
	paymasterUC *PaymasterUsecase
	nonceCache  NonceCache
	cfg         LedgerConfig
	now         func() time.Time
}

// NewLedgerUsecase creates a new ledger usecase
func NewLedgerUsecase(
	accountRepo repositories.AccountRepository,
	limitRepo repositories.SpendingLimitRepository,
	tokenRepo repositories.TokenRepository,
	eventRepo repositories.LedgerEventRepository,
	receiptRepo repositories.ReceiptRepository,
	seq *Sequencer,
	paymasterUC *PaymasterUsecase,
	cfg LedgerConfig,
) *LedgerUsecase {
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(DefaultLedgerChain)
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = big.NewInt(1)
	}
	return &LedgerUsecase{
		accountRepo: accountRepo,
		limitRepo:   limitRepo,
		tokenRepo:   tokenRepo,
		eventRepo:   eventRepo,
		receiptRepo: receiptRepo,
		seq:         seq,
		paymasterUC: paymasterUC,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetClock replaces the clock used for spending-limit windows.
func (u *LedgerUsecase) SetClock(now func() time.Time) {
	u.now = now
}

// SetNonceCache enables the committed-nonce mirror.
func (u *LedgerUsecase) SetNonceCache(c NonceCache) {
	u.nonceCache = c
}

// ChainID returns the ledger chain id
func (u *LedgerUsecase) ChainID() *big.Int {
	return new(big.Int).Set(u.cfg.ChainID)
}

// GasPrice returns the fixed ledger gas price
func (u *LedgerUsecase) GasPrice() *big.Int {
	return new(big.Int).Set(u.cfg.GasPrice)
}

// ProcessTransaction validates and applies one serialized transaction.
// Rejections return an error and leave the ledger untouched; a reverted call
// is admitted with a REVERTED receipt.
func (u *LedgerUsecase) ProcessTransaction(ctx context.Context, raw []byte) (*ProcessResult, error) {
	started := time.Now()

	tx, err := txcodec.Deserialize(raw)
	if err != nil {
		u.reject(ctx, nil, common.Hash{}, err, started)
		return nil, err
	}
	txHash := txcodec.Hash(raw)
	if tx.ChainID.Cmp(u.cfg.ChainID) != 0 {
		err := fmt.Errorf("%w: got %s, ledger is %s", domainerrors.ErrWrongChain, tx.ChainID, u.cfg.ChainID)
		u.reject(ctx, tx, txHash, err, started)
		return nil, err
	}

	var (
		receipt   *entities.Receipt
		rejection *entities.LedgerEvent
	)
	err = u.seq.Run(ctx, func(txCtx context.Context) error {
		var applyErr error
		receipt, rejection, applyErr = u.apply(txCtx, tx, txHash)
		return applyErr
	}, func() {
		u.cacheNonce(ctx, tx.From, receipt.Nonce+1)
	})
	if err != nil {
		if rejection != nil {
			u.recordRejection(ctx, rejection)
		}
		u.reject(ctx, tx, txHash, err, started)
		return nil, err
	}

	metrics.ObserveTransaction(string(receipt.Status), time.Since(started))
	fields := []zap.Field{
		zap.String("tx_hash", txHash.Hex()),
		zap.String("from", tx.From.Hex()),
		zap.String("to", tx.To.Hex()),
		zap.Uint64("nonce", receipt.Nonce),
		zap.String("fee", receipt.Fee),
		zap.String("status", string(receipt.Status)),
	}
	if receipt.Status == entities.ReceiptStatusReverted {
		logger.Warn(ctx, "Transaction reverted", append(fields, zap.String("reason", receipt.RevertReason.String))...)
	} else {
		logger.Info(ctx, "Transaction admitted", fields...)
	}

	return &ProcessResult{TxHash: txHash, Receipt: receipt}, nil
}

// apply runs every check and stages every effect of tx, then commits.
// A non-nil event alongside an error is recorded after the rollback.
func (u *LedgerUsecase) apply(ctx context.Context, tx *entities.Transaction, txHash common.Hash) (*entities.Receipt, *entities.LedgerEvent, error) {
	now := u.now()
	cs := newChangeset(ctx, &ledgerStore{accounts: u.accountRepo, limits: u.limitRepo, tokens: u.tokenRepo})

	// Unknown senders are fresh EOAs; the entry is only written on commit.
	sender, err := cs.accountOrNew(tx.From)
	if err != nil {
		return nil, nil, err
	}
	if !sender.CanSend() {
		return nil, nil, fmt.Errorf("%w: %s is %s", domainerrors.ErrNotWallet, tx.From.Hex(), sender.Kind)
	}
	if !tx.Nonce.IsUint64() || tx.Nonce.Uint64() != sender.Nonce {
		return nil, nil, fmt.Errorf("%w: expected %d, got %s", domainerrors.ErrInvalidNonce, sender.Nonce, tx.Nonce)
	}

	if err := u.authorize(tx, sender); err != nil {
		return nil, nil, err
	}

	// Limit debits live with the call effects: a revert drops both.
	child := cs.fork()
	if ev, err := u.chargeLimits(child, tx, txHash, sender, now); err != nil {
		return nil, ev, err
	}

	fee := tx.Fee()
	receipt := &entities.Receipt{
		TxHash: txHash,
		From:   tx.From,
		To:     tx.To,
		Nonce:  sender.Nonce,
		Status: entities.ReceiptStatusSuccess,
		Fee:    fee.String(),
	}

	if tx.HasPaymaster() {
		pm := *tx.Extension.Paymaster
		outcome, err := u.paymasterUC.Sponsor(cs, pm, sender.Address, tx.Extension.PaymasterInput, fee)
		if err != nil {
			metrics.ObserveSponsorship(pm.Hex(), string(domainerrors.KindOf(err)))
			return nil, &entities.LedgerEvent{
				TxHash:  txHash,
				Account: sender.Address,
				Type:    entities.LedgerEventSponsorshipFailed,
				Detail:  null.StringFrom(fmt.Sprintf("%s: %v", domainerrors.KindOf(err), err)),
			}, err
		}
		metrics.ObserveSponsorship(pm.Hex(), "SUCCESS")
		cs.emit(&entities.LedgerEvent{
			TxHash:  txHash,
			Account: sender.Address,
			Type:    entities.LedgerEventSponsorshipSucceeded,
			Token:   null.StringFrom(outcome.Token.Hex()),
			Amount:  null.StringFrom(outcome.TokenAmount.String()),
			Detail:  null.StringFrom("paymaster " + pm.Hex()),
		})
		receipt.Paymaster = null.StringFrom(pm.Hex())
	} else if err := cs.transferNative(sender.Address, u.cfg.FeeCollector, fee); err != nil {
		return nil, nil, err
	}

	sender.Nonce++

	cc := &callContext{cs: child, tx: tx, txHash: txHash, sender: sender, now: now}
	if err := u.executeCall(cc); err != nil {
		if !errors.Is(err, domainerrors.ErrCallReverted) {
			return nil, nil, err
		}
		receipt.Status = entities.ReceiptStatusReverted
		receipt.RevertReason = null.StringFrom(revertReason(err))
	} else {
		child.merge()
	}

	if err := cs.commit(); err != nil {
		return nil, nil, err
	}
	if err := u.receiptRepo.Create(ctx, receipt); err != nil {
		return nil, nil, err
	}
	for _, ev := range cs.events {
		if err := u.eventRepo.Create(ctx, ev); err != nil {
			return nil, nil, err
		}
		logEvent(ctx, ev)
	}
	return receipt, nil, nil
}

func (u *LedgerUsecase) authorize(tx *entities.Transaction, sender *entities.Account) error {
	digest, err := txcodec.Digest(tx)
	if err != nil {
		return err
	}
	policy, err := auth.ForAccount(sender)
	if err != nil {
		return err
	}
	signatures, err := auth.SplitSignatures(tx.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrUnauthorized, err)
	}
	if !policy.Validate(digest, signatures) {
		return fmt.Errorf("%w: signature does not satisfy %s policy of %s", domainerrors.ErrUnauthorized, sender.Kind, sender.Address.Hex())
	}
	return nil
}

// chargeLimits debits the planned native and token outflows of tx on cs.
// It reads only spending limits, so cs may be forked ahead of the fee.
func (u *LedgerUsecase) chargeLimits(
	cs *changeset, tx *entities.Transaction, txHash common.Hash, sender *entities.Account, now time.Time,
) (*entities.LedgerEvent, error) {
	type debit struct {
		token  common.Address
		amount *big.Int
	}
	var debits []debit

	if value := tx.ValueOrZero(); value.Sign() > 0 {
		debits = append(debits, debit{token: entities.NativeTokenAddress, amount: value})
	}
	if amount, ok := plannedTokenDebit(tx.Data, tx.From); ok && tx.To != tx.From {
		_, err := u.tokenRepo.GetByAddress(cs.ctx, tx.To)
		switch {
		case err == nil:
			debits = append(debits, debit{token: tx.To, amount: amount})
		case !errors.Is(err, domainerrors.ErrNotFound):
			return nil, err
		}
	}

	for _, d := range debits {
		limit, err := cs.limit(sender.Address, d.token)
		if err != nil {
			return nil, err
		}
		if err := limit.CheckAndUpdate(d.amount, now, sender.Window()); err != nil {
			if !errors.Is(err, domainerrors.ErrLimitExceeded) {
				return nil, err
			}
			return &entities.LedgerEvent{
				TxHash:  txHash,
				Account: sender.Address,
				Type:    entities.LedgerEventLimitExceeded,
				Token:   null.StringFrom(d.token.Hex()),
				Amount:  null.StringFrom(d.amount.String()),
				Detail:  null.StringFrom("available " + limit.Available.String()),
			}, err
		}
	}
	return nil, nil
}

func (u *LedgerUsecase) cacheNonce(ctx context.Context, address common.Address, nonce uint64) {
	if u.nonceCache == nil {
		return
	}
	if err := u.nonceCache.SetNonce(ctx, address, nonce); err != nil {
		logger.Warn(ctx, "Nonce cache update failed", zap.String("account", address.Hex()), zap.Error(err))
	}
}

func (u *LedgerUsecase) recordRejection(ctx context.Context, ev *entities.LedgerEvent) {
	if err := u.eventRepo.Create(ctx, ev); err != nil {
		logger.Error(ctx, "Failed to record ledger event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	logEvent(ctx, ev)
}

func (u *LedgerUsecase) reject(ctx context.Context, tx *entities.Transaction, txHash common.Hash, err error, started time.Time) {
	kind := domainerrors.KindOf(err)
	metrics.ObserveTransaction(string(kind), time.Since(started))
	fields := []zap.Field{zap.String("kind", string(kind)), zap.Error(err)}
	if tx != nil {
		fields = append(fields,
			zap.String("tx_hash", txHash.Hex()),
			zap.String("from", tx.From.Hex()),
			zap.String("nonce", tx.Nonce.String()),
		)
	}
	if kind == domainerrors.KindInternal {
		logger.Error(ctx, "Transaction processing failed", fields...)
		return
	}
	logger.Warn(ctx, "Transaction rejected", fields...)
}

func logEvent(ctx context.Context, ev *entities.LedgerEvent) {
	switch ev.Type {
	case entities.LedgerEventLimitSet, entities.LedgerEventLimitRemoved,
		entities.LedgerEventLimitEnabled, entities.LedgerEventLimitExceeded:
		metrics.ObserveLimitEvent(string(ev.Type))
	}
	logger.Info(ctx, "Ledger event",
		zap.String("type", string(ev.Type)),
		zap.String("account", ev.Account.Hex()),
		zap.String("tx_hash", ev.TxHash.Hex()),
		zap.String("token", ev.Token.String),
		zap.String("amount", ev.Amount.String),
	)
}

// GetReceipt returns the receipt of an admitted transaction
func (u *LedgerUsecase) GetReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error) {
	return u.receiptRepo.GetByHash(ctx, hash)
}

// ListTransactionEvents returns the events a transaction produced, oldest first.
func (u *LedgerUsecase) ListTransactionEvents(ctx context.Context, hash common.Hash) ([]*entities.LedgerEvent, error) {
	return u.eventRepo.ListByTxHash(ctx, hash)
}

// GetNonce returns the next nonce of address; unknown addresses have nonce 0.
func (u *LedgerUsecase) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	if u.nonceCache != nil {
		if nonce, ok, err := u.nonceCache.GetNonce(ctx, address); err == nil && ok {
			return nonce, nil
		}
	}
	acc, err := u.accountRepo.GetByAddress(ctx, address)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// GetBalance returns the native balance of address
func (u *LedgerUsecase) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	acc, err := u.accountRepo.GetByAddress(ctx, address)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// CallRequest is the subset of an eth_estimateGas call object the ledger reads.
type CallRequest struct {
	From      common.Address
	To        *common.Address
	Data      []byte
	Paymaster bool
}

// EstimateGas returns the gas the ledger charges for call. Built-in executors
// have a flat cost on top of the intrinsic calldata cost.
func (u *LedgerUsecase) EstimateGas(ctx context.Context, call CallRequest) (uint64, error) {
	gas := uint64(txBaseGas)
	for _, b := range call.Data {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	if call.To != nil && len(call.Data) > 0 {
		if *call.To == call.From {
			gas += builtinCallGas
		} else if _, err := u.tokenRepo.GetByAddress(ctx, *call.To); err == nil {
			gas += builtinCallGas
		} else if !errors.Is(err, domainerrors.ErrNotFound) {
			return 0, err
		}
	}
	if call.Paymaster {
		gas += paymasterCheckGas
	}
	return gas, nil
}

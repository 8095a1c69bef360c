package jobs

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/metrics"
)

type paymasterLister interface {
	List(ctx context.Context) ([]*entities.Paymaster, error)
}

type balanceReader interface {
	GetByAddress(ctx context.Context, address common.Address) (*entities.Account, error)
}

var publishBalance = metrics.SetPaymasterBalance

// PaymasterBalanceMonitor publishes paymaster native balances and warns
// when an active paymaster drops below the configured threshold.
type PaymasterBalanceMonitor struct {
	paymasters paymasterLister
	accounts   balanceReader
	lowBalance *big.Int
	interval   time.Duration
	stop       chan struct{}
}

func NewPaymasterBalanceMonitor(paymasters paymasterLister, accounts balanceReader, lowBalance *big.Int, interval time.Duration) *PaymasterBalanceMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if lowBalance == nil {
		lowBalance = new(big.Int)
	}
	return &PaymasterBalanceMonitor{
		paymasters: paymasters,
		accounts:   accounts,
		lowBalance: lowBalance,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

func (j *PaymasterBalanceMonitor) Start(ctx context.Context) {
	logger.Info(ctx, "Starting paymaster balance monitor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.checkBalances(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Paymaster balance monitor stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Paymaster balance monitor stopped")
			return
		case <-ticker.C:
			j.checkBalances(ctx)
		}
	}
}

func (j *PaymasterBalanceMonitor) Stop() {
	close(j.stop)
}

// checkBalances returns how many active paymasters are below the threshold.
func (j *PaymasterBalanceMonitor) checkBalances(ctx context.Context) int {
	list, err := j.paymasters.List(ctx)
	if err != nil {
		logger.Error(ctx, "Error listing paymasters", zap.Error(err))
		return 0
	}

	low := 0
	for _, pm := range list {
		acc, err := j.accounts.GetByAddress(ctx, pm.Address)
		if err != nil {
			logger.Warn(ctx, "Error reading paymaster balance", zap.String("paymaster", pm.Address.Hex()), zap.Error(err))
			continue
		}
		balance := acc.Balance
		if balance == nil {
			balance = new(big.Int)
		}
		isLow := pm.IsActive && balance.Cmp(j.lowBalance) < 0
		publishBalance(pm.Address.Hex(), balance, isLow)
		if isLow {
			low++
			logger.Warn(ctx, "Paymaster balance low",
				zap.String("paymaster", pm.Address.Hex()),
				zap.String("balance", balance.String()),
				zap.String("threshold", j.lowBalance.String()))
		}
	}
	return low
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/domain/repositories"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/txcodec"
)

// PaymasterUsecase handles fee sponsorship
type PaymasterUsecase struct {
	paymasterRepo repositories.PaymasterRepository
	feeCollector  common.Address
}

// NewPaymasterUsecase creates a new paymaster usecase
func NewPaymasterUsecase(paymasterRepo repositories.PaymasterRepository, feeCollector common.Address) *PaymasterUsecase {
	return &PaymasterUsecase{
		paymasterRepo: paymasterRepo,
		feeCollector:  feeCollector,
	}
}

// Sponsor validates an approval-based sponsorship request and, only when every
// check passes, pulls the token payment from payer and advances feeOwed to the
// fee collector out of the paymaster's native balance.
func (u *PaymasterUsecase) Sponsor(
	ledger SponsorLedger, paymasterAddr, payer common.Address, input []byte, feeOwed *big.Int,
) (*entities.SponsorOutcome, error) {
	ctx := ledger.Context()

	pm, err := u.paymasterRepo.GetByAddress(ctx, paymasterAddr)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, fmt.Errorf("paymaster %s: %w", paymasterAddr.Hex(), domainerrors.ErrNotFound)
		}
		return nil, err
	}
	if !pm.IsActive {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrPaymasterInactive, paymasterAddr.Hex())
	}

	params, err := txcodec.DecodePaymasterInput(input)
	if err != nil {
		return nil, err
	}
	if params.Token != pm.AcceptedToken {
		return nil, fmt.Errorf("%w: paymaster %s accepts %s, got %s",
			domainerrors.ErrUnsupportedToken, paymasterAddr.Hex(), pm.AcceptedToken.Hex(), params.Token.Hex())
	}

	required := params.MinimalAllowance
	if pm.MinimalAllowance != nil && pm.MinimalAllowance.Cmp(required) > 0 {
		required = pm.MinimalAllowance
	}
	allowance, err := ledger.Allowance(params.Token, payer, paymasterAddr)
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: allowance %s below minimal %s", domainerrors.ErrInsufficientAllowance, allowance, required)
	}

	tokenAmount := pm.TokenAmountFor(feeOwed)
	if allowance.Cmp(tokenAmount) < 0 {
		return nil, fmt.Errorf("%w: allowance %s below token cost %s", domainerrors.ErrInsufficientAllowance, allowance, tokenAmount)
	}
	payerBalance, err := ledger.TokenBalance(params.Token, payer)
	if err != nil {
		return nil, err
	}
	if payerBalance.Cmp(tokenAmount) < 0 {
		return nil, fmt.Errorf("%w: payer holds %s of %s, owes %s",
			domainerrors.ErrInsufficientFunds, payerBalance, params.Token.Hex(), tokenAmount)
	}

	native, err := ledger.NativeBalance(paymasterAddr)
	if err != nil {
		return nil, err
	}
	if native.Cmp(feeOwed) < 0 {
		return nil, fmt.Errorf("%w: %s holds %s, fee is %s",
			domainerrors.ErrPaymasterUnderfunded, paymasterAddr.Hex(), native, feeOwed)
	}

	if err := ledger.TransferToken(params.Token, payer, paymasterAddr, tokenAmount); err != nil {
		return nil, err
	}
	ledger.SetAllowance(params.Token, payer, paymasterAddr, new(big.Int).Sub(allowance, tokenAmount))
	if err := ledger.TransferNative(paymasterAddr, u.feeCollector, feeOwed); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "Sponsorship granted",
		zap.String("paymaster", paymasterAddr.Hex()),
		zap.String("payer", payer.Hex()),
		zap.String("token_amount", tokenAmount.String()),
		zap.String("fee", feeOwed.String()),
	)

	return &entities.SponsorOutcome{
		Paymaster:   paymasterAddr,
		Payer:       payer,
		Token:       params.Token,
		TokenAmount: tokenAmount,
		FeeAdvanced: new(big.Int).Set(feeOwed),
	}, nil
}

// Quote returns the token amount a paymaster would pull for fee.
func (u *PaymasterUsecase) Quote(ctx context.Context, paymasterAddr common.Address, fee *big.Int) (*big.Int, error) {
	pm, err := u.paymasterRepo.GetByAddress(ctx, paymasterAddr)
	if err != nil {
		return nil, err
	}
	return pm.TokenAmountFor(fee), nil
}

// GetPaymaster returns a registered paymaster
func (u *PaymasterUsecase) GetPaymaster(ctx context.Context, address common.Address) (*entities.Paymaster, error) {
	return u.paymasterRepo.GetByAddress(ctx, address)
}

// ListPaymasters returns all registered paymasters
func (u *PaymasterUsecase) ListPaymasters(ctx context.Context) ([]*entities.Paymaster, error) {
	return u.paymasterRepo.List(ctx)
}

// SetActive toggles sponsorship for a paymaster
func (u *PaymasterUsecase) SetActive(ctx context.Context, address common.Address, active bool) error {
	return u.paymasterRepo.SetActive(ctx, address, active)
}

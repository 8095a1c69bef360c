package usecases

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/volatiletech/null/v8"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
)

// revert wraps a reason as ErrCallReverted.
func revert(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domainerrors.ErrCallReverted, fmt.Sprintf(format, args...))
}

// revertReason strips the sentinel prefix from a revert error.
func revertReason(err error) string {
	msg := err.Error()
	prefix := domainerrors.ErrCallReverted.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

// callContext is what an executor sees of the transaction being applied.
type callContext struct {
	cs     *changeset
	tx     *entities.Transaction
	txHash common.Hash
	sender *entities.Account
	now    time.Time
}

// unpackCall splits data into a method of contract and its arguments.
func unpackCall(contract abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, revert("calldata shorter than a selector")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("unknown selector 0x%x", data[:4])
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revert("%s: bad arguments: %v", method.Name, err)
	}
	return method, args, nil
}

// plannedTokenDebit reports the ERC20 amount a call by from moves out of
// from, so the spending limit can be charged before anything executes.
// transferFrom counts only when from spends its own tokens.
func plannedTokenDebit(data []byte, from common.Address) (*big.Int, bool) {
	if len(data) < 4 {
		return nil, false
	}
	method, err := erc20ABI.MethodById(data[:4])
	if err != nil {
		return nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, false
	}
	switch method.Name {
	case "transfer":
		amount, ok := args[1].(*big.Int)
		return amount, ok
	case "transferFrom":
		owner, ok := args[0].(common.Address)
		if !ok || owner != from {
			return nil, false
		}
		amount, ok := args[2].(*big.Int)
		return amount, ok
	}
	return nil, false
}

// executeCall applies the call effects of a validated transaction to cc.cs.
// Errors wrapping ErrCallReverted mean the call failed; anything else is fatal.
func (u *LedgerUsecase) executeCall(cc *callContext) error {
	tx := cc.tx
	value := tx.ValueOrZero()

	if tx.To == tx.From && len(tx.Data) > 0 {
		if value.Sign() != 0 {
			return revert("self-call must not carry value")
		}
		if !cc.sender.IsWallet() {
			return revert("%s has no wallet methods", tx.From.Hex())
		}
		return u.executeWalletCall(cc)
	}

	token, err := u.tokenRepo.GetByAddress(cc.cs.ctx, tx.To)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	if token != nil && len(tx.Data) > 0 {
		if value.Sign() != 0 {
			return revert("token call must not carry value")
		}
		return u.executeTokenCall(cc, token)
	}

	if err := cc.cs.transferNative(tx.From, tx.To, value); err != nil {
		if errors.Is(err, domainerrors.ErrInsufficientFunds) {
			return revert("%v", err)
		}
		return err
	}
	return nil
}

func (u *LedgerUsecase) executeWalletCall(cc *callContext) error {
	method, args, err := unpackCall(walletABI, cc.tx.Data)
	if err != nil {
		return err
	}
	window := cc.sender.Window()

	switch method.Name {
	case "setSpendingLimit":
		token, amount := args[0].(common.Address), args[1].(*big.Int)
		limit, err := cc.cs.limit(cc.sender.Address, token)
		if err != nil {
			return err
		}
		if err := limit.Set(amount, cc.now, window); err != nil {
			return revert("setSpendingLimit: %v", err)
		}
		cc.cs.emit(limitEvent(cc, entities.LedgerEventLimitSet, token, amount))

	case "removeSpendingLimit":
		token := args[0].(common.Address)
		limit, err := cc.cs.limit(cc.sender.Address, token)
		if err != nil {
			return err
		}
		limit.Remove()
		cc.cs.emit(limitEvent(cc, entities.LedgerEventLimitRemoved, token, nil))

	case "enableSpendingLimit":
		token := args[0].(common.Address)
		limit, err := cc.cs.limit(cc.sender.Address, token)
		if err != nil {
			return err
		}
		if err := limit.Reenable(cc.now); err != nil {
			return revert("enableSpendingLimit: %v", err)
		}
		cc.cs.emit(limitEvent(cc, entities.LedgerEventLimitEnabled, token, limit.Available))

	case "setResetWindow":
		seconds := args[0].(*big.Int)
		if !seconds.IsInt64() || seconds.Int64() < MinResetWindowSeconds || seconds.Int64() > MaxResetWindowSeconds {
			return revert("setResetWindow: %s seconds out of range", seconds)
		}
		acc, err := cc.cs.account(cc.sender.Address)
		if err != nil {
			return err
		}
		acc.LimitWindow = time.Duration(seconds.Int64()) * time.Second

	default:
		return revert("unsupported wallet method %s", method.Name)
	}
	return nil
}

func (u *LedgerUsecase) executeTokenCall(cc *callContext, token *entities.Token) error {
	method, args, err := unpackCall(erc20ABI, cc.tx.Data)
	if err != nil {
		return err
	}
	from := cc.tx.From
	cs := cc.cs

	switch method.Name {
	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if err := cs.transferToken(token.Address, from, to, amount); err != nil {
			return tokenRevert(err)
		}

	case "approve":
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		cs.setAllowance(token.Address, from, spender, amount)

	case "transferFrom":
		owner, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		allowance, err := cs.allowance(token.Address, owner, from)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return revert("transferFrom: allowance %s below %s", allowance, amount)
		}
		if err := cs.transferToken(token.Address, owner, to, amount); err != nil {
			return tokenRevert(err)
		}
		cs.setAllowance(token.Address, owner, from, new(big.Int).Sub(allowance, amount))

	case "mint":
		if !token.Mintable {
			return revert("mint: %s is not mintable", token.Symbol)
		}
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		bal, err := cs.tokenBalance(token.Address, to)
		if err != nil {
			return err
		}
		cs.setTokenBalance(token.Address, to, new(big.Int).Add(bal, amount))

	default:
		return revert("unsupported token method %s", method.Name)
	}
	return nil
}

func tokenRevert(err error) error {
	if errors.Is(err, domainerrors.ErrInsufficientFunds) {
		return revert("transfer amount exceeds balance")
	}
	return err
}

func limitEvent(cc *callContext, t entities.LedgerEventType, token common.Address, amount *big.Int) *entities.LedgerEvent {
	ev := &entities.LedgerEvent{
		TxHash:  cc.txHash,
		Account: cc.sender.Address,
		Type:    t,
		Token:   null.StringFrom(token.Hex()),
	}
	if amount != nil {
		ev.Amount = null.StringFrom(amount.String())
	}
	return ev
}

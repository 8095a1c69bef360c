package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/domain/repositories"
	pkgcrypto "aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/utils"
)

// AccountConfig holds deployment parameters
type AccountConfig struct {
	FactoryAddress common.Address
	LimitWindow    time.Duration
}

// AccountUsecase deploys, funds and describes ledger accounts
type AccountUsecase struct {
	accountRepo   repositories.AccountRepository
	limitRepo     repositories.SpendingLimitRepository
	tokenRepo     repositories.TokenRepository
	paymasterRepo repositories.PaymasterRepository
	eventRepo     repositories.LedgerEventRepository
	seq           *Sequencer
	cfg           AccountConfig
}

// NewAccountUsecase creates a new account usecase
func NewAccountUsecase(
	accountRepo repositories.AccountRepository,
	limitRepo repositories.SpendingLimitRepository,
	tokenRepo repositories.TokenRepository,
	paymasterRepo repositories.PaymasterRepository,
	eventRepo repositories.LedgerEventRepository,
	seq *Sequencer,
	cfg AccountConfig,
) *AccountUsecase {
	return &AccountUsecase{
		accountRepo:   accountRepo,
		limitRepo:     limitRepo,
		tokenRepo:     tokenRepo,
		paymasterRepo: paymasterRepo,
		eventRepo:     eventRepo,
		seq:           seq,
		cfg:           cfg,
	}
}

var (
	addressT, _   = abi.NewType("address", "", nil)
	addressesT, _ = abi.NewType("address[]", "", nil)
	uint256T, _   = abi.NewType("uint256", "", nil)
	uint8T, _     = abi.NewType("uint8", "", nil)
	stringT, _    = abi.NewType("string", "", nil)

	walletInitArgs    = abi.Arguments{{Type: addressesT}, {Type: uint256T}}
	paymasterInitArgs = abi.Arguments{{Type: addressT}, {Type: addressT}}
	tokenInitArgs     = abi.Arguments{{Type: stringT}, {Type: stringT}, {Type: uint8T}}
)

// randomSalt is swapped in tests
var randomSalt = pkgcrypto.RandomSalt

// DeriveAddress returns the CREATE2 address of a factory deployment.
func DeriveAddress(factory common.Address, salt common.Hash, initArgs []byte) common.Address {
	return crypto.CreateAddress2(factory, salt, crypto.Keccak256(initArgs))
}

func (u *AccountUsecase) resolveSalt(raw string) (common.Hash, error) {
	if strings.TrimSpace(raw) == "" {
		return randomSalt()
	}
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: salt must be at most 32 hex bytes", domainerrors.ErrMalformedField)
	}
	return common.BytesToHash(b), nil
}

func parseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", domainerrors.ErrMalformedField, field, raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseAmount parses a non-negative base-10 integer of at most 256 bits.
func ParseAmount(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s %q is not a uint256", domainerrors.ErrMalformedField, field, raw)
	}
	return v, nil
}

// DeployAccount creates a single-owner or multisig wallet at its CREATE2 address.
func (u *AccountUsecase) DeployAccount(ctx context.Context, input *entities.DeployAccountInput) (*entities.Account, error) {
	if len(input.Owners) == 0 {
		return nil, fmt.Errorf("%w: at least one owner is required", domainerrors.ErrMalformedField)
	}
	owners := make([]common.Address, 0, len(input.Owners))
	seen := make(map[common.Address]bool, len(input.Owners))
	for _, raw := range input.Owners {
		owner, err := parseAddress("owner", raw)
		if err != nil {
			return nil, err
		}
		if owner == (common.Address{}) || seen[owner] {
			return nil, fmt.Errorf("%w: owners must be distinct non-zero addresses", domainerrors.ErrMalformedField)
		}
		seen[owner] = true
		owners = append(owners, owner)
	}

	quorum := input.Quorum
	if quorum == 0 {
		quorum = len(owners)
	}
	if quorum < 1 || quorum > len(owners) {
		return nil, fmt.Errorf("%w: quorum %d outside 1..%d", domainerrors.ErrMalformedField, quorum, len(owners))
	}
	kind := entities.AccountKindMultiSig
	if len(owners) == 1 {
		kind = entities.AccountKindSingleOwner
	}

	salt, err := u.resolveSalt(input.Salt)
	if err != nil {
		return nil, err
	}
	initArgs, err := walletInitArgs.Pack(owners, big.NewInt(int64(quorum)))
	if err != nil {
		return nil, err
	}

	account := &entities.Account{
		Address:     DeriveAddress(u.cfg.FactoryAddress, salt, initArgs),
		Kind:        kind,
		Balance:     new(big.Int),
		Owners:      owners,
		Quorum:      quorum,
		LimitWindow: u.cfg.LimitWindow,
	}
	if err := u.seq.Run(ctx, func(txCtx context.Context) error {
		return u.createAccount(txCtx, account)
	}); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Wallet deployed",
		zap.String("address", account.Address.Hex()),
		zap.String("kind", string(kind)),
		zap.Int("owners", len(owners)),
		zap.Int("quorum", quorum),
	)
	return account, nil
}

// createAccount claims an unused address. An EOA entry that was funded ahead
// of deployment and never sent anything is upgraded in place, keeping its balance.
func (u *AccountUsecase) createAccount(ctx context.Context, account *entities.Account) error {
	existing, err := u.accountRepo.GetForUpdate(ctx, account.Address)
	if errors.Is(err, domainerrors.ErrNotFound) {
		err = u.accountRepo.Create(ctx, account)
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return fmt.Errorf("%w: account %s", domainerrors.ErrAlreadyExists, account.Address.Hex())
		}
		return err
	}
	if err != nil {
		return err
	}
	if existing.Kind != entities.AccountKindEOA || existing.Nonce != 0 {
		return fmt.Errorf("%w: account %s", domainerrors.ErrAlreadyExists, account.Address.Hex())
	}

	account.Balance = existing.Balance
	account.CreatedAt = existing.CreatedAt
	if err := u.accountRepo.Save(ctx, account); err != nil {
		return err
	}
	logger.Info(ctx, "Counterfactual account upgraded",
		zap.String("address", account.Address.Hex()),
		zap.String("balance", account.Balance.String()),
	)
	return nil
}

// Fund credits native balance to address, creating an EOA entry when needed.
func (u *AccountUsecase) Fund(ctx context.Context, address common.Address, input *entities.FundInput) (*entities.Account, error) {
	amount, err := ParseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domainerrors.ErrMalformedField)
	}

	var funded *entities.Account
	err = u.seq.Run(ctx, func(txCtx context.Context) error {
		acc, err := u.accountRepo.GetForUpdate(txCtx, address)
		if errors.Is(err, domainerrors.ErrNotFound) {
			acc = entities.NewAccount(address)
			if err := u.accountRepo.Create(txCtx, acc); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		acc.Balance = new(big.Int).Add(acc.Balance, amount)
		if acc.Balance.BitLen() > 256 {
			return fmt.Errorf("%w: balance overflows uint256", domainerrors.ErrMalformedField)
		}
		funded = acc
		return u.accountRepo.Save(txCtx, acc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Account funded", zap.String("address", address.Hex()), zap.String("amount", amount.String()))
	return funded, nil
}

// RegisterToken creates a hosted ERC20-style token
func (u *AccountUsecase) RegisterToken(ctx context.Context, input *entities.RegisterTokenInput) (*entities.Token, error) {
	if input.Decimals < 0 || input.Decimals > 36 {
		return nil, fmt.Errorf("%w: decimals %d", domainerrors.ErrMalformedField, input.Decimals)
	}
	salt, err := u.resolveSalt(input.Salt)
	if err != nil {
		return nil, err
	}
	initArgs, err := tokenInitArgs.Pack(input.Name, input.Symbol, uint8(input.Decimals))
	if err != nil {
		return nil, err
	}

	token := &entities.Token{
		Address:  DeriveAddress(u.cfg.FactoryAddress, salt, initArgs),
		Name:     input.Name,
		Symbol:   input.Symbol,
		Decimals: input.Decimals,
		Mintable: input.Mintable,
	}
	if err := u.seq.Run(ctx, func(txCtx context.Context) error {
		if _, err := u.accountRepo.GetByAddress(txCtx, token.Address); err == nil {
			return fmt.Errorf("%w: address %s is an account", domainerrors.ErrAlreadyExists, token.Address.Hex())
		}
		return u.tokenRepo.Create(txCtx, token)
	}); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Token registered", zap.String("address", token.Address.Hex()), zap.String("symbol", token.Symbol))
	return token, nil
}

// MintToken credits token balance to holder outside of a transaction.
func (u *AccountUsecase) MintToken(ctx context.Context, tokenAddr, holder common.Address, input *entities.FundInput) (*big.Int, error) {
	amount, err := ParseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	err = u.seq.Run(ctx, func(txCtx context.Context) error {
		if _, err := u.tokenRepo.GetByAddress(txCtx, tokenAddr); err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) {
				return fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedToken, tokenAddr.Hex())
			}
			return err
		}
		current, err := u.tokenRepo.GetBalance(txCtx, tokenAddr, holder)
		if err != nil {
			return err
		}
		balance = new(big.Int).Add(current, amount)
		return u.tokenRepo.SetBalance(txCtx, tokenAddr, holder, balance)
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// RegisterPaymaster creates an approval-based paymaster and its account.
func (u *AccountUsecase) RegisterPaymaster(ctx context.Context, input *entities.RegisterPaymasterInput) (*entities.Paymaster, error) {
	owner, err := parseAddress("owner", input.Owner)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := parseAddress("acceptedToken", input.AcceptedToken)
	if err != nil {
		return nil, err
	}
	minimal, err := optionalAmount("minimalAllowance", input.MinimalAllowance, 0)
	if err != nil {
		return nil, err
	}
	num, err := optionalAmount("rateNumerator", input.RateNumerator, 1)
	if err != nil {
		return nil, err
	}
	den, err := optionalAmount("rateDenominator", input.RateDenominator, 1)
	if err != nil {
		return nil, err
	}
	if num.Sign() == 0 || den.Sign() == 0 {
		return nil, fmt.Errorf("%w: exchange rate terms must be positive", domainerrors.ErrMalformedField)
	}
	salt, err := u.resolveSalt(input.Salt)
	if err != nil {
		return nil, err
	}
	initArgs, err := paymasterInitArgs.Pack(owner, tokenAddr)
	if err != nil {
		return nil, err
	}

	pm := &entities.Paymaster{
		Address:          DeriveAddress(u.cfg.FactoryAddress, salt, initArgs),
		Owner:            owner,
		AcceptedToken:    tokenAddr,
		MinimalAllowance: minimal,
		RateNumerator:    num,
		RateDenominator:  den,
		IsActive:         true,
	}
	err = u.seq.Run(ctx, func(txCtx context.Context) error {
		if _, err := u.tokenRepo.GetByAddress(txCtx, tokenAddr); err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) {
				return fmt.Errorf("%w: %s is not a registered token", domainerrors.ErrUnsupportedToken, tokenAddr.Hex())
			}
			return err
		}
		account := &entities.Account{
			Address: pm.Address,
			Kind:    entities.AccountKindPaymaster,
			Balance: new(big.Int),
			Owners:  []common.Address{owner},
		}
		if err := u.createAccount(txCtx, account); err != nil {
			return err
		}
		return u.paymasterRepo.Create(txCtx, pm)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Paymaster registered",
		zap.String("address", pm.Address.Hex()),
		zap.String("accepted_token", tokenAddr.Hex()),
	)
	return pm, nil
}

func optionalAmount(field, raw string, fallback int64) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(fallback), nil
	}
	return ParseAmount(field, raw)
}

// AccountDetails is an account with its token holdings
type AccountDetails struct {
	*entities.Account
	Tokens []*entities.TokenBalance `json:"tokens"`
}

// GetAccount returns an account and its non-zero token balances
func (u *AccountUsecase) GetAccount(ctx context.Context, address common.Address) (*AccountDetails, error) {
	acc, err := u.accountRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	tokens, err := u.tokenRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	details := &AccountDetails{Account: acc, Tokens: []*entities.TokenBalance{}}
	for _, t := range tokens {
		bal, err := u.tokenRepo.GetBalance(ctx, t.Address, address)
		if err != nil {
			return nil, err
		}
		if bal.Sign() > 0 {
			details.Tokens = append(details.Tokens, &entities.TokenBalance{Token: t.Address, Holder: address, Amount: bal})
		}
	}
	return details, nil
}

// GetLimit returns the (account, token) limit entry; never-set entries read as disabled zero.
func (u *AccountUsecase) GetLimit(ctx context.Context, account, token common.Address) (*entities.SpendingLimit, error) {
	l, err := u.limitRepo.Get(ctx, account, token)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return entities.NewSpendingLimit(account, token), nil
	}
	return l, err
}

// ListLimits returns every limit entry of account
func (u *AccountUsecase) ListLimits(ctx context.Context, account common.Address) ([]*entities.SpendingLimit, error) {
	return u.limitRepo.ListByAccount(ctx, account)
}

// ListEvents returns ledger events of account, newest first
func (u *AccountUsecase) ListEvents(ctx context.Context, account common.Address, pagination utils.PaginationParams) ([]*entities.LedgerEvent, int64, error) {
	return u.eventRepo.ListByAccount(ctx, account, pagination)
}

// GetAllowance returns what owner allows spender to pull of token
func (u *AccountUsecase) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return u.tokenRepo.GetAllowance(ctx, token, owner, spender)
}

// ListTokens returns all hosted tokens
func (u *AccountUsecase) ListTokens(ctx context.Context) ([]*entities.Token, error) {
	return u.tokenRepo.GetAll(ctx)
}

package handlers

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"aa-wallet.backend/internal/domain/entities"
	"aa-wallet.backend/internal/interfaces/http/response"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/utils"
)

type accountQueries interface {
	GetAccount(ctx context.Context, address common.Address) (*usecases.AccountDetails, error)
	GetLimit(ctx context.Context, account, token common.Address) (*entities.SpendingLimit, error)
	ListLimits(ctx context.Context, account common.Address) ([]*entities.SpendingLimit, error)
	ListEvents(ctx context.Context, account common.Address, pagination utils.PaginationParams) ([]*entities.LedgerEvent, int64, error)
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ListTokens(ctx context.Context) ([]*entities.Token, error)
}

// AccountHandler serves read-only account, limit and token queries
type AccountHandler struct {
	accounts accountQueries
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *usecases.AccountUsecase) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// GetAccount returns balances, nonce and owners of an account
// GET /api/v1/accounts/:address
func (h *AccountHandler) GetAccount(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}

	details, err := h.accounts.GetAccount(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, details)
}

// ListLimits lists the spending limit entries of an account
// GET /api/v1/accounts/:address/limits
func (h *AccountHandler) ListLimits(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}

	limits, err := h.accounts.ListLimits(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	if limits == nil {
		limits = []*entities.SpendingLimit{}
	}
	response.Success(c, http.StatusOK, gin.H{"limits": limits})
}

// GetLimit returns one spending limit entry
// GET /api/v1/accounts/:address/limits/:token
func (h *AccountHandler) GetLimit(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}

	limit, err := h.accounts.GetLimit(c.Request.Context(), address, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, limit)
}

// ListEvents lists ledger events of an account, newest first
// GET /api/v1/accounts/:address/events
func (h *AccountHandler) ListEvents(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	pagination := utils.ParsePaginationQuery(c.Query("page"), c.Query("limit"))

	events, total, err := h.accounts.ListEvents(c.Request.Context(), address, pagination)
	if err != nil {
		response.Error(c, err)
		return
	}
	if events == nil {
		events = []*entities.LedgerEvent{}
	}
	response.Paginated(c, http.StatusOK, events, utils.CalculateMeta(total, pagination.Page, pagination.Limit))
}

// ListTokens lists hosted tokens
// GET /api/v1/tokens
func (h *AccountHandler) ListTokens(c *gin.Context) {
	tokens, err := h.accounts.ListTokens(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if tokens == nil {
		tokens = []*entities.Token{}
	}
	response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
}

// GetAllowance returns a token allowance
// GET /api/v1/tokens/:token/allowance?owner=&spender=
func (h *AccountHandler) GetAllowance(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	owner, ok := addressQuery(c, "owner")
	if !ok {
		return
	}
	spender, ok := addressQuery(c, "spender")
	if !ok {
		return
	}

	amount, err := h.accounts.GetAllowance(c.Request.Context(), token, owner, spender)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, &entities.TokenAllowance{Token: token, Owner: owner, Spender: spender, Amount: amount})
}

package handlers

import (
	"context"
	"crypto/subtle"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/interfaces/http/middleware"
	"aa-wallet.backend/internal/interfaces/http/response"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/jwt"
	"aa-wallet.backend/pkg/logger"
)

type accountAdmin interface {
	DeployAccount(ctx context.Context, input *entities.DeployAccountInput) (*entities.Account, error)
	Fund(ctx context.Context, address common.Address, input *entities.FundInput) (*entities.Account, error)
	RegisterToken(ctx context.Context, input *entities.RegisterTokenInput) (*entities.Token, error)
	MintToken(ctx context.Context, token, holder common.Address, input *entities.FundInput) (*big.Int, error)
	RegisterPaymaster(ctx context.Context, input *entities.RegisterPaymasterInput) (*entities.Paymaster, error)
}

type tokenIssuer interface {
	Issue(operator string) (*jwt.AccessToken, error)
}

// OperatorCredentials is the single operator login.
type OperatorCredentials struct {
	Username     string
	PasswordHash string
}

// LoginInput is an operator login request
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// MintInput credits hosted tokens to a holder
type MintInput struct {
	Holder string `json:"holder" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

var checkPassword = crypto.CheckPassword

// AdminHandler handles operator login and the deployment collaborator endpoints
type AdminHandler struct {
	accounts accountAdmin
	issuer   tokenIssuer
	operator OperatorCredentials
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(accounts *usecases.AccountUsecase, issuer *jwt.JWTService, operator OperatorCredentials) *AdminHandler {
	return &AdminHandler{accounts: accounts, issuer: issuer, operator: operator}
}

// Login exchanges operator credentials for a JWT
// POST /api/v1/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.operator.Username)) == 1
	if h.operator.PasswordHash == "" || !checkPassword(input.Password, h.operator.PasswordHash) || !userOK {
		logger.Warn(c.Request.Context(), "Operator login failed", zap.String("username", input.Username))
		response.Error(c, domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.KindInvalidCredentials, "Invalid username or password", domainerrors.ErrInvalidCredentials))
		return
	}

	token, err := h.issuer.Issue(h.operator.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, token)
}

// DeployAccount creates a wallet at its CREATE2 address
// POST /api/v1/admin/accounts
func (h *AdminHandler) DeployAccount(c *gin.Context) {
	var input entities.DeployAccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	account, err := h.accounts.DeployAccount(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "deploy_account", zap.String("address", account.Address.Hex()))
	response.Success(c, http.StatusCreated, account)
}

// Fund credits native balance to any address
// POST /api/v1/admin/accounts/:address/fund
func (h *AdminHandler) Fund(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	var input entities.FundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	account, err := h.accounts.Fund(c.Request.Context(), address, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "fund", zap.String("address", address.Hex()), zap.String("amount", input.Amount))
	response.Success(c, http.StatusOK, account)
}

// RegisterToken creates a hosted ERC20-style token
// POST /api/v1/admin/tokens
func (h *AdminHandler) RegisterToken(c *gin.Context) {
	var input entities.RegisterTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	token, err := h.accounts.RegisterToken(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "register_token", zap.String("token", token.Address.Hex()), zap.String("symbol", token.Symbol))
	response.Success(c, http.StatusCreated, token)
}

// MintToken credits tokens to a holder
// POST /api/v1/admin/tokens/:token/mint
func (h *AdminHandler) MintToken(c *gin.Context) {
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	var input MintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if !common.IsHexAddress(input.Holder) {
		response.Error(c, domainerrors.BadRequest("Invalid holder address"))
		return
	}
	holder := common.HexToAddress(input.Holder)

	balance, err := h.accounts.MintToken(c.Request.Context(), token, holder, &entities.FundInput{Amount: input.Amount})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "mint", zap.String("token", token.Hex()), zap.String("holder", holder.Hex()), zap.String("amount", input.Amount))
	response.Success(c, http.StatusOK, &entities.TokenBalance{Token: token, Holder: holder, Amount: balance})
}

// RegisterPaymaster deploys a paymaster for an accepted token
// POST /api/v1/admin/paymasters
func (h *AdminHandler) RegisterPaymaster(c *gin.Context) {
	var input entities.RegisterPaymasterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	pm, err := h.accounts.RegisterPaymaster(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "register_paymaster", zap.String("paymaster", pm.Address.Hex()))
	response.Success(c, http.StatusCreated, pm)
}

func (h *AdminHandler) audit(c *gin.Context, action string, fields ...zap.Field) {
	op, _ := middleware.GetOperator(c)
	logger.Info(c.Request.Context(), "Operator action",
		append([]zap.Field{zap.String("action", action), zap.String("operator", op)}, fields...)...)
}

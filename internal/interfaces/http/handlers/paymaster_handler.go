package handlers

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/interfaces/http/response"
	"aa-wallet.backend/internal/usecases"
)

type paymasterService interface {
	Quote(ctx context.Context, paymaster common.Address, fee *big.Int) (*big.Int, error)
	GetPaymaster(ctx context.Context, address common.Address) (*entities.Paymaster, error)
	ListPaymasters(ctx context.Context) ([]*entities.Paymaster, error)
	SetActive(ctx context.Context, address common.Address, active bool) error
}

// PaymasterHandler serves paymaster queries and the operator toggle
type PaymasterHandler struct {
	paymasters paymasterService
}

// NewPaymasterHandler creates a new paymaster handler
func NewPaymasterHandler(paymasters *usecases.PaymasterUsecase) *PaymasterHandler {
	return &PaymasterHandler{paymasters: paymasters}
}

// ListPaymasters lists registered paymasters
// GET /api/v1/paymasters
func (h *PaymasterHandler) ListPaymasters(c *gin.Context) {
	list, err := h.paymasters.ListPaymasters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []*entities.Paymaster{}
	}
	response.Success(c, http.StatusOK, gin.H{"paymasters": list})
}

// GetPaymaster returns one paymaster
// GET /api/v1/paymasters/:address
func (h *PaymasterHandler) GetPaymaster(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	pm, err := h.paymasters.GetPaymaster(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pm)
}

// Quote returns the token amount a paymaster charges for a fee
// GET /api/v1/paymasters/:address/quote?fee=
func (h *PaymasterHandler) Quote(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	fee, err := usecases.ParseAmount("fee", c.Query("fee"))
	if err != nil {
		response.Error(c, err)
		return
	}

	amount, err := h.paymasters.Quote(c.Request.Context(), address, fee)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"paymaster":   address,
		"fee":         fee.String(),
		"tokenAmount": amount.String(),
	})
}

// SetActive pauses or resumes sponsorship
// PUT /api/v1/admin/paymasters/:address/active
func (h *PaymasterHandler) SetActive(c *gin.Context) {
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}
	var input struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.paymasters.SetActive(c.Request.Context(), address, *input.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"paymaster": address,
		"isActive":  *input.Active,
	})
}

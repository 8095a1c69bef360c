package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/interfaces/http/response"
	"aa-wallet.backend/internal/usecases"
)

type transactionService interface {
	ProcessTransaction(ctx context.Context, raw []byte) (*usecases.ProcessResult, error)
	GetReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error)
	ListTransactionEvents(ctx context.Context, hash common.Hash) ([]*entities.LedgerEvent, error)
}

// TransactionHandler handles transaction submission and receipts
type TransactionHandler struct {
	ledger transactionService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledger *usecases.LedgerUsecase) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// Submit admits a serialized 0x71 transaction
// POST /api/v1/transactions
func (h *TransactionHandler) Submit(c *gin.Context) {
	var input entities.SubmitTransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	raw, err := hexutil.Decode(input.Raw)
	if err != nil {
		response.Error(c, domainerrors.NewAppError(http.StatusBadRequest, domainerrors.KindMalformedField, "raw must be 0x-prefixed hex", domainerrors.ErrMalformedField))
		return
	}

	result, err := h.ledger.ProcessTransaction(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"txHash":  result.TxHash,
		"receipt": result.Receipt,
	})
}

// GetTransaction returns a receipt with the events it produced
// GET /api/v1/transactions/:hash
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	hash, ok := hashParam(c, "hash")
	if !ok {
		return
	}

	receipt, err := h.ledger.GetReceipt(c.Request.Context(), hash)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.ledger.ListTransactionEvents(c.Request.Context(), hash)
	if err != nil {
		response.Error(c, err)
		return
	}
	if events == nil {
		events = []*entities.LedgerEvent{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"receipt": receipt,
		"events":  events,
	})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/usecases"
	"aa-wallet.backend/pkg/logger"
)

// JSON-RPC error codes
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
	// RPCLedgerRejected carries a ledger rejection; its data is the kind.
	RPCLedgerRejected = -32000
)

const maxRPCBody = 1 << 20

type ledgerService interface {
	ChainID() *big.Int
	GasPrice() *big.Int
	ProcessTransaction(ctx context.Context, raw []byte) (*usecases.ProcessResult, error)
	GetReceipt(ctx context.Context, hash common.Hash) (*entities.Receipt, error)
	GetNonce(ctx context.Context, address common.Address) (uint64, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	EstimateGas(ctx context.Context, call usecases.CallRequest) (uint64, error)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string
	ID      json.RawMessage
	Result  interface{}
	Error   *rpcError
}

// MarshalJSON emits exactly one of result and error; a nil result is an explicit null.
func (r *rpcResponse) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *rpcError       `json:"error"`
		}{r.JSONRPC, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  interface{}     `json:"result"`
	}{r.JSONRPC, id, r.Result})
}

// callArgs is the eth_estimateGas call object. eip712Meta follows the
// zkSync extension carrying paymaster params.
type callArgs struct {
	From       common.Address  `json:"from"`
	To         *common.Address `json:"to"`
	Data       *hexutil.Bytes  `json:"data"`
	Input      *hexutil.Bytes  `json:"input"`
	EIP712Meta *struct {
		PaymasterParams *struct {
			Paymaster      common.Address `json:"paymaster"`
			PaymasterInput hexutil.Bytes  `json:"paymasterInput"`
		} `json:"paymasterParams"`
	} `json:"eip712Meta"`
}

// RPCReceipt is the eth_getTransactionReceipt result.
type RPCReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	From            common.Address `json:"from"`
	To              common.Address `json:"to"`
	Nonce           hexutil.Uint64 `json:"nonce"`
	Status          hexutil.Uint64 `json:"status"`
	Fee             *hexutil.Big   `json:"fee"`
	Paymaster       *string        `json:"paymaster,omitempty"`
	RevertReason    *string        `json:"revertReason,omitempty"`
}

// RPCHandler speaks the JSON-RPC subset wallet clients need
type RPCHandler struct {
	ledger ledgerService
}

// NewRPCHandler creates a new JSON-RPC handler
func NewRPCHandler(ledger *usecases.LedgerUsecase) *RPCHandler {
	return &RPCHandler{ledger: ledger}
}

// Serve handles single and batch JSON-RPC requests
// POST /rpc
func (h *RPCHandler) Serve(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRPCBody))
	if err != nil {
		c.JSON(http.StatusOK, errorResponse(nil, rpcParseError, "read error", nil))
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			c.JSON(http.StatusOK, errorResponse(nil, rpcParseError, "parse error", nil))
			return
		}
		if len(batch) == 0 {
			c.JSON(http.StatusOK, errorResponse(nil, rpcInvalidRequest, "empty batch", nil))
			return
		}
		out := make([]*rpcResponse, 0, len(batch))
		for _, msg := range batch {
			out = append(out, h.handle(c.Request.Context(), msg))
		}
		c.JSON(http.StatusOK, out)
		return
	}

	c.JSON(http.StatusOK, h.handle(c.Request.Context(), body))
}

func (h *RPCHandler) handle(ctx context.Context, msg json.RawMessage) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return errorResponse(nil, rpcParseError, "parse error", nil)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, rpcInvalidRequest, "invalid request", nil)
	}

	result, rerr := h.dispatch(ctx, &req)
	if rerr != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rerr}
	}
	return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (h *RPCHandler) dispatch(ctx context.Context, req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "eth_chainId":
		return (*hexutil.Big)(h.ledger.ChainID()), nil

	case "net_version":
		return h.ledger.ChainID().String(), nil

	case "eth_gasPrice":
		return (*hexutil.Big)(h.ledger.GasPrice()), nil

	case "eth_getTransactionCount":
		var addr common.Address
		if err := param(req.Params, 0, &addr); err != nil {
			return nil, err
		}
		nonce, err := h.ledger.GetNonce(ctx, addr)
		if err != nil {
			return nil, ledgerError(ctx, req.Method, err)
		}
		return hexutil.Uint64(nonce), nil

	case "eth_getBalance":
		var addr common.Address
		if err := param(req.Params, 0, &addr); err != nil {
			return nil, err
		}
		bal, err := h.ledger.GetBalance(ctx, addr)
		if err != nil {
			return nil, ledgerError(ctx, req.Method, err)
		}
		return (*hexutil.Big)(bal), nil

	case "eth_estimateGas":
		var args callArgs
		if err := param(req.Params, 0, &args); err != nil {
			return nil, err
		}
		call := usecases.CallRequest{From: args.From, To: args.To}
		if args.Input != nil {
			call.Data = *args.Input
		} else if args.Data != nil {
			call.Data = *args.Data
		}
		call.Paymaster = args.EIP712Meta != nil && args.EIP712Meta.PaymasterParams != nil
		gas, err := h.ledger.EstimateGas(ctx, call)
		if err != nil {
			return nil, ledgerError(ctx, req.Method, err)
		}
		return hexutil.Uint64(gas), nil

	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		if err := param(req.Params, 0, &raw); err != nil {
			return nil, err
		}
		result, err := h.ledger.ProcessTransaction(ctx, raw)
		if err != nil {
			return nil, ledgerError(ctx, req.Method, err)
		}
		return result.TxHash, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := param(req.Params, 0, &hash); err != nil {
			return nil, err
		}
		receipt, err := h.ledger.GetReceipt(ctx, hash)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, ledgerError(ctx, req.Method, err)
		}
		return toRPCReceipt(receipt), nil
	}
	return nil, &rpcError{Code: rpcMethodNotFound, Message: "the method " + req.Method + " does not exist/is not available"}
}

func param(params []json.RawMessage, i int, dst interface{}) *rpcError {
	if i >= len(params) {
		return &rpcError{Code: rpcInvalidParams, Message: "missing value for required argument " + strconv.Itoa(i)}
	}
	if err := json.Unmarshal(params[i], dst); err != nil {
		return &rpcError{Code: rpcInvalidParams, Message: "invalid argument " + strconv.Itoa(i) + ": " + err.Error()}
	}
	return nil
}

func ledgerError(ctx context.Context, method string, err error) *rpcError {
	kind := domainerrors.KindOf(err)
	if kind == domainerrors.KindInternal {
		logger.Error(ctx, "JSON-RPC call failed", zap.String("method", method), zap.Error(err))
		return &rpcError{Code: rpcInternalError, Message: "internal error"}
	}
	return &rpcError{Code: RPCLedgerRejected, Message: err.Error(), Data: string(kind)}
}

func errorResponse(id json.RawMessage, code int, msg string, data interface{}) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg, Data: data}}
}

func toRPCReceipt(r *entities.Receipt) *RPCReceipt {
	out := &RPCReceipt{
		TransactionHash: r.TxHash,
		From:            r.From,
		To:              r.To,
		Nonce:           hexutil.Uint64(r.Nonce),
	}
	if r.Status == entities.ReceiptStatusSuccess {
		out.Status = 1
	}
	if fee, ok := new(big.Int).SetString(r.Fee, 10); ok {
		out.Fee = (*hexutil.Big)(fee)
	}
	if r.Paymaster.Valid {
		out.Paymaster = &r.Paymaster.String
	}
	if r.RevertReason.Valid {
		out.RevertReason = &r.RevertReason.String
	}
	return out
}

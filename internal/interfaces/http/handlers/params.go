package handlers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/interfaces/http/response"
)

// addressParam reads a hex address path parameter, answering 400 when it is not one.
func addressParam(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		response.Error(c, domainerrors.BadRequest("Invalid "+name+" address"))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// addressQuery reads a required hex address query value.
func addressQuery(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Query(name)
	if !common.IsHexAddress(raw) {
		response.Error(c, domainerrors.BadRequest("Invalid "+name+" address"))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// hashParam reads a 0x-prefixed 32-byte hash path parameter.
func hashParam(c *gin.Context, name string) (common.Hash, bool) {
	b, err := hexutil.Decode(c.Param(name))
	if err != nil || len(b) != common.HashLength {
		response.Error(c, domainerrors.BadRequest("Invalid "+name))
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

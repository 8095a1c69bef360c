package repositories

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/infrastructure/models"
)

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func addressList(addrs []common.Address) models.AddressList {
	out := make(models.AddressList, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

func addressesOf(l models.AddressList) []common.Address {
	if len(l) == 0 {
		return nil
	}
	out := make([]common.Address, 0, len(l))
	for _, s := range l {
		out = append(out, common.HexToAddress(strings.TrimSpace(s)))
	}
	return out
}

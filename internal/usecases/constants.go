package usecases

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// computeSelectorHex computes the 4-byte function selector of a canonical
// signature and returns it as a "0x"-prefixed hex string.
func computeSelectorHex(sig string) string {
	return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(sig))[:4])
}

// Wallet self-call selectors
var (
	SetSpendingLimitSelector    = computeSelectorHex("setSpendingLimit(address,uint256)")
	RemoveSpendingLimitSelector = computeSelectorHex("removeSpendingLimit(address)")
	EnableSpendingLimitSelector = computeSelectorHex("enableSpendingLimit(address)")
	SetResetWindowSelector      = computeSelectorHex("setResetWindow(uint256)")
)

// ERC20 selectors
var (
	TransferSelector     = computeSelectorHex("transfer(address,uint256)")
	ApproveSelector      = computeSelectorHex("approve(address,uint256)")
	TransferFromSelector = computeSelectorHex("transferFrom(address,address,uint256)")
	MintSelector         = computeSelectorHex("mint(address,uint256)")
)

// WalletABI is the self-call surface of wallet accounts.
const WalletABI = `[
	{"type":"function","name":"setSpendingLimit","inputs":[{"name":"_token","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"removeSpendingLimit","inputs":[{"name":"_token","type":"address"}],"outputs":[]},
	{"type":"function","name":"enableSpendingLimit","inputs":[{"name":"_token","type":"address"}],"outputs":[]},
	{"type":"function","name":"setResetWindow","inputs":[{"name":"_seconds","type":"uint256"}],"outputs":[]}
]`

// ERC20ABI is the surface of hosted tokens.
const ERC20ABI = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","inputs":[{"name":"_to","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[]}
]`

var (
	walletABI = mustParseABI(WalletABI)
	erc20ABI  = mustParseABI(ERC20ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeWalletCall packs a wallet self-call.
func EncodeWalletCall(method string, args ...interface{}) ([]byte, error) {
	return walletABI.Pack(method, args...)
}

// EncodeERC20Call packs a token call.
func EncodeERC20Call(method string, args ...interface{}) ([]byte, error) {
	return erc20ABI.Pack(method, args...)
}

// Bounds for setResetWindow
const (
	MinResetWindowSeconds = 1
	MaxResetWindowSeconds = 365 * 24 * 60 * 60
)

package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NonceCache mirrors committed account nonces so eth_getTransactionCount
// can be answered without touching the database.
type NonceCache struct {
	prefix string
	ttl    time.Duration
}

var (
	setNonceValue = Set
	getNonceValue = Get
)

// NewNonceCache creates a cache whose entries live for ttl (0 keeps them forever).
func NewNonceCache(prefix string, ttl time.Duration) *NonceCache {
	if prefix == "" {
		prefix = "nonce"
	}
	return &NonceCache{prefix: prefix, ttl: ttl}
}

func (n *NonceCache) key(addr common.Address) string {
	return n.prefix + ":" + strings.ToLower(addr.Hex())
}

// GetNonce returns the cached nonce; ok is false on a miss.
func (n *NonceCache) GetNonce(ctx context.Context, addr common.Address) (uint64, bool, error) {
	raw, err := getNonceValue(ctx, n.key(addr))
	if IsNil(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return nonce, true, nil
}

// SetNonce records a committed nonce.
func (n *NonceCache) SetNonce(ctx context.Context, addr common.Address, nonce uint64) error {
	return setNonceValue(ctx, n.key(addr), strconv.FormatUint(nonce, 10), n.ttl)
}

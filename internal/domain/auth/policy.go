// Package auth decides whether a set of signatures authorizes a transaction digest
// for a wallet account.
package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/pkg/crypto"
)

// Policy validates signatures over a transaction digest. Implementations are pure.
type Policy interface {
	Validate(digest common.Hash, signatures [][]byte) bool
}

var recoverAddress = crypto.RecoverAddress

// SingleOwner accepts exactly one signature recovering to Owner.
type SingleOwner struct {
	Owner common.Address
}

func (p SingleOwner) Validate(digest common.Hash, signatures [][]byte) bool {
	if len(signatures) != 1 || p.Owner == (common.Address{}) {
		return false
	}
	signer, err := recoverAddress(digest, signatures[0])
	if err != nil {
		return false
	}
	return signer == p.Owner
}

// MultiSigQuorum accepts when at least Quorum distinct owners signed.
// Duplicates of one owner count once; signatures from non-owners are ignored.
type MultiSigQuorum struct {
	Owners []common.Address
	Quorum int
}

func (p MultiSigQuorum) Validate(digest common.Hash, signatures [][]byte) bool {
	if p.Quorum <= 0 || p.Quorum > len(p.Owners) {
		return false
	}
	owners := make(map[common.Address]struct{}, len(p.Owners))
	for _, o := range p.Owners {
		owners[o] = struct{}{}
	}
	seen := make(map[common.Address]struct{}, len(signatures))
	for _, sig := range signatures {
		signer, err := recoverAddress(digest, sig)
		if err != nil {
			continue
		}
		if _, ok := owners[signer]; !ok {
			continue
		}
		seen[signer] = struct{}{}
	}
	return len(seen) >= p.Quorum
}

// SplitSignatures splits a concatenation of 65-byte signatures.
func SplitSignatures(raw []byte) ([][]byte, error) {
	if len(raw) == 0 || len(raw)%crypto.SignatureLength != 0 {
		return nil, fmt.Errorf("%w: signature length %d is not a multiple of %d",
			domainerrors.ErrMalformedField, len(raw), crypto.SignatureLength)
	}
	out := make([][]byte, 0, len(raw)/crypto.SignatureLength)
	for i := 0; i < len(raw); i += crypto.SignatureLength {
		out = append(out, raw[i:i+crypto.SignatureLength])
	}
	return out, nil
}

// JoinSignatures is the inverse of SplitSignatures.
func JoinSignatures(signatures ...[]byte) []byte {
	out := make([]byte, 0, len(signatures)*crypto.SignatureLength)
	for _, sig := range signatures {
		out = append(out, sig...)
	}
	return out
}

// ForAccount returns the policy fixed at wallet construction.
// An EOA is its own single owner.
func ForAccount(account *entities.Account) (Policy, error) {
	switch account.Kind {
	case entities.AccountKindEOA:
		return SingleOwner{Owner: account.Address}, nil
	case entities.AccountKindSingleOwner:
		if len(account.Owners) != 1 {
			return nil, fmt.Errorf("%w: single-owner wallet %s has %d owners",
				domainerrors.ErrMalformedField, account.Address.Hex(), len(account.Owners))
		}
		return SingleOwner{Owner: account.Owners[0]}, nil
	case entities.AccountKindMultiSig:
		return MultiSigQuorum{Owners: account.Owners, Quorum: account.Quorum}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrNotWallet, account.Address.Hex())
	}
}

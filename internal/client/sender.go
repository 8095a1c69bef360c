// Package client builds, signs and submits typed wallet transactions.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"aa-wallet.backend/internal/domain/auth"
	"aa-wallet.backend/internal/domain/entities"
	domainerrors "aa-wallet.backend/internal/domain/errors"
	"aa-wallet.backend/internal/infrastructure/blockchain"
	"aa-wallet.backend/pkg/crypto"
	"aa-wallet.backend/pkg/logger"
	"aa-wallet.backend/pkg/txcodec"
)

// ErrNoSigners is returned when a sender has no owner keys.
var ErrNoSigners = errors.New("at least one signer is required")

// Paymaster selects the approval-based sponsor of a transaction.
type Paymaster struct {
	Address          common.Address
	Token            common.Address
	MinimalAllowance *big.Int
	InnerInput       []byte
}

// Request is one transaction to send from a wallet account.
type Request struct {
	From      common.Address
	To        common.Address
	Value     *big.Int
	Data      []byte
	Paymaster *Paymaster
	// GasLimit skips estimation when set.
	GasLimit *big.Int
}

// Sender runs the client flow: nonce, chain id, gas price, estimate,
// EIP-712 digest, owner signatures, serialize, submit.
type Sender struct {
	network       blockchain.Network
	signers       []*crypto.Signer
	gasPerPubdata *big.Int
	pollInterval  time.Duration
}

// NewSender creates a sender signing with every owner key in signers,
// in order. A multisig wallet needs at least quorum of them.
func NewSender(network blockchain.Network, signers []*crypto.Signer, gasPerPubdata int64) (*Sender, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}
	if gasPerPubdata <= 0 {
		gasPerPubdata = entities.DefaultGasPerPubdata
	}
	return &Sender{
		network:       network,
		signers:       signers,
		gasPerPubdata: big.NewInt(gasPerPubdata),
		pollInterval:  200 * time.Millisecond,
	}, nil
}

// Build fills the transaction fields from the network.
func (s *Sender) Build(ctx context.Context, req Request) (*entities.Transaction, error) {
	nonce, err := s.network.GetNonce(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := s.network.GetGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	tx := &entities.Transaction{
		ChainID:  new(big.Int).Set(s.network.ChainID()),
		From:     req.From,
		To:       req.To,
		Value:    orZero(req.Value),
		Data:     req.Data,
		Nonce:    new(big.Int).SetUint64(nonce),
		GasPrice: gasPrice,
		Extension: entities.Extension{
			GasPerPubdata: new(big.Int).Set(s.gasPerPubdata),
		},
	}

	var pmParams *blockchain.PaymasterParams
	if req.Paymaster != nil {
		input, err := txcodec.EncodeApprovalBased(req.Paymaster.Token, orZero(req.Paymaster.MinimalAllowance), req.Paymaster.InnerInput)
		if err != nil {
			return nil, err
		}
		pm := req.Paymaster.Address
		tx.Extension.Paymaster = &pm
		tx.Extension.PaymasterInput = input
		pmParams = &blockchain.PaymasterParams{Paymaster: pm, PaymasterInput: input}
	}

	if req.GasLimit != nil {
		tx.GasLimit = new(big.Int).Set(req.GasLimit)
		return tx, nil
	}
	gas, err := s.network.EstimateGas(ctx, blockchain.CallRequest{
		From:      req.From,
		To:        req.To,
		Value:     req.Value,
		Data:      req.Data,
		Paymaster: pmParams,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	tx.GasLimit = new(big.Int).SetUint64(gas)
	return tx, nil
}

// Sign attaches the concatenated owner signatures over the typed digest.
func (s *Sender) Sign(tx *entities.Transaction) (*entities.Transaction, error) {
	digest, err := txcodec.Digest(tx)
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, 0, len(s.signers))
	for _, signer := range s.signers {
		sig, err := signer.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domainerrors.ErrSigningError, err)
		}
		sigs = append(sigs, sig)
	}
	return tx.WithSignature(auth.JoinSignatures(sigs...)), nil
}

// Send builds, signs and submits req, returning the transaction hash.
func (s *Sender) Send(ctx context.Context, req Request) (common.Hash, error) {
	tx, err := s.Build(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := s.Sign(tx)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := txcodec.Serialize(signed)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := s.network.Submit(ctx, raw)
	if err != nil {
		logger.Warn(ctx, "Transaction rejected",
			zap.String("from", req.From.Hex()),
			zap.String("kind", string(domainerrors.KindOf(err))),
			zap.Error(err))
		return common.Hash{}, err
	}
	logger.Info(ctx, "Transaction submitted",
		zap.String("from", req.From.Hex()),
		zap.String("hash", hash.Hex()),
		zap.Uint64("nonce", tx.Nonce.Uint64()))
	return hash, nil
}

// WaitForReceipt polls until the receipt of hash is available or ctx ends.
func (s *Sender) WaitForReceipt(ctx context.Context, hash common.Hash) (*blockchain.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := s.network.GetReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	domainerrors "aa-wallet.backend/internal/domain/errors"
)

// SignatureLength is the length of an r||s||v signature.
const SignatureLength = 65

var (
	ErrInvalidKey       = fmt.Errorf("%w: invalid private key", domainerrors.ErrSigningError)
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer holds a secp256k1 key and signs 32-byte digests.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key (with or without 0x prefix).
func NewSigner(hexKey string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewSignerFromKey(key), nil
}

// NewSignerFromKey wraps an existing key.
func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewSignerFromKey(key), nil
}

// Address returns the address of the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the hex encoded key without prefix.
func (s *Signer) PrivateKeyHex() string {
	return common.Bytes2Hex(ethcrypto.FromECDSA(s.key))
}

// Sign produces a deterministic (RFC6979) signature r||s||v over digest, v in {27, 28}.
func (s *Signer) Sign(digest common.Hash) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, ErrInvalidKey
	}
	sig, err := ethcrypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverAddress returns the address whose key produced sig over digest.
// v may be 0/1 or 27/28.
func RecoverAddress(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig[64])
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

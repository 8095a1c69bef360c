package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// LedgerEventType represents an observable ledger event
type LedgerEventType string

const (
	LedgerEventLimitSet             LedgerEventType = "LIMIT_SET"
	LedgerEventLimitRemoved         LedgerEventType = "LIMIT_REMOVED"
	LedgerEventLimitEnabled         LedgerEventType = "LIMIT_ENABLED"
	LedgerEventLimitExceeded        LedgerEventType = "LIMIT_EXCEEDED"
	LedgerEventSponsorshipSucceeded LedgerEventType = "SPONSORSHIP_SUCCEEDED"
	LedgerEventSponsorshipFailed    LedgerEventType = "SPONSORSHIP_FAILED"
)

// LedgerEvent is a discrete, queryable record of a ledger decision.
type LedgerEvent struct {
	ID        uuid.UUID       `json:"id"`
	TxHash    common.Hash     `json:"txHash"`
	Account   common.Address  `json:"account"`
	Type      LedgerEventType `json:"type"`
	Token     null.String     `json:"token,omitempty"`
	Amount    null.String     `json:"amount,omitempty"`
	Detail    null.String     `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ReceiptStatus is the terminal status of an admitted transaction
type ReceiptStatus string

const (
	ReceiptStatusSuccess  ReceiptStatus = "SUCCESS"
	ReceiptStatusReverted ReceiptStatus = "REVERTED"
)

// Receipt is stored for every admitted transaction, reverted ones included.
type Receipt struct {
	TxHash       common.Hash    `json:"txHash"`
	From         common.Address `json:"from"`
	To           common.Address `json:"to"`
	Nonce        uint64         `json:"nonce"`
	Status       ReceiptStatus  `json:"status"`
	Fee          string         `json:"fee"`
	Paymaster    null.String    `json:"paymaster,omitempty"`
	RevertReason null.String    `json:"revertReason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SubmitTransactionInput carries a serialized transaction.
type SubmitTransactionInput struct {
	Raw string `json:"raw" binding:"required"`
}

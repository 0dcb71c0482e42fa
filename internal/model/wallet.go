package model

import "time"

// Wallet transaction types.
const (
	TxCredit = "credit"
	TxDebit  = "debit"
	TxRefund = "refund"
)

// Wallet is the per-user stored value balance (`wallets`).
type Wallet struct {
	ID           uint64
	UserID       uint64
	BalanceCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WalletTransaction is an append-only ledger row. Replaying a wallet's
// rows in id order with SignedAmount reproduces its balance.
//
// Fields:
//
//	Type              – credit, debit or refund.
//	AmountCents       – always positive.
//	BalanceAfterCents – wallet balance right after this row.
//	ReferenceID       – external-facing reference (TXN...).
type WalletTransaction struct {
	ID                uint64
	WalletID          uint64
	UserID            uint64
	Type              string
	AmountCents       int64
	BalanceAfterCents int64
	Description       string
	ReferenceID       string
	Status            string
	CreatedAt         time.Time
}

// SignedAmount is negative for debits.
func (t WalletTransaction) SignedAmount() int64 {
	if t.Type == TxDebit {
		return -t.AmountCents
	}
	return t.AmountCents
}

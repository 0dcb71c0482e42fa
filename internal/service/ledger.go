package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/utils"
)

// DefaultTransactionPage is the size of the wallet history page.
const DefaultTransactionPage = 20

// Ledger owns wallet balances. Every mutation locks the wallet row,
// writes the new balance and appends a transaction row carrying the
// balance after it, all inside the caller's transaction.
type Ledger struct {
	db      *sql.DB
	wallets *repository.WalletRepo
	events  queue.Publisher
	log     *zap.Logger
}

func NewLedger(db *sql.DB, wallets *repository.WalletRepo, events queue.Publisher, log *zap.Logger) *Ledger {
	return &Ledger{db: db, wallets: wallets, events: events, log: log}
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first use.
func (l *Ledger) GetOrCreateWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	w, err := l.wallets.Ensure(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("could not load wallet", err)
	}
	return w, nil
}

// CreditTx adds amount to the wallet.
func (l *Ledger) CreditTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, desc string) (*model.WalletTransaction, error) {
	return l.apply(ctx, tx, userID, model.TxCredit, amount, desc)
}

// DebitTx removes amount from the wallet or fails with
// InsufficientFunds, leaving the balance untouched.
func (l *Ledger) DebitTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, desc string) (*model.WalletTransaction, error) {
	return l.apply(ctx, tx, userID, model.TxDebit, amount, desc)
}

// RefundTx is a credit recorded as a refund.
func (l *Ledger) RefundTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64, desc string) (*model.WalletTransaction, error) {
	return l.apply(ctx, tx, userID, model.TxRefund, amount, desc)
}

func (l *Ledger) apply(ctx context.Context, tx *sql.Tx, userID uint64, typ string, amount int64, desc string) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("Amount must be greater than zero")
	}
	w, err := l.wallets.LockByUserTx(ctx, tx, userID)
	if err != nil {
		return nil, apperr.Internal("could not lock wallet", err)
	}

	balance := w.BalanceCents
	if typ == model.TxDebit {
		if balance < amount {
			return nil, apperr.InsufficientFunds("Insufficient wallet balance. Please top up.")
		}
		balance -= amount
	} else {
		balance += amount
	}

	if err := l.wallets.SetBalanceTx(ctx, tx, w.ID, balance); err != nil {
		return nil, apperr.Internal("could not update wallet", err)
	}
	t := &model.WalletTransaction{
		WalletID:          w.ID,
		UserID:            userID,
		Type:              typ,
		AmountCents:       amount,
		BalanceAfterCents: balance,
		Description:       desc,
		ReferenceID:       utils.NewReference(),
		Status:            "completed",
	}
	if err := l.wallets.AppendTx(ctx, tx, t); err != nil {
		return nil, apperr.Internal("could not record transaction", err)
	}
	return t, nil
}

// TopUp credits the wallet in its own transaction.
func (l *Ledger) TopUp(ctx context.Context, userID uint64, amount int64) (*model.WalletTransaction, error) {
	var t *model.WalletTransaction
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		t, err = l.CreditTx(ctx, tx, userID, amount, "Wallet Top Up via Online Payment")
		return err
	})
	if err != nil {
		return nil, err
	}
	queue.Emit(l.events, l.log, queue.WalletToppedUp, "wallet", t.WalletID, &userID,
		queue.MoneyData{AmountCents: amount, Reference: t.ReferenceID})
	return t, nil
}

// Transactions returns one page of the user's history, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint64, page, size int) ([]model.WalletTransaction, error) {
	if size <= 0 || size > 100 {
		size = DefaultTransactionPage
	}
	if page < 1 {
		page = 1
	}
	out, err := l.wallets.ListByUser(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, apperr.Internal("could not load transactions", err)
	}
	return out, nil
}

// LedgerAudit is the outcome of replaying a wallet's transactions.
type LedgerAudit struct {
	WalletID        uint64
	BalanceCents    int64
	ReplayedCents   int64
	Entries         int
	Consistent      bool
	FirstMismatchID uint64 // first row whose balance_after disagrees with the replay
}

// Verify replays the wallet log and compares it with the stored balance.
func (l *Ledger) Verify(ctx context.Context, userID uint64) (*LedgerAudit, error) {
	w, err := l.wallets.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return nil, apperr.NotFound("Wallet not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load wallet", err)
	}
	rows, err := l.wallets.Replay(ctx, w.ID)
	if err != nil {
		return nil, apperr.Internal("could not load transactions", err)
	}
	a := Replay(rows)
	a.WalletID = w.ID
	a.BalanceCents = w.BalanceCents
	a.Consistent = a.FirstMismatchID == 0 && a.ReplayedCents == w.BalanceCents
	return &a, nil
}

// Replay sums rows in order and records the first row whose
// balance_after does not match the running total.
func Replay(rows []model.WalletTransaction) LedgerAudit {
	var a LedgerAudit
	for _, t := range rows {
		a.ReplayedCents += t.SignedAmount()
		a.Entries++
		if a.FirstMismatchID == 0 && t.BalanceAfterCents != a.ReplayedCents {
			a.FirstMismatchID = t.ID
		}
	}
	return a
}

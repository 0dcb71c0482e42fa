package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/smart-parking/internal/model"
)

// WalletRepo handles wallets and the append-only wallet_transactions log.
type WalletRepo struct {
	db *sql.DB
}

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

func (r *WalletRepo) DB() *sql.DB { return r.db }

func scanWallet(row *sql.Row) (*model.Wallet, error) {
	var w model.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

const walletCols = "id, user_id, balance_cents, created_at, updated_at"

// GetByUser returns ErrWalletNotFound when the user has no wallet yet.
func (r *WalletRepo) GetByUser(ctx context.Context, userID uint64) (*model.Wallet, error) {
	return scanWallet(r.db.QueryRowContext(ctx, "SELECT "+walletCols+" FROM wallets WHERE user_id = ?", userID))
}

// Ensure creates an empty wallet for userID if none exists and returns
// the wallet. Calling it repeatedly is safe.
func (r *WalletRepo) Ensure(ctx context.Context, userID uint64) (*model.Wallet, error) {
	if _, err := r.db.ExecContext(ctx, "INSERT IGNORE INTO wallets (user_id, balance_cents) VALUES (?, 0)", userID); err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}

// LockByUserTx creates the wallet if needed and locks it for the rest
// of tx. Every balance mutation goes through here first.
func (r *WalletRepo) LockByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Wallet, error) {
	if _, err := tx.ExecContext(ctx, "INSERT IGNORE INTO wallets (user_id, balance_cents) VALUES (?, 0)", userID); err != nil {
		return nil, err
	}
	return scanWallet(tx.QueryRowContext(ctx, "SELECT "+walletCols+" FROM wallets WHERE user_id = ? FOR UPDATE", userID))
}

// SetBalanceTx stores the new balance of a locked wallet.
func (r *WalletRepo) SetBalanceTx(ctx context.Context, tx *sql.Tx, walletID uint64, balance int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE wallets SET balance_cents = ? WHERE id = ?", balance, walletID)
	return err
}

// AppendTx writes a ledger row and sets its ID.
func (r *WalletRepo) AppendTx(ctx context.Context, tx *sql.Tx, t *model.WalletTransaction) error {
	if t.Status == "" {
		t.Status = "completed"
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, user_id, transaction_type, amount_cents, balance_after_cents, description, reference_id, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.WalletID, t.UserID, t.Type, t.AmountCents, t.BalanceAfterCents, t.Description, t.ReferenceID, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

const walletTxCols = "id, wallet_id, user_id, transaction_type, amount_cents, balance_after_cents, description, reference_id, status, created_at"

func scanWalletTxRows(rows *sql.Rows) ([]model.WalletTransaction, error) {
	defer rows.Close()
	var out []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Type, &t.AmountCents,
			&t.BalanceAfterCents, &t.Description, &t.ReferenceID, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByUser returns a user's ledger rows newest first.
func (r *WalletRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+walletTxCols+" FROM wallet_transactions WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanWalletTxRows(rows)
}

// Replay returns every completed row of a wallet in insertion order.
func (r *WalletRepo) Replay(ctx context.Context, walletID uint64) ([]model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+walletTxCols+" FROM wallet_transactions WHERE wallet_id = ? AND status = 'completed' ORDER BY id ASC",
		walletID)
	if err != nil {
		return nil, err
	}
	return scanWalletTxRows(rows)
}

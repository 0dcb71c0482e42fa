package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

var walletColumns = []string{"id", "user_id", "balance_cents", "created_at", "updated_at"}

var walletTxColumns = []string{"id", "wallet_id", "user_id", "transaction_type", "amount_cents",
	"balance_after_cents", "description", "reference_id", "status", "created_at"}

var (
	ensureWalletSQL = regexp.QuoteMeta("INSERT IGNORE INTO wallets (user_id, balance_cents) VALUES (?, 0)")
	lockWalletSQL   = regexp.QuoteMeta("FROM wallets WHERE user_id = ? FOR UPDATE")
	setBalanceSQL   = regexp.QuoteMeta("UPDATE wallets SET balance_cents = ? WHERE id = ?")
	appendTxSQL     = regexp.QuoteMeta("INSERT INTO wallet_transactions")
)

func newTestLedger(t *testing.T) (*Ledger, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedger(db, repository.NewWalletRepo(db), queue.NopPublisher{}, zap.NewNop()), db, mock
}

func expectLockedWallet(mock sqlmock.Sqlmock, userID uint64, balance int64) {
	mock.ExpectExec(ensureWalletSQL).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockWalletSQL).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, userID, balance, testNow, testNow))
}

func TestTopUp(t *testing.T) {
	l, _, mock := newTestLedger(t)

	mock.ExpectBegin()
	expectLockedWallet(mock, 12, 10000)
	mock.ExpectExec(setBalanceSQL).WithArgs(int64(60000), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendTxSQL).
		WithArgs(3, 12, model.TxCredit, int64(50000), int64(60000), "Wallet Top Up via Online Payment", sqlmock.AnyArg(), "completed").
		WillReturnResult(sqlmock.NewResult(88, 1))
	mock.ExpectCommit()

	txn, err := l.TopUp(context.Background(), 12, 50000)
	require.NoError(t, err)
	assert.Equal(t, uint64(88), txn.ID)
	assert.Equal(t, int64(60000), txn.BalanceAfterCents)
	assert.Regexp(t, `^TXN[0-9A-F]{12}$`, txn.ReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopUpRejectsNonPositive(t *testing.T) {
	l, _, mock := newTestLedger(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := l.TopUp(context.Background(), 12, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	l, db, mock := newTestLedger(t)

	mock.ExpectBegin()
	expectLockedWallet(mock, 12, 4000)
	mock.ExpectRollback()

	err := withTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := l.DebitTx(context.Background(), tx, 12, 5000, "Parking Booking")
		return err
	})
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))
	assert.Equal(t, "Insufficient wallet balance. Please top up.", apperr.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitExactBalance(t *testing.T) {
	l, db, mock := newTestLedger(t)

	mock.ExpectBegin()
	expectLockedWallet(mock, 12, 5000)
	mock.ExpectExec(setBalanceSQL).WithArgs(int64(0), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendTxSQL).
		WithArgs(3, 12, model.TxDebit, int64(5000), int64(0), "Parking Booking", sqlmock.AnyArg(), "completed").
		WillReturnResult(sqlmock.NewResult(89, 1))
	mock.ExpectCommit()

	err := withTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := l.DebitTx(context.Background(), tx, 12, 5000, "Parking Booking")
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplay(t *testing.T) {
	rows := []model.WalletTransaction{
		{ID: 1, Type: model.TxCredit, AmountCents: 50000, BalanceAfterCents: 50000},
		{ID: 2, Type: model.TxDebit, AmountCents: 12000, BalanceAfterCents: 38000},
		{ID: 3, Type: model.TxRefund, AmountCents: 2000, BalanceAfterCents: 40000},
	}
	a := Replay(rows)
	assert.Equal(t, int64(40000), a.ReplayedCents)
	assert.Equal(t, 3, a.Entries)
	assert.Zero(t, a.FirstMismatchID)

	rows[1].BalanceAfterCents = 39000
	assert.Equal(t, uint64(2), Replay(rows).FirstMismatchID)
}

func TestVerify(t *testing.T) {
	l, _, mock := newTestLedger(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE user_id = ?")).WithArgs(12).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow(3, 12, int64(38000), testNow, testNow))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE wallet_id = ? AND status = 'completed' ORDER BY id ASC")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(walletTxColumns).
			AddRow(1, 3, 12, model.TxCredit, int64(50000), int64(50000), "Top up", "TXN000000000001", "completed", testNow).
			AddRow(2, 3, 12, model.TxDebit, int64(12000), int64(38000), "Booking", "TXN000000000002", "completed", testNow))

	a, err := l.Verify(context.Background(), 12)
	require.NoError(t, err)
	assert.True(t, a.Consistent)
	assert.Equal(t, uint64(3), a.WalletID)
	assert.Equal(t, 2, a.Entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyMissingWallet(t *testing.T) {
	l, _, mock := newTestLedger(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE user_id = ?")).WithArgs(12).
		WillReturnRows(sqlmock.NewRows(walletColumns))

	_, err := l.Verify(context.Background(), 12)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTransactionsPaging(t *testing.T) {
	listSQL := regexp.QuoteMeta("FROM wallet_transactions WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?")

	t.Run("second page", func(t *testing.T) {
		l, _, mock := newTestLedger(t)
		mock.ExpectQuery(listSQL).WithArgs(12, 10, 10).
			WillReturnRows(sqlmock.NewRows(walletTxColumns).
				AddRow(11, 3, 12, model.TxDebit, int64(12000), int64(38000), "Booking", "TXN000000000011", "completed", testNow))

		out, err := l.Transactions(context.Background(), 12, 2, 10)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, int64(-12000), out[0].SignedAmount())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults", func(t *testing.T) {
		l, _, mock := newTestLedger(t)
		mock.ExpectQuery(listSQL).WithArgs(12, DefaultTransactionPage, 0).
			WillReturnRows(sqlmock.NewRows(walletTxColumns))

		out, err := l.Transactions(context.Background(), 12, 0, 500)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		l, _, mock := newTestLedger(t)
		mock.ExpectQuery(listSQL).WillReturnError(sql.ErrConnDone)

		_, err := l.Transactions(context.Background(), 12, 1, 20)
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}

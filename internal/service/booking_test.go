package service

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

var bookingColumns = []string{"id", "user_id", "zone_id", "slot_id", "vehicle_id", "booking_start", "booking_end",
	"booking_type", "status", "total_price_cents", "entry_time", "created_at", "updated_at"}

var passColumns = []string{"id", "user_id", "zone_id", "pass_type", "start_date", "end_date", "price_cents",
	"status", "qr_code", "created_at", "updated_at"}

var vehicleColumns = []string{"id", "user_id", "license_plate", "vehicle_type", "model", "color", "created_at", "updated_at"}

var (
	lockBookingSQL = regexp.QuoteMeta("FROM bookings b WHERE b.id = ? AND b.user_id = ? FOR UPDATE")
	getBookingSQL  = regexp.QuoteMeta("FROM bookings b WHERE b.id = ? AND b.user_id = ?")
	lockPassSQL    = regexp.QuoteMeta("FROM passes p WHERE p.id = ? AND p.user_id = ? FOR UPDATE")
	getPassSQL     = regexp.QuoteMeta("FROM passes p WHERE p.id = ? AND p.user_id = ?")
	passStatusSQL  = regexp.QuoteMeta("UPDATE passes SET status = ? WHERE id = ?")
	insertPassSQL  = regexp.QuoteMeta("INSERT INTO passes")
)

func newTestBookingService(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zap.NewNop()
	ledger := NewLedger(db, repository.NewWalletRepo(db), queue.NopPublisher{}, log)
	policy := config.PolicyConfig{DefaultHourlyRate: 5000, CancellationWindowDays: 5, RefundDivisor: 6,
		PassPrices: map[string]int64{model.PassMonthly: 150000}}
	s := NewBookingService(db, repository.NewBookingRepo(db), repository.NewPassRepo(db),
		repository.NewZoneRepo(db), repository.NewVehicleRepo(db), ledger, policy, queue.NopPublisher{}, log)
	s.now = func() time.Time { return testNow }
	return s, mock
}

func bookingRow(id uint64, start time.Time, status string, price int64) *sqlmock.Rows {
	return sqlmock.NewRows(bookingColumns).AddRow(id, 12, 7, 70, 4, start, start.Add(2*time.Hour),
		"hourly", status, price, nil, start, start)
}

func passRow(id uint64, start, end time.Time, status string, price int64) *sqlmock.Rows {
	return sqlmock.NewRows(passColumns).AddRow(id, 12, nil, model.PassMonthly, start, end, price,
		status, "MCD-SUB-ABC123XYZ", start, start)
}

func TestBookingPrice(t *testing.T) {
	start := testNow
	assert.Equal(t, int64(5000), BookingPrice(start, start.Add(10*time.Minute), 5000))
	assert.Equal(t, int64(10000), BookingPrice(start, start.Add(2*time.Hour), 5000))
	assert.Equal(t, int64(15000), BookingPrice(start, start.Add(2*time.Hour+time.Second), 5000))
}

func TestCancelBookingRefundsOneSixth(t *testing.T) {
	s, mock := newTestBookingService(t)
	start := testNow.Add(-2 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBookingSQL).WithArgs(5, 12).WillReturnRows(bookingRow(5, start, model.BookingActive, 60000))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ? WHERE id = ?")).
		WithArgs(model.BookingCancelled, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	expectLockedWallet(mock, 12, 0)
	mock.ExpectExec(setBalanceSQL).WithArgs(int64(10000), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendTxSQL).
		WithArgs(3, 12, model.TxRefund, int64(10000), int64(10000), "1/6 Refund for Booking #5", sqlmock.AnyArg(), "completed").
		WillReturnResult(sqlmock.NewResult(90, 1))
	mock.ExpectCommit()

	b, res, err := s.CancelBooking(context.Background(), 12, 5)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, int64(10000), res.RefundCents)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, uint64(90), res.Transaction.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingOutsideWindow(t *testing.T) {
	s, mock := newTestBookingService(t)
	start := testNow.Add(-6 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBookingSQL).WithArgs(5, 12).WillReturnRows(bookingRow(5, start, model.BookingActive, 60000))
	mock.ExpectRollback()

	_, _, err := s.CancelBooking(context.Background(), 12, 5)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Cancellation period (5 days) has expired.", apperr.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingAlreadyCancelled(t *testing.T) {
	s, mock := newTestBookingService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBookingSQL).WithArgs(5, 12).WillReturnRows(bookingRow(5, testNow, model.BookingCancelled, 60000))
	mock.ExpectRollback()

	_, _, err := s.CancelBooking(context.Background(), 12, 5)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingNotOwned(t *testing.T) {
	s, mock := newTestBookingService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBookingSQL).WithArgs(5, 99).WillReturnRows(sqlmock.NewRows(bookingColumns))
	mock.ExpectRollback()

	_, _, err := s.CancelBooking(context.Background(), 99, 5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingValidation(t *testing.T) {
	s, _ := newTestBookingService(t)
	ctx := context.Background()

	_, err := s.CreateBooking(ctx, 12, BookingRequest{ZoneID: 7})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.CreateBooking(ctx, 12, BookingRequest{ZoneID: 7, VehicleID: 4, Start: testNow, End: testNow})
	assert.Equal(t, "End time must be after start time", apperr.Message(err))
}

// expectBookingReads queues the vehicle ownership check and zone load
// that run before the booking transaction opens.
func expectBookingReads(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id = ? AND user_id = ?")).WithArgs(4, 12).
		WillReturnRows(sqlmock.NewRows(vehicleColumns).AddRow(4, 12, "DL01AB1234", "car", "Swift", "White", testNow, testNow))
	mock.ExpectQuery(regexp.QuoteMeta("FROM parking_zones WHERE id = ?")).WithArgs(7).
		WillReturnRows(zoneRow(7, 100, 10, 80, 50000))
}

func TestCreateBookingDebitsWithSlot(t *testing.T) {
	s, mock := newTestBookingService(t)
	start := testNow.Add(time.Hour)
	end := start.Add(2 * time.Hour)

	expectBookingReads(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM parking_slots WHERE zone_id = ? ORDER BY id LIMIT 1")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "slot_number", "slot_type", "status", "created_at"}).
			AddRow(70, 7, "A1", "car", "available", testNow))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(12, 7, 70, 4, start, end, "hourly", model.BookingActive, int64(10000)).
		WillReturnResult(sqlmock.NewResult(55, 1))
	expectLockedWallet(mock, 12, 20000)
	mock.ExpectExec(setBalanceSQL).WithArgs(int64(10000), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendTxSQL).
		WithArgs(3, 12, model.TxDebit, int64(10000), int64(10000), "Booking BK-55 at Connaught Place", sqlmock.AnyArg(), "completed").
		WillReturnResult(sqlmock.NewResult(91, 1))
	mock.ExpectCommit()

	b, err := s.CreateBooking(context.Background(), 12, BookingRequest{ZoneID: 7, VehicleID: 4, Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), b.ID)
	require.NotNil(t, b.SlotID)
	assert.Equal(t, uint64(70), *b.SlotID)
	assert.Equal(t, "A1", b.SlotNumber)
	assert.Equal(t, int64(10000), b.TotalPriceCents)
	assert.Equal(t, model.BookingActive, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingInsufficientFundsRollsBackInsert(t *testing.T) {
	s, mock := newTestBookingService(t)
	start := testNow.Add(time.Hour)
	end := start.Add(2 * time.Hour)

	expectBookingReads(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM parking_slots WHERE zone_id = ? ORDER BY id LIMIT 1")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "slot_number", "slot_type", "status", "created_at"}).
			AddRow(70, 7, "A1", "car", "available", testNow))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(55, 1))
	expectLockedWallet(mock, 12, 4000)
	mock.ExpectRollback()

	b, err := s.CreateBooking(context.Background(), 12, BookingRequest{ZoneID: 7, VehicleID: 4, Start: start, End: end})
	assert.Nil(t, b)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingForeignVehicle(t *testing.T) {
	s, mock := newTestBookingService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id = ? AND user_id = ?")).WithArgs(4, 12).
		WillReturnRows(sqlmock.NewRows(vehicleColumns))

	_, err := s.CreateBooking(context.Background(), 12, BookingRequest{ZoneID: 7, VehicleID: 4,
		Start: testNow, End: testNow.Add(time.Hour)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Invalid vehicle selected", apperr.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectPassDebit(mock sqlmock.Sqlmock) {
	expectLockedWallet(mock, 12, 200000)
	mock.ExpectExec(setBalanceSQL).WithArgs(int64(50000), 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(appendTxSQL).
		WithArgs(3, 12, model.TxDebit, int64(150000), int64(50000), "monthly pass purchase", sqlmock.AnyArg(), "completed").
		WillReturnResult(sqlmock.NewResult(92, 1))
}

func passInsertArgs() []driver.Value {
	end := testNow.Add(30 * 24 * time.Hour)
	return []driver.Value{12, nil, model.PassMonthly, testNow, end, int64(150000), model.BookingActive, sqlmock.AnyArg()}
}

func TestPurchasePassRetriesQRClash(t *testing.T) {
	s, mock := newTestBookingService(t)
	clash := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_passes_qr'"}

	mock.ExpectBegin()
	expectPassDebit(mock)
	mock.ExpectExec(insertPassSQL).WithArgs(passInsertArgs()...).WillReturnError(clash)
	mock.ExpectExec(insertPassSQL).WithArgs(passInsertArgs()...).WillReturnResult(sqlmock.NewResult(17, 1))
	mock.ExpectCommit()

	p, err := s.PurchasePass(context.Background(), 12, PassRequest{PassType: model.PassMonthly})
	require.NoError(t, err)
	assert.Equal(t, uint64(17), p.ID)
	assert.Regexp(t, `^MCD-SUB-[A-Z0-9]{9}$`, p.QRCode)
	assert.Equal(t, int64(150000), p.PriceCents)
	assert.Equal(t, testNow.Add(30*24*time.Hour), p.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchasePassGivesUpAfterThreeClashes(t *testing.T) {
	s, mock := newTestBookingService(t)
	clash := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	mock.ExpectBegin()
	expectPassDebit(mock)
	for i := 0; i < 3; i++ {
		mock.ExpectExec(insertPassSQL).WithArgs(passInsertArgs()...).WillReturnError(clash)
	}
	mock.ExpectRollback()

	_, err := s.PurchasePass(context.Background(), 12, PassRequest{PassType: model.PassMonthly})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchasePassValidation(t *testing.T) {
	s, mock := newTestBookingService(t)
	ctx := context.Background()

	_, err := s.PurchasePass(ctx, 12, PassRequest{PassType: "daily"})
	assert.Equal(t, "Invalid plan type", apperr.Message(err))

	_, err = s.PurchasePass(ctx, 12, PassRequest{PassType: model.PassWeekly})
	assert.Equal(t, "No price configured for this plan", apperr.Message(err))

	_, err = s.PurchasePass(ctx, 12, PassRequest{PassType: model.PassMonthly, PriceCents: -1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelPass(t *testing.T) {
	t.Run("refunds one sixth", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		start := testNow.Add(-3 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery(lockPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, start, start.Add(30*24*time.Hour), model.BookingActive, 150000))
		mock.ExpectExec(passStatusSQL).WithArgs(model.BookingCancelled, 8).WillReturnResult(sqlmock.NewResult(0, 1))
		expectLockedWallet(mock, 12, 0)
		mock.ExpectExec(setBalanceSQL).WithArgs(int64(25000), 3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(appendTxSQL).
			WithArgs(3, 12, model.TxRefund, int64(25000), int64(25000), "1/6 Refund for Subscription #8", sqlmock.AnyArg(), "completed").
			WillReturnResult(sqlmock.NewResult(93, 1))
		mock.ExpectCommit()

		p, res, err := s.CancelPass(context.Background(), 12, 8)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, p.Status)
		assert.Equal(t, int64(25000), res.RefundCents)
		assert.Equal(t, uint64(93), res.Transaction.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("last day of window rounds half up", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		start := testNow.Add(-5 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery(lockPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, start, start.Add(7*24*time.Hour), model.BookingActive, 100))
		mock.ExpectExec(passStatusSQL).WithArgs(model.BookingCancelled, 8).WillReturnResult(sqlmock.NewResult(0, 1))
		expectLockedWallet(mock, 12, 0)
		mock.ExpectExec(setBalanceSQL).WithArgs(int64(17), 3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(appendTxSQL).WillReturnResult(sqlmock.NewResult(94, 1))
		mock.ExpectCommit()

		_, res, err := s.CancelPass(context.Background(), 12, 8)
		require.NoError(t, err)
		assert.Equal(t, int64(17), res.RefundCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outside window", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		start := testNow.Add(-6 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery(lockPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, start, start.Add(30*24*time.Hour), model.BookingActive, 150000))
		mock.ExpectRollback()

		_, _, err := s.CancelPass(context.Background(), 12, 8)
		assert.Equal(t, "Cancellation period (5 days) has expired.", apperr.Message(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not owned", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockPassSQL).WithArgs(8, 99).WillReturnRows(sqlmock.NewRows(passColumns))
		mock.ExpectRollback()

		_, _, err := s.CancelPass(context.Background(), 99, 8)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScanBooking(t *testing.T) {
	t.Run("records entry", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		mock.ExpectQuery(getBookingSQL).WithArgs(5, 12).WillReturnRows(bookingRow(5, testNow, model.BookingActive, 10000))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET entry_time = ? WHERE id = ?")).
			WithArgs(testNow, 5).WillReturnResult(sqlmock.NewResult(0, 1))

		b, err := s.ScanBooking(context.Background(), 12, 5)
		require.NoError(t, err)
		require.NotNil(t, b.EntryTime)
		assert.Equal(t, testNow, *b.EntryTime)
		assert.Equal(t, model.BookingActive, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled booking", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		mock.ExpectQuery(getBookingSQL).WithArgs(5, 12).WillReturnRows(bookingRow(5, testNow, model.BookingCancelled, 10000))

		_, err := s.ScanBooking(context.Background(), 12, 5)
		assert.Equal(t, "Booking is not valid for scanning", apperr.Message(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScanPass(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		start := testNow.Add(-24 * time.Hour)
		mock.ExpectQuery(getPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, start, start.Add(30*24*time.Hour), model.BookingActive, 150000))

		p, err := s.ScanPass(context.Background(), 12, 8)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), p.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ended pass is expired", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		start := testNow.Add(-31 * 24 * time.Hour)
		mock.ExpectQuery(getPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, start, start.Add(30*24*time.Hour), model.BookingActive, 150000))
		mock.ExpectExec(passStatusSQL).WithArgs(model.BookingExpired, 8).WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := s.ScanPass(context.Background(), 12, 8)
		assert.Equal(t, "Subscription has expired", apperr.Message(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled pass", func(t *testing.T) {
		s, mock := newTestBookingService(t)
		mock.ExpectQuery(getPassSQL).WithArgs(8, 12).
			WillReturnRows(passRow(8, testNow, testNow.Add(time.Hour), model.BookingCancelled, 150000))

		_, err := s.ScanPass(context.Background(), 12, 8)
		assert.Equal(t, "Subscription is not active", apperr.Message(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

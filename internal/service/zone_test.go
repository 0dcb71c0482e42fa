package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
)

var (
	updateZoneSQL       = regexp.QuoteMeta("UPDATE parking_zones SET zone_name=?, address=?")
	updateExcessSQL     = regexp.QuoteMeta("UPDATE violations SET excess_vehicles = ?, penalty_amount_cents = ?, severity = ? WHERE id = ?")
	resolveViolationSQL = regexp.QuoteMeta("UPDATE violations SET resolved = 1, resolved_at = ?, notes = ? WHERE id = ? AND resolved = 0")
)

var admin = Actor{UserID: 1, Role: model.RoleAdmin}

func newTestZoneService(t *testing.T) (*ZoneService, sqlmock.Sqlmock) {
	t.Helper()
	r, mock := newTestReconciler(t)
	return NewZoneService(r.db, r.zones, r, 50000, 5000, zap.NewNop()), mock
}

func expectZoneWrite(mock sqlmock.Sqlmock, id uint64, capacity, limit int) {
	a := sqlmock.AnyArg()
	mock.ExpectExec(updateZoneSQL).
		WithArgs(a, a, a, a, capacity, limit, a, a, a, a, a, a, a, a, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestZoneUpdateChecksCapacityAgainstLockedOccupancy(t *testing.T) {
	s, mock := newTestZoneService(t)

	// Occupancy committed by the reconciler is 80 by the time the row is locked.
	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 80, 70, 50000))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), admin, 7, ZoneInput{TotalCapacity: intp(60), ContractorLimit: intp(50)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "Occupancy cannot exceed total capacity", apperr.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateLimitChangeRewritesOpenViolation(t *testing.T) {
	s, mock := newTestZoneService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 80, 50000))
	expectZoneWrite(mock, 7, 100, 60)
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(openViolationRow(41, 7, 10, "Excess parking detected at Connaught Place"))
	mock.ExpectExec(updateExcessSQL).
		WithArgs(30, int64(1500000), model.SeverityCritical, 41).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	z, err := s.Update(context.Background(), admin, 7, ZoneInput{ContractorLimit: intp(60)})
	require.NoError(t, err)
	assert.Equal(t, 60, z.ContractorLimit)
	assert.Equal(t, 90, z.CurrentOccupancy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateLimitRaiseResolvesViolation(t *testing.T) {
	s, mock := newTestZoneService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 80, 50000))
	expectZoneWrite(mock, 7, 100, 95)
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(openViolationRow(41, 7, 10, "Excess parking detected at Connaught Place"))
	mock.ExpectExec(resolveViolationSQL).
		WithArgs(testNow, "Excess parking detected at Connaught Place\n"+AutoResolveNote, 41).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := s.Update(context.Background(), admin, 7, ZoneInput{ContractorLimit: intp(95)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateLimitCutOpensViolation(t *testing.T) {
	s, mock := newTestZoneService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 75, 80, 50000))
	expectZoneWrite(mock, 7, 100, 70)
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(sqlmock.NewRows(violationColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO violations")).
		WithArgs(7, 5, int64(250000), model.SeverityWarning, "Excess parking detected at Connaught Place", testNow).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	_, err := s.Update(context.Background(), admin, 7, ZoneInput{ContractorLimit: intp(70)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateResolveMissRollsBack(t *testing.T) {
	s, mock := newTestZoneService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 80, 50000))
	expectZoneWrite(mock, 7, 100, 95)
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(openViolationRow(41, 7, 10, ""))
	mock.ExpectExec(resolveViolationSQL).
		WithArgs(testNow, AutoResolveNote, 41).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), admin, 7, ZoneInput{ContractorLimit: intp(95)})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateWithoutLimitChangeLeavesViolationAlone(t *testing.T) {
	s, mock := newTestZoneService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 80, 50000))
	expectZoneWrite(mock, 7, 120, 80)
	mock.ExpectCommit()

	name := "Connaught Place Outer Circle"
	z, err := s.Update(context.Background(), admin, 7, ZoneInput{ZoneName: &name, TotalCapacity: intp(120)})
	require.NoError(t, err)
	assert.Equal(t, name, z.ZoneName)
	assert.Equal(t, 120, z.TotalCapacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZoneUpdateRejects(t *testing.T) {
	t.Run("occupancy field", func(t *testing.T) {
		s, mock := newTestZoneService(t)
		_, err := s.Update(context.Background(), admin, 7, ZoneInput{CurrentOccupancy: intp(3)})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("contractor not owner", func(t *testing.T) {
		s, mock := newTestZoneService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 10, 80, 50000))
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), Actor{UserID: 9, Role: model.RoleContractor}, 7, ZoneInput{ContractorLimit: intp(60)})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown zone", func(t *testing.T) {
		s, mock := newTestZoneService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockZoneSQL).WithArgs(8).WillReturnRows(sqlmock.NewRows(zoneColumns))
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), admin, 8, ZoneInput{ContractorLimit: intp(60)})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/apperr"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

func newTestViolationService(t *testing.T) (*ViolationService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewViolationService(db, repository.NewZoneRepo(db), repository.NewViolationRepo(db),
		50000, queue.NopPublisher{}, zap.NewNop())
	s.now = func() time.Time { return testNow }
	return s, mock
}

func TestManualViolationConflictsWithOpenOne(t *testing.T) {
	s, mock := newTestViolationService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 80, 50000))
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(openViolationRow(41, 7, 10, ""))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), ManualViolation{ZoneID: 7, ExcessVehicles: 3})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManualViolationDerivesSeverity(t *testing.T) {
	s, mock := newTestViolationService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockZoneSQL).WithArgs(7).WillReturnRows(zoneRow(7, 100, 90, 20, 0))
	mock.ExpectQuery(lockViolationSQL).WithArgs(7).WillReturnRows(sqlmock.NewRows(violationColumns))
	mock.ExpectExec("INSERT INTO violations").
		WithArgs(7, 10, int64(500000), model.SeverityCritical, "Excess parking detected at Connaught Place", testNow).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	v, err := s.Create(context.Background(), ManualViolation{ZoneID: 7, ExcessVehicles: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.ID)
	assert.Equal(t, model.SeverityCritical, v.Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManualViolationValidation(t *testing.T) {
	s, _ := newTestViolationService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, ManualViolation{ExcessVehicles: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = s.Create(ctx, ManualViolation{ZoneID: 7})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = s.Create(ctx, ManualViolation{ZoneID: 7, ExcessVehicles: 1, Severity: "severe"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestWriteViolationsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteViolationsCSV(&buf, []model.Violation{
		{ID: 3, ZoneName: "Karol Bagh", Severity: model.SeverityCritical, ExcessVehicles: 12,
			PenaltyAmountCents: 600050, Resolved: true, DetectedAt: testNow, Notes: "line one, two"},
		{ID: 4, Severity: model.SeverityWarning, ExcessVehicles: 1, PenaltyAmountCents: 5, DetectedAt: testNow},
	})
	require.NoError(t, err)
	want := "ID,Zone Name,Severity,Excess Vehicles,Penalty Amount,Resolved,Timestamp,Notes\n" +
		"3,Karol Bagh,critical,12,6000.50,Yes,2026-03-01T12:00:00Z,\"line one, two\"\n" +
		"4,N/A,warning,1,0.05,No,2026-03-01T12:00:00Z,\n"
	assert.Equal(t, want, buf.String())
}

func TestRupeesAndFilename(t *testing.T) {
	assert.Equal(t, "0.00", Rupees(0))
	assert.Equal(t, "500.00", Rupees(50000))
	assert.Equal(t, "-1.07", Rupees(-107))
	assert.Equal(t, "mcd_violations_export_2026-03-01.csv", ExportFilename(testNow))
}

func TestInsideDelhiNCR(t *testing.T) {
	assert.NoError(t, InsideDelhiNCR(28.6139, 77.2090))
	assert.NoError(t, InsideDelhiNCR(MinLatitude, MaxLongitude))
	assert.True(t, apperr.Is(InsideDelhiNCR(19.07, 72.87), apperr.KindValidation))
	assert.True(t, apperr.Is(InsideDelhiNCR(28.6, 77.5), apperr.KindValidation))
}

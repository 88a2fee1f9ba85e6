package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/pkg/domain"
)

func mockOpen(t *testing.T) (sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return db, nil
	})
	return mock, func() {
		restore()
		_ = db.Close()
	}
}

func stateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"bucket", "payload"}).
		AddRow("residents", []byte(`[{"firstName":"John","lastName":"Boyd","address":"1509 Culver St","city":"Culver","zip":"97451","phone":"841-874-6512","email":"jaboyd@email.com"}]`)).
		AddRow("stationAssignments", []byte(`[{"address":"1509 Culver St","station":3}]`)).
		AddRow("medicalRecords", []byte(`[]`))
}

func TestNewStoreLoadsBuckets(t *testing.T) {
	mock, cleanup := mockOpen(t)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT bucket, payload FROM state`).WillReturnRows(stateRows())

	st, err := NewStore(context.Background(), "", nil)
	require.NoError(t, err)
	state := st.ExportState()
	require.Len(t, state.Residents, 1)
	assert.Equal(t, "jaboyd@email.com", state.Residents[0].Email)
	require.Len(t, state.StationAssignments, 1)
	assert.Equal(t, 3, state.StationAssignments[0].Station)
	assert.Empty(t, state.MedicalRecords)
	assert.Equal(t, "postgres", st.Backend().Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionUpsertsEveryBucket(t *testing.T) {
	mock, cleanup := mockOpen(t)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT bucket, payload FROM state`).WillReturnRows(stateRows())
	st, err := NewStore(context.Background(), "postgres://example/db", nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	for _, bucket := range []string{"residents", "stationAssignments", "medicalRecords"} {
		mock.ExpectExec(`INSERT INTO state`).WithArgs(bucket, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	_, err = st.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateStationAssignment(domain.StationAssignment{Address: "29 15th St", Station: 2})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, st.ExportState().StationAssignments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFailureSurfacesPersistenceError(t *testing.T) {
	mock, cleanup := mockOpen(t)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT bucket, payload FROM state`).WillReturnRows(stateRows())
	st, err := NewStore(context.Background(), "", nil)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO state`).WithArgs("residents", sqlmock.AnyArg()).WillReturnError(boom)
	mock.ExpectRollback()

	_, err = st.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteStationAssignment("1509 Culver St")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.ExportState().StationAssignments, "in-memory delete survives persist failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyStateTableRequiresSeed(t *testing.T) {
	mock, cleanup := mockOpen(t)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT bucket, payload FROM state`).WillReturnRows(sqlmock.NewRows([]string{"bucket", "payload"}))

	_, err := NewStore(context.Background(), "", nil)
	assert.ErrorIs(t, err, snapshot.ErrNoDocument)
}

func TestOpenFailsWhenTableCannotBeCreated(t *testing.T) {
	mock, cleanup := mockOpen(t)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS state`).WillReturnError(errors.New("permission denied"))
	_, err := Open(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure state table")
}

package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRunInvitationSweep(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`DELETE FROM invitations`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	s := New(store.NewWithDB(db, nil), nil, 0, testLogger())
	removed, err := s.RunInvitationSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunAuditPurge(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM audit_logs`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 40))

	auditDB, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	s := New(store.NewWithDB(db, nil), auditDB, 30*24*time.Hour, testLogger())
	purged, err := s.RunAuditPurge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(40), purged)
}

func TestRunAuditPurgeWithoutDBLogger(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(store.NewWithDB(db, nil), nil, 30*24*time.Hour, testLogger())
	purged, err := s.RunAuditPurge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestStartAndStop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))

	auditDB, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	s := New(store.NewWithDB(db, nil), auditDB, 24*time.Hour, testLogger())
	require.NoError(t, s.Start())
	s.Stop()
}

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/models"
)

func TestAcceptInvitationHappyPath(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT workspace_id, project_id, role_id, accepted_at, expires_at\s+FROM invitations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "project_id", "role_id", "accepted_at", "expires_at"}).
			AddRow(int64(1), nil, int64(2), nil, time.Now().Add(time.Hour)))
	mock.ExpectExec(`UPDATE invitations SET accepted_at = NOW\(\), accepted_by = \$2`).
		WithArgs(int64(5), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO workspace_members`).
		WithArgs(int64(1), int64(7), int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.AcceptInvitation(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitationWithProjectMembership(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "project_id", "role_id", "accepted_at", "expires_at"}).
			AddRow(int64(1), int64(10), int64(2), nil, time.Now().Add(time.Hour)))
	mock.ExpectExec(`UPDATE invitations`).
		WithArgs(int64(5), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO workspace_members`).
		WithArgs(int64(1), int64(7), int64(2), int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO project_members`).
		WithArgs(int64(10), int64(7), int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.AcceptInvitation(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvitationAlreadyAcceptedRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "project_id", "role_id", "accepted_at", "expires_at"}).
			AddRow(int64(1), nil, int64(2), time.Now(), time.Now().Add(time.Hour)))
	mock.ExpectRollback()

	err := s.AcceptInvitation(context.Background(), 5, 7)
	assert.ErrorContains(t, err, "already accepted")
}

func TestAcceptInvitationExpiredRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "project_id", "role_id", "accepted_at", "expires_at"}).
			AddRow(int64(1), nil, int64(2), nil, time.Now().Add(-time.Hour)))
	mock.ExpectRollback()

	err := s.AcceptInvitation(context.Background(), 5, 7)
	assert.ErrorContains(t, err, "expired")
}

func TestPendingInvitationCount(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM invitations`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := s.PendingInvitationCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestRoleUsageCount(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM workspace_members`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	count, err := s.RoleUsageCount(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestCreateInvitationFillsIDAndTimestamp(t *testing.T) {
	s, mock := newMockStore(t)
	invitedAt := time.Now()
	mock.ExpectQuery(`INSERT INTO invitations`).
		WithArgs(int64(1), nil, "new@example.com", int64(2), "tok", int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invited_at"}).AddRow(int64(15), invitedAt))

	inv := &models.Invitation{
		WorkspaceID: 1,
		Email:       "new@example.com",
		RoleID:      2,
		Token:       "tok",
		InvitedBy:   7,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}
	err := s.CreateInvitation(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, int64(15), inv.ID)
	assert.WithinDuration(t, invitedAt, inv.InvitedAt, time.Second)
}

func TestSetRolePermissionsReconcilesAtomically(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \$1 AND permission_id <> ALL\(\$2\)`).
		WithArgs(int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`ON CONFLICT \(role_id, permission_id\) DO NOTHING`).
		WithArgs(int64(3), int64(20)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`ON CONFLICT \(role_id, permission_id\) DO NOTHING`).
		WithArgs(int64(3), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.SetRolePermissions(context.Background(), 3, []int64{20, 21})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRolePermissionsEmptySetClearsAll(t *testing.T) {
	// An empty desired set removes every binding; no inserts run.
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM role_permissions WHERE role_id = \$1 AND permission_id <> ALL\(\$2\)`).
		WithArgs(int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	err := s.SetRolePermissions(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByTokenHash(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT user_id FROM api_tokens`).
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE api_tokens SET last_used_at = NOW\(\)`).
		WithArgs("hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "username", "full_name", "is_super_admin", "is_active",
			"created_at", "updated_at", "last_login_at",
		}).AddRow(int64(7), "u@example.com", "u", nil, false, true, time.Now(), time.Now(), nil))

	user, err := s.UserByTokenHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
	assert.True(t, user.IsActive)
}

func TestUserByTokenHashUnknownToken(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT user_id FROM api_tokens`).
		WithArgs("dead").
		WillReturnError(sql.ErrNoRows)

	user, err := s.UserByTokenHash(context.Background(), "dead")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestWorkspaceByIDMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM workspaces WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	ws, err := s.WorkspaceByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, ws)
}

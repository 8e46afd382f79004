package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectTeamLookup(mock sqlmock.Sqlmock, teamID, orgID int64) {
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "organization_id", "name", "is_admin", "created_at", "updated_at"}).
		AddRow(teamID, orgID, "Engineering", false, now, now)
	mock.ExpectQuery("SELECT id, organization_id, name").
		WithArgs(teamID).
		WillReturnRows(rows)
}

func TestCreateInvite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	expectTeamLookup(mock, 7, 123)
	mock.ExpectQuery("INSERT INTO organization_invites").
		WithArgs(int64(123), int64(7), "new@example.com", sqlmock.AnyArg(), int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))

	invite := &Invite{
		OrganizationID: 123,
		TeamID:         7,
		Email:          "new@example.com",
		InvitedBy:      1,
	}
	err = service.CreateInvite(context.Background(), invite)
	require.NoError(t, err)
	assert.Equal(t, int64(5), invite.ID)
	assert.NotEmpty(t, invite.Token)
	assert.WithinDuration(t, time.Now().Add(InviteTTL), invite.ExpiresAt, time.Minute)
}

func TestCreateInvite_TeamFromOtherOrg(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	expectTeamLookup(mock, 7, 999)

	invite := &Invite{OrganizationID: 123, TeamID: 7, Email: "new@example.com", InvitedBy: 1}
	err = service.CreateInvite(context.Background(), invite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to organization")
}

func TestAcceptInvite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, organization_id, team_id, expires_at, is_accepted").
		WithArgs("tok-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "team_id", "expires_at", "is_accepted"}).
			AddRow(5, 123, 7, now.Add(time.Hour), false))
	mock.ExpectQuery("INSERT INTO user_organizations").
		WithArgs(int64(42), int64(123), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))
	mock.ExpectExec("UPDATE organization_invites").
		WithArgs(int64(42), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := service.AcceptInvite(context.Background(), "tok-123", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(123), m.OrganizationID)
	assert.Equal(t, int64(7), m.TeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptInvite_AlreadyAccepted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, organization_id, team_id, expires_at, is_accepted").
		WithArgs("tok-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "team_id", "expires_at", "is_accepted"}).
			AddRow(5, 123, 7, time.Now().Add(time.Hour), true))
	mock.ExpectRollback()

	_, err = service.AcceptInvite(context.Background(), "tok-123", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already accepted")
}

func TestAcceptInvite_Expired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, organization_id, team_id, expires_at, is_accepted").
		WithArgs("tok-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "team_id", "expires_at", "is_accepted"}).
			AddRow(5, 123, 7, time.Now().Add(-time.Hour), false))
	mock.ExpectRollback()

	_, err = service.AcceptInvite(context.Background(), "tok-123", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestRevokeInvite_AlreadyAccepted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	mock.ExpectExec("DELETE FROM organization_invites").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = service.RevokeInvite(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or already accepted")
}

func TestCleanupExpiredInvites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewPostgresService(db)

	mock.ExpectExec("DELETE FROM organization_invites").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := service.CleanupExpiredInvites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dspsync/userlist/scim"
)

func TestInit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS roles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_roles").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, New(db, "sqlite3").Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "VALUES (?, ?)", New(nil, "sqlite3").rebind("VALUES (?, ?)"))
	assert.Equal(t, "VALUES ($1, $2)", New(nil, "postgres").rebind("VALUES (?, ?)"))
}

func TestUpsertUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	records := []scim.UserRecord{
		{ID: "u1", FamilyName: "Lee", GivenName: "Ann", DisplayName: "Ann Lee", Email: "ann@x.com", UserName: "ann.lee"},
		{ID: "u2", Email: "bob@x.com"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "Lee", "Ann", "Ann Lee", "ann@x.com", "ann.lee").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u2", "", "", "", "bob@x.com", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := New(db, "sqlite3").UpsertUsers(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUsersEmptyBatchWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	count, err := New(db, "sqlite3").UpsertUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUsersRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = New(db, "sqlite3").UpsertUsers(context.Background(), []scim.UserRecord{{ID: "u1", Email: "a@x.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("admin", "admin", "Administrator", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := New(db, "sqlite3").UpsertRoles(context.Background(), []scim.RoleAggregate{
		{Value: "admin", Display: "Administrator", UserCount: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceUserRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roles").
		WithArgs("admin", "admin", "Administrator", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_roles").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := New(db, "sqlite3").ReplaceUserRoles(context.Background(),
		[]scim.RoleAggregate{{Value: "admin", Display: "Administrator", UserCount: 1}},
		[]scim.UserRole{{UserID: "u1", RoleValue: "admin"}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceUserRolesEmptySnapshotStillClearsTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_roles").WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	count, err := New(db, "sqlite3").ReplaceUserRoles(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

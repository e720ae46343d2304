package migrator

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgschema/relmig/internal/command"
)

func mockConn(t *testing.T) (*sql.Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		db.Close()
	})
	return conn, mock
}

func TestExecuteCommandsGroupsTransactions(t *testing.T) {
	conn, mock := mockConn(t)

	commands := []command.MigrationCommand{
		{CommandText: "CREATE TABLE a ();"},
		{CommandText: "CREATE TABLE b ();"},
		{CommandText: "CREATE INDEX CONCURRENTLY ix ON a (x);", TransactionSuppressed: true},
		{CommandText: "INSERT INTO h VALUES ('1');"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE a ();").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b ();").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("CREATE INDEX CONCURRENTLY ix ON a (x);").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO h VALUES ('1');").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, executeCommands(context.Background(), conn, commands, sql.LevelDefault))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCommandsRollsBackGroup(t *testing.T) {
	conn, mock := mockConn(t)

	failure := errors.New("relation already exists")
	commands := []command.MigrationCommand{
		{CommandText: "CREATE TABLE a ();"},
		{CommandText: "CREATE TABLE a ();"},
		{CommandText: "CREATE TABLE never ();"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE a ();").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE a ();").WillReturnError(failure)
	mock.ExpectRollback()

	err := executeCommands(context.Background(), conn, commands, sql.LevelDefault)
	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCommandsOnlySuppressed(t *testing.T) {
	conn, mock := mockConn(t)

	mock.ExpectExec("VACUUM;").WillReturnResult(sqlmock.NewResult(0, 0))

	err := executeCommands(context.Background(), conn,
		[]command.MigrationCommand{{CommandText: "VACUUM;", TransactionSuppressed: true}}, sql.LevelDefault)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

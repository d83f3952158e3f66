package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)

const (
	qInsertUser = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*enabled,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*false,\s*\$4\)\s*$`
	qAssignRole = `(?s)^INSERT\s+INTO\s+user_roles\s*\(user_id,\s*role_id\)\s*SELECT\s+\$1,\s*id\s+FROM\s+roles\s+WHERE\s+name\s*=\s*\$2\s*RETURNING\s+role_id\s*$`
	qByEmail    = `(?s)^SELECT\s+id,\s*email,\s*password_hash,\s*enabled,\s*created_at,\s*last_login\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	qByID       = `(?s)^SELECT\s+id,\s*email,\s*password_hash,\s*enabled,\s*created_at,\s*last_login\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	qRoles      = `(?s)^SELECT\s+r\.id,\s*r\.name\s+FROM\s+roles\s+r\s+JOIN\s+user_roles\s+ur.*WHERE\s+ur\.user_id\s*=\s*\$1\s+ORDER\s+BY\s+r\.name\s*$`
	qEnable     = `(?s)^UPDATE\s+users\s+SET\s+enabled\s*=\s*true\s+WHERE\s+id\s*=\s*\$1\s*$`
	qLastLogin  = `(?s)^UPDATE\s+users\s+SET\s+last_login\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var userCols = []string{"id", "email", "password_hash", "enabled", "created_at", "last_login"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db, timex.NewFixedClock(now)), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(qInsertUser).
		WithArgs(sqlmock.AnyArg(), "a@b.com", "hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qAssignRole).
		WithArgs(sqlmock.AnyArg(), common.DefaultRoleName).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("r-1"))
	mock.ExpectCommit()

	u, err := repo.Create(context.Background(), "a@b.com", "hash")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.False(t, u.Enabled)
	assert.Equal(t, now, u.CreatedAt)
	assert.Nil(t, u.LastLogin)
	assert.Equal(t, []string{common.DefaultRoleName}, u.RoleNames())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(qInsertUser).
		WithArgs(sqlmock.AnyArg(), "a@b.com", "hash", now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uc_users_email"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "a@b.com", "hash")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_MissingDefaultRoleRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(qInsertUser).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qAssignRole).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "a@b.com", "hash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default role")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(qInsertUser).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "a@b.com", "hash")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	last := now.Add(-time.Hour)
	mock.ExpectQuery(qByEmail).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@b.com", "hash", true, now, last))
	mock.ExpectQuery(qRoles).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("r-1", "ROLE_USER"))

	u, err := repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.True(t, u.Enabled)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, last, *u.LastLogin)
	assert.Equal(t, []string{"ROLE_USER"}, u.RoleNames())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qByEmail).WithArgs("ghost@b.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@b.com")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestFindByID_NullLastLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qByID).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@b.com", "hash", false, now, nil))
	mock.ExpectQuery(qRoles).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	u, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, u.LastLogin)
	assert.Empty(t, u.Roles)
}

func TestFindByID_RolesError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qByID).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@b.com", "hash", false, now, nil))
	mock.ExpectQuery(qRoles).WithArgs("u-1").WillReturnError(errors.New("db err"))

	_, err := repo.FindByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestEnable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qEnable).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qEnable).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Enable(context.Background(), "u-1"))
	assert.ErrorIs(t, repo.Enable(context.Background(), "ghost"), common.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(qLastLogin).WithArgs("u-1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qLastLogin).WithArgs("u-1", now).WillReturnError(errors.New("db err"))

	require.NoError(t, repo.RecordLogin(context.Background(), "u-1", now))

	err := repo.RecordLogin(context.Background(), "u-1", now)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
